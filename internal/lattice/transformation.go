package lattice

// Transformation is a convenience wrapper around a single node of the
// solution space.
type Transformation struct {
	space  *SolutionSpace
	id     int64
	levels []int
}

// ID returns the node identifier
func (t *Transformation) ID() int64 { return t.id }

// Levels returns the per-dimension generalization levels
func (t *Transformation) Levels() []int { return t.levels }

// Level returns the sum of generalization levels
func (t *Transformation) Level() int {
	return t.space.LevelOf(t.levels)
}

// HasProperty reports whether the node carries the given property
func (t *Transformation) HasProperty(p Property) bool {
	return t.space.HasProperty(t.id, p)
}

// PutProperty tags the node with the given property
func (t *Transformation) PutProperty(p Property) {
	t.space.PutProperty(t.id, p)
}

// SetLoss records information loss and bound on the node
func (t *Transformation) SetLoss(loss, bound float64) {
	t.space.SetLoss(t.id, loss, bound)
}

// Loss returns the recorded information loss, if any
func (t *Transformation) Loss() (float64, bool) {
	return t.space.Loss(t.id)
}

// LowerBound returns the recorded lower bound, if any
func (t *Transformation) LowerBound() (float64, bool) {
	return t.space.LowerBound(t.id)
}

// Successors returns the one-step successors in reverse dimensional order
func (t *Transformation) Successors() []int64 {
	return t.space.Successors(t.id)
}

// Predecessors returns the one-step predecessors
func (t *Transformation) Predecessors() []int64 {
	return t.space.Predecessors(t.id)
}
