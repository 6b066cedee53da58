package algorithm

import (
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonymizer/internal/check"
	"github.com/inferloop/anonymizer/internal/lattice"
)

// ProgressSink receives traversal progress. It replaces a global listener:
// the capability is passed explicitly into the search.
type ProgressSink interface {
	Progress(checked, total int64)
}

// NoopSink ignores all progress updates
type NoopSink struct{}

func (NoopSink) Progress(checked, total int64) {}

// Optimum is the best anonymous transformation found by the search.
type Optimum struct {
	Found bool
	ID    int64
	Loss  float64
}

// FLASH traverses the solution space in two phases: a binary search for the
// anonymity frontier along greedily built bottom-to-top paths, followed by a
// refinement sweep over the anonymous region that prunes on utility bounds.
type FLASH struct {
	space    *lattice.SolutionSpace
	checker  *check.NodeChecker
	strategy *Strategy
	sink     ProgressSink
	logger   *logrus.Logger

	optimum Optimum
}

// NewFLASH creates a traversal over the given search state.
func NewFLASH(space *lattice.SolutionSpace, checker *check.NodeChecker, strategy *Strategy, sink ProgressSink, logger *logrus.Logger) *FLASH {
	if sink == nil {
		sink = NoopSink{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &FLASH{
		space:    space,
		checker:  checker,
		strategy: strategy,
		sink:     sink,
		logger:   logger,
	}
}

// Traverse runs both phases and returns the optimum.
func (f *FLASH) Traverse() Optimum {
	f.findFrontier()
	f.refine()

	f.logger.WithFields(logrus.Fields{
		"checked": f.checker.CheckedCount(),
		"found":   f.optimum.Found,
	}).Debug("Traversal finished")
	return f.optimum
}

// findFrontier locates the border between anonymous and not-anonymous nodes.
// Every untagged node seeds a greedy path toward the top which is then
// binary-searched, so each path check settles half the remaining range.
func (f *FLASH) findFrontier() {
	for level := 0; level <= f.space.MaxLevel(); level++ {
		for _, id := range f.space.UnsafeNodesAtLevel(level) {
			if f.tagged(id) || f.space.HasProperty(id, lattice.PropertyVisited) {
				continue
			}
			path := f.buildPath(id)
			f.checkPathBinary(path)
		}
	}
}

// tagged reports whether the node's anonymity verdict is already implied
func (f *FLASH) tagged(id int64) bool {
	return f.space.HasProperty(id, lattice.PropertyAnonymous) ||
		f.space.HasProperty(id, lattice.PropertyNotAnonymous) ||
		f.space.HasProperty(id, lattice.PropertyNotKAnonymous)
}

// buildPath ascends from the given node toward the top, choosing at each step
// the strategically first unvisited successor. Successor enumeration is in
// reverse dimensional order; the strategy reorders it deterministically.
func (f *FLASH) buildPath(id int64) []int64 {
	path := []int64{id}
	f.space.PutProperty(id, lattice.PropertyVisited)
	current := id
	for {
		successors := f.space.Successors(current)
		if len(successors) == 0 {
			break
		}
		f.space.PutProperty(current, lattice.PropertyExpanded)
		f.strategy.Sort(successors)
		next := int64(-1)
		for _, s := range successors {
			if !f.space.HasProperty(s, lattice.PropertyVisited) {
				next = s
				break
			}
		}
		if next < 0 {
			break
		}
		f.space.PutProperty(next, lattice.PropertyVisited)
		path = append(path, next)
		current = next
	}
	return path
}

// checkPathBinary finds the lowest anonymous node on the path
func (f *FLASH) checkPathBinary(path []int64) {
	low, high := 0, len(path)-1
	for low <= high {
		mid := (low + high) / 2
		if f.isAnonymous(path[mid]) {
			high = mid - 1
		} else {
			low = mid + 1
		}
	}
}

// isAnonymous resolves the anonymity of a node, checking it if necessary
func (f *FLASH) isAnonymous(id int64) bool {
	if f.space.HasProperty(id, lattice.PropertyAnonymous) {
		return true
	}
	if f.space.HasProperty(id, lattice.PropertyNotAnonymous) ||
		f.space.HasProperty(id, lattice.PropertyNotKAnonymous) {
		return false
	}
	result := f.checker.Check(id)
	f.sink.Progress(f.checker.CheckedCount(), f.space.Size())
	if result.Anonymous {
		f.track(id, result.Loss)
	}
	return result.Anonymous
}

// refine sweeps the anonymous region bottom-up for the minimal loss, pruning
// whole cones whose bound cannot beat the best known solution.
func (f *FLASH) refine() {
	for level := 0; level <= f.space.MaxLevel(); level++ {
		for _, id := range f.space.UnsafeNodesAtLevel(level) {
			if f.space.HasProperty(id, lattice.PropertyNotAnonymous) ||
				f.space.HasProperty(id, lattice.PropertyNotKAnonymous) ||
				f.space.HasProperty(id, lattice.PropertySuccessorsPruned) ||
				f.space.HasProperty(id, lattice.PropertyInsufficientUtility) {
				continue
			}

			var anonymous bool
			var loss, bound float64
			if f.space.HasProperty(id, lattice.PropertyChecked) {
				anonymous = f.space.HasProperty(id, lattice.PropertyAnonymous)
				loss, _ = f.space.Loss(id)
				bound, _ = f.space.LowerBound(id)
			} else {
				result := f.checker.Check(id)
				f.sink.Progress(f.checker.CheckedCount(), f.space.Size())
				anonymous = result.Anonymous
				loss = result.Loss
				bound = result.Bound
			}

			if f.optimum.Found && bound >= f.optimum.Loss {
				f.space.PutProperty(id, lattice.PropertyInsufficientUtility)
				continue
			}
			if anonymous {
				f.track(id, loss)
			}
		}
	}
}

func (f *FLASH) track(id int64, loss float64) {
	if !f.optimum.Found || loss < f.optimum.Loss ||
		(loss == f.optimum.Loss && id < f.optimum.ID) {
		f.optimum = Optimum{Found: true, ID: id, Loss: loss}
	}
}
