package check

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonymizer/internal/criteria"
	"github.com/inferloop/anonymizer/internal/groupify"
	"github.com/inferloop/anonymizer/internal/hierarchy"
	"github.com/inferloop/anonymizer/internal/history"
	"github.com/inferloop/anonymizer/internal/lattice"
	"github.com/inferloop/anonymizer/internal/metric"
	"github.com/inferloop/anonymizer/pkg/models"
)

// Age hierarchy: 25,26 -> 25* and 51,52 -> 5*
func ageHierarchy(t *testing.T) *hierarchy.Hierarchy {
	t.Helper()
	h, err := hierarchy.New("age", [][]int{
		{0, 4},
		{1, 4},
		{2, 5},
		{3, 5},
	})
	require.NoError(t, err)
	return h
}

func zipHierarchy(t *testing.T) *hierarchy.Hierarchy {
	t.Helper()
	h, err := hierarchy.New("zip", [][]int{
		{0, 4, 6},
		{1, 4, 6},
		{2, 5, 6},
		{3, 5, 6},
	})
	require.NoError(t, err)
	return h
}

type fixture struct {
	space   *lattice.SolutionSpace
	history *history.History
	checker *NodeChecker
}

func newFixture(t *testing.T, data [][]int, hierarchies []*hierarchy.Hierarchy, allowedOutliers float64, k int) *fixture {
	t.Helper()
	qi := make([]int, len(hierarchies))
	for d := range qi {
		qi[d] = d
	}
	ds := models.NewDataset(data, nil, qi, nil)

	minLevels := make([]int, len(hierarchies))
	maxLevels := make([]int, len(hierarchies))
	for d, h := range hierarchies {
		maxLevels[d] = h.Height() - 1
	}
	space, err := lattice.NewSolutionSpace(minLevels, maxLevels, models.MonotonicityFull, nil)
	require.NoError(t, err)

	hist, err := history.New(200, ds.Rows(), 0.9, 0.9, nil)
	require.NoError(t, err)

	m := metric.NewEntropyLoss(0.5)
	require.NoError(t, m.Initialize(hierarchies, ds.Rows()))

	crits := []criteria.Criterion{&criteria.KAnonymity{K: k}}
	checker := NewNodeChecker(ds, hierarchies, space, hist, m, crits, allowedOutliers, nil, nil)
	return &fixture{space: space, history: hist, checker: checker}
}

func TestCheckSingletonsNotAnonymous(t *testing.T) {
	f := newFixture(t, [][]int{{0}, {1}, {2}, {3}}, []*hierarchy.Hierarchy{ageHierarchy(t)}, 0, 2)

	bottom := f.space.Bottom()
	result := f.checker.Check(bottom)

	assert.False(t, result.Anonymous)
	assert.False(t, result.KAnonymous)
	assert.True(t, f.space.HasProperty(bottom, lattice.PropertyChecked))
	assert.True(t, f.space.HasProperty(bottom, lattice.PropertyNotAnonymous))
	assert.True(t, f.space.HasProperty(bottom, lattice.PropertyNotKAnonymous))
}

func TestCheckGeneralizedIsAnonymous(t *testing.T) {
	f := newFixture(t, [][]int{{0}, {1}, {2}, {3}}, []*hierarchy.Hierarchy{ageHierarchy(t)}, 0, 2)

	top := f.space.Top()
	result := f.checker.Check(top)

	assert.True(t, result.Anonymous)
	assert.True(t, result.KAnonymous)
	// Two classes of two rows, each row losing 0.5
	assert.InDelta(t, 2.0, result.Loss, 1e-9)
	assert.True(t, f.space.HasProperty(top, lattice.PropertyAnonymous))
	assert.True(t, f.space.HasProperty(top, lattice.PropertyKAnonymous))

	loss, ok := f.space.Loss(top)
	require.True(t, ok)
	assert.InDelta(t, 2.0, loss, 1e-9)
}

func TestKAnonymityMonotonicity(t *testing.T) {
	f := newFixture(t, [][]int{{0}, {1}, {2}, {3}}, []*hierarchy.Hierarchy{ageHierarchy(t)}, 0, 2)

	// Not k-anonymous at the bottom implies nothing upward; k-anonymity at
	// the top is inherited by nothing below, but both directions must agree
	// with fresh checks.
	bottom := f.checker.Check(f.space.Bottom())
	top := f.checker.Check(f.space.Top())
	if bottom.KAnonymous {
		assert.True(t, top.KAnonymous)
	}
}

func TestOutlierBudget(t *testing.T) {
	// Classes at level 0: {0:1}, {1:1}, {2:2} with k=2 and 25% suppression:
	// one singleton fits the budget, the second one does not.
	f := newFixture(t, [][]int{{0}, {1}, {2}, {2}}, []*hierarchy.Hierarchy{ageHierarchy(t)}, 0.25, 2)

	result := f.checker.Check(f.space.Bottom())
	assert.False(t, result.Anonymous)
	assert.LessOrEqual(t, result.Suppressed, 1)
}

func TestOutlierBudgetSufficient(t *testing.T) {
	// One failing singleton within a 25% budget
	f := newFixture(t, [][]int{{0}, {2}, {2}, {2}}, []*hierarchy.Hierarchy{ageHierarchy(t)}, 0.25, 2)

	result := f.checker.Check(f.space.Bottom())
	assert.True(t, result.Anonymous)
	assert.Equal(t, 1, result.Suppressed)
	assert.True(t, result.KAnonymous, "suppression keeps the node k-anonymous")
}

func classMultiset(g *groupify.HashGroupify) map[string]int {
	result := make(map[string]int)
	for e := g.First(); e != nil; e = e.NextOrdered {
		key := ""
		for _, v := range e.Key {
			key += string(rune('A' + v))
		}
		result[key] += e.Count
	}
	return result
}

func TestSnapshotEquivalence(t *testing.T) {
	data := [][]int{
		{0, 0}, {0, 1}, {1, 0}, {1, 1},
		{2, 2}, {2, 3}, {3, 2}, {3, 3},
	}
	hierarchies := []*hierarchy.Hierarchy{zipHierarchy(t), zipHierarchy(t)}

	// Check (2,1) first so its snapshot is cached, then groupify (2,2) from it
	withCache := newFixture(t, data, hierarchies, 0, 2)
	mid := withCache.space.ID([]int{2, 1})
	target := withCache.space.ID([]int{2, 2})
	withCache.checker.Check(mid)
	require.NotNil(t, withCache.history.Find(withCache.space, target))
	withCache.checker.Check(target)
	// The checker's partition was just replayed from the (2,1) snapshot
	fromSnapshot := classMultiset(withCache.checker.groupify)

	// A cold checker builds (2,2) from the base data
	cold := newFixture(t, data, hierarchies, 0, 2)
	fromData := classMultiset(cold.checker.Groupify([]int{2, 2}))

	assert.Equal(t, fromData, fromSnapshot)
}

func TestSnapshotReuseYieldsSameVerdictAndLoss(t *testing.T) {
	data := [][]int{
		{0, 0}, {0, 1}, {1, 0}, {1, 1},
		{2, 2}, {2, 3}, {3, 2}, {3, 3},
	}
	hierarchies := []*hierarchy.Hierarchy{zipHierarchy(t), zipHierarchy(t)}

	warm := newFixture(t, data, hierarchies, 0, 2)
	warm.checker.Check(warm.space.ID([]int{2, 1}))
	viaSnapshot := warm.checker.Check(warm.space.ID([]int{2, 2}))

	cold := newFixture(t, data, hierarchies, 0, 2)
	fresh := cold.checker.Check(cold.space.ID([]int{2, 2}))

	assert.Equal(t, fresh.Anonymous, viaSnapshot.Anonymous)
	assert.InDelta(t, fresh.Loss, viaSnapshot.Loss, 1e-9)
	assert.InDelta(t, fresh.Bound, viaSnapshot.Bound, 1e-9)
}

func TestBoundNeverExceedsLoss(t *testing.T) {
	f := newFixture(t, [][]int{{0}, {1}, {2}, {3}}, []*hierarchy.Hierarchy{ageHierarchy(t)}, 0.25, 2)

	ids := f.space.UnsafeAllNodes()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		result := f.checker.Check(id)
		assert.LessOrEqual(t, result.Bound, result.Loss+1e-12)
	}
}
