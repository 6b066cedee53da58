package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonymizer/internal/groupify"
	"github.com/inferloop/anonymizer/internal/hierarchy"
	"github.com/inferloop/anonymizer/pkg/models"
)

func classWithValues(count int, values ...int) *groupify.Entry {
	g := groupify.New(4, 1)
	var e *groupify.Entry
	for i := 0; i < count; i++ {
		e = g.AddRow([]int{0}, 0, []int{values[i%len(values)]})
	}
	return e
}

func TestKAnonymity(t *testing.T) {
	c := &KAnonymity{K: 3}
	assert.True(t, c.IsMonotonic())
	assert.False(t, c.IsAnonymous(classWithValues(2, 1)))
	assert.True(t, c.IsAnonymous(classWithValues(3, 1)))
}

func TestDistinctLDiversity(t *testing.T) {
	c := &DistinctLDiversity{L: 2, DistIndex: 0}
	assert.False(t, c.IsAnonymous(classWithValues(4, 7)))
	assert.True(t, c.IsAnonymous(classWithValues(4, 7, 8)))
}

func TestEntropyLDiversity(t *testing.T) {
	c := &EntropyLDiversity{L: 2, DistIndex: 0}
	// Uniform over two values has entropy log(2)
	assert.True(t, c.IsAnonymous(classWithValues(4, 7, 8)))
	// Skewed 3:1 has entropy below log(2)
	assert.False(t, c.IsAnonymous(classWithValues(4, 7, 7, 7, 8)))
	// A single value always fails for L >= 2
	assert.False(t, c.IsAnonymous(classWithValues(4, 7)))
}

func TestRecursiveCLDiversity(t *testing.T) {
	c := &RecursiveCLDiversity{C: 2, L: 2, DistIndex: 0}
	// Frequencies 2,2: r1=2 < 2*2
	assert.True(t, c.IsAnonymous(classWithValues(4, 7, 8)))
	// Frequencies 3,1: r1=3 >= 2*1
	assert.False(t, c.IsAnonymous(classWithValues(4, 7, 7, 7, 8)))
	// Too few distinct values
	assert.False(t, c.IsAnonymous(classWithValues(4, 7)))
}

func TestEqualTCloseness(t *testing.T) {
	global := map[int]float64{7: 0.5, 8: 0.5}

	strict := NewEqualTCloseness(0.1, 0, global)
	loose := NewEqualTCloseness(0.6, 0, global)

	balanced := classWithValues(4, 7, 8)
	skewed := classWithValues(4, 7)

	assert.True(t, strict.IsAnonymous(balanced))
	// All mass on one value: distance 0.5
	assert.False(t, strict.IsAnonymous(skewed))
	assert.True(t, loose.IsAnonymous(skewed))
}

func TestHierarchicalTCloseness(t *testing.T) {
	// Values 0,1 generalize to 4; values 2,3 to 5
	h, err := hierarchy.New("disease", [][]int{
		{0, 4, 6},
		{1, 4, 6},
		{2, 5, 6},
		{3, 5, 6},
	})
	require.NoError(t, err)

	global := map[int]float64{0: 0.25, 1: 0.25, 2: 0.25, 3: 0.25}

	// One value per subtree: the surplus mass only travels to a sibling, so
	// the hierarchical distance (0.25) is half the equal distance (0.5).
	withinSubtrees := classWithValues(4, 0, 2)
	concentrated := classWithValues(4, 0)

	c := NewHierarchicalTCloseness(0.3, 0, global, h)
	assert.True(t, c.IsAnonymous(withinSubtrees))

	equal := NewEqualTCloseness(0.3, 0, global)
	assert.False(t, equal.IsAnonymous(withinSubtrees))

	// All mass on one leaf has to cross subtrees as well
	assert.False(t, c.IsAnonymous(concentrated))
}

func TestGlobalDistribution(t *testing.T) {
	ds := models.NewDataset([][]int{{7}, {7}, {8}, {9}}, nil, nil, []int{0})
	global := GlobalDistribution(ds, 0)
	assert.InDelta(t, 0.5, global[7], 1e-12)
	assert.InDelta(t, 0.25, global[8], 1e-12)
	assert.InDelta(t, 0.25, global[9], 1e-12)
}

func TestFromSpecs(t *testing.T) {
	ds := models.NewDataset([][]int{{0, 7}, {1, 8}}, nil, []int{0}, []int{1})

	crits, err := FromSpecs([]models.CriterionSpec{
		{Kind: models.CriterionKAnonymity, K: 2},
		{Kind: models.CriterionDistinctLDiversity, L: 2, SensitiveIndex: 1},
	}, ds, nil)
	require.NoError(t, err)
	require.Len(t, crits, 2)
	assert.IsType(t, &KAnonymity{}, crits[0])
	assert.IsType(t, &DistinctLDiversity{}, crits[1])
}

func TestFromSpecsRejectsUndeclaredSensitive(t *testing.T) {
	ds := models.NewDataset([][]int{{0, 7}}, nil, []int{0}, nil)
	_, err := FromSpecs([]models.CriterionSpec{
		{Kind: models.CriterionDistinctLDiversity, L: 2, SensitiveIndex: 1},
	}, ds, nil)
	require.Error(t, err)
}
