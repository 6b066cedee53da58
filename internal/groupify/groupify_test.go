package groupify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRowGroupsByKey(t *testing.T) {
	g := New(16, 0)
	g.AddRow([]int{1, 2}, 0, nil)
	g.AddRow([]int{1, 2}, 0, nil)
	g.AddRow([]int{3, 4}, 0, nil)

	assert.Equal(t, 2, g.Classes())
	assert.Equal(t, 3, g.Rows())

	first := g.First()
	require.NotNil(t, first)
	assert.Equal(t, []int{1, 2}, first.Key)
	assert.Equal(t, 2, first.Count)
	assert.True(t, first.IsNotOutlier)

	second := first.NextOrdered
	require.NotNil(t, second)
	assert.Equal(t, []int{3, 4}, second.Key)
	assert.Equal(t, 1, second.Count)
	assert.Nil(t, second.NextOrdered)
}

func TestInsertionOrderIsStable(t *testing.T) {
	keys := [][]int{{5}, {1}, {9}, {1}, {5}, {3}}
	g := New(16, 0)
	for _, k := range keys {
		g.AddRow(k, 0, nil)
	}

	var order []int
	for e := g.First(); e != nil; e = e.NextOrdered {
		order = append(order, e.Key[0])
	}
	assert.Equal(t, []int{5, 1, 9, 3}, order)
}

func TestSensitiveDistributions(t *testing.T) {
	g := New(16, 1)
	g.AddRow([]int{1}, 0, []int{7})
	g.AddRow([]int{1}, 0, []int{7})
	g.AddRow([]int{1}, 0, []int{8})

	e := g.First()
	require.NotNil(t, e)
	d := e.Distributions[0]
	assert.Equal(t, 2, d.Distinct())
	assert.Equal(t, 3, d.Total())
	assert.Equal(t, 2, d.Count(7))
	assert.Equal(t, []int{7, 8}, d.Values())
}

func TestAddClassMerges(t *testing.T) {
	g := New(16, 1)
	d1 := NewDistribution()
	d1.AddCount(7, 2)
	g.AddClass([]int{1}, 2, 10, []*Distribution{d1})

	d2 := NewDistribution()
	d2.AddCount(8, 3)
	g.AddClass([]int{1}, 3, 5, []*Distribution{d2})

	assert.Equal(t, 1, g.Classes())
	e := g.First()
	assert.Equal(t, 5, e.Count)
	assert.Equal(t, 15, e.PCount)
	assert.Equal(t, 2, e.Distributions[0].Distinct())
	assert.Equal(t, 5, e.Distributions[0].Total())
}

func TestResetReusesBuckets(t *testing.T) {
	g := New(4, 0)
	for i := 0; i < 100; i++ {
		g.AddRow([]int{i}, 0, nil)
	}
	assert.Equal(t, 100, g.Classes())

	g.Reset()
	assert.Equal(t, 0, g.Classes())
	assert.Equal(t, 0, g.Rows())
	assert.Nil(t, g.First())

	g.AddRow([]int{42}, 0, nil)
	assert.Equal(t, 1, g.Classes())
	assert.Equal(t, []int{42}, g.First().Key)
}

func TestGet(t *testing.T) {
	g := New(16, 0)
	g.AddRow([]int{1, 2}, 0, nil)

	require.NotNil(t, g.Get([]int{1, 2}))
	assert.Nil(t, g.Get([]int{2, 1}))
}

func TestKeyIsCopied(t *testing.T) {
	g := New(16, 0)
	key := []int{1, 2}
	g.AddRow(key, 0, nil)
	key[0] = 99

	assert.Equal(t, []int{1, 2}, g.First().Key)
}
