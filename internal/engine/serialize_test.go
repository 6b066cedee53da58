package engine

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/anonymizer/internal/lattice"
	"github.com/inferloop/anonymizer/pkg/models"
)

func newSerializeSpace(t *testing.T, monotonicity models.Monotonicity) *lattice.SolutionSpace {
	t.Helper()
	s, err := lattice.NewSolutionSpace([]int{0, 0}, []int{2, 2}, monotonicity, nil)
	require.NoError(t, err)
	return s
}

func TestWriteAndReadLattice(t *testing.T) {
	src := newSerializeSpace(t, models.MonotonicityNone)

	anonymous := src.ID([]int{1, 1})
	rejected := src.ID([]int{0, 1})
	src.PutProperty(anonymous, lattice.PropertyChecked)
	src.PutProperty(anonymous, lattice.PropertyAnonymous)
	src.SetLoss(anonymous, 2.5, 2.5)
	src.PutProperty(rejected, lattice.PropertyChecked)
	src.PutProperty(rejected, lattice.PropertyNotAnonymous)
	src.SetLoss(rejected, 0.5, 0.5)

	var buf bytes.Buffer
	require.NoError(t, WriteLattice(&buf, src))

	dst := newSerializeSpace(t, models.MonotonicityNone)
	require.NoError(t, ReadLattice(&buf, dst))

	assert.True(t, dst.HasProperty(anonymous, lattice.PropertyChecked))
	assert.True(t, dst.HasProperty(anonymous, lattice.PropertyAnonymous))
	loss, ok := dst.Loss(anonymous)
	require.True(t, ok)
	assert.Equal(t, 2.5, loss)

	assert.True(t, dst.HasProperty(rejected, lattice.PropertyChecked))
	assert.True(t, dst.HasProperty(rejected, lattice.PropertyNotAnonymous))
	assert.False(t, dst.HasProperty(rejected, lattice.PropertyAnonymous))
}

func TestReadLatticePropagatesUnderFullMonotonicity(t *testing.T) {
	records := "1,1\tanonymous\t2.5\n"
	dst := newSerializeSpace(t, models.MonotonicityFull)
	require.NoError(t, ReadLattice(strings.NewReader(records), dst))

	// The anonymous verdict is predictive upward
	assert.True(t, dst.HasProperty(dst.ID([]int{2, 2}), lattice.PropertyAnonymous))
	assert.False(t, dst.HasProperty(dst.ID([]int{0, 0}), lattice.PropertyAnonymous))
}

func TestReadLatticeRejectsMalformed(t *testing.T) {
	dst := newSerializeSpace(t, models.MonotonicityNone)

	assert.Error(t, ReadLattice(strings.NewReader("1,1\tanonymous\n"), dst))
	assert.Error(t, ReadLattice(strings.NewReader("1\tanonymous\t2.5\n"), dst))
	assert.Error(t, ReadLattice(strings.NewReader("1,1\tmaybe\t2.5\n"), dst))
	assert.Error(t, ReadLattice(strings.NewReader("1,1\tanonymous\tnope\n"), dst))
}

func TestReadLatticeSkipsBlankLines(t *testing.T) {
	records := "\n1,0\tnot_anonymous\t0.25\n\n"
	dst := newSerializeSpace(t, models.MonotonicityNone)
	require.NoError(t, ReadLattice(strings.NewReader(records), dst))
	assert.True(t, dst.HasProperty(dst.ID([]int{1, 0}), lattice.PropertyChecked))
}
