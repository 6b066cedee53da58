package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const patientsCSV = `age,zipcode,diagnosis
25,13053,flu
26,13068,cancer
51,14853,flu
52,14850,cold
`

func TestReadTable(t *testing.T) {
	loader := NewLoader(nil)
	table, err := loader.ReadTable(strings.NewReader(patientsCSV))
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "zipcode", "diagnosis"}, table.Header)
	assert.Len(t, table.Records, 4)
}

func TestEncode(t *testing.T) {
	loader := NewLoader(nil)
	table, err := loader.ReadTable(strings.NewReader(patientsCSV))
	require.NoError(t, err)

	ds, dict, err := loader.Encode(table, []int{0, 1}, []int{2})
	require.NoError(t, err)

	assert.Equal(t, 4, ds.Rows())
	assert.Equal(t, 3, ds.Cols())
	assert.Equal(t, []int{0, 1}, ds.QIIndices())
	assert.Equal(t, []int{2}, ds.SensitiveIndices())

	// Same strings share a code, decode round-trips
	assert.Equal(t, ds.Value(0, 2), ds.Value(2, 2))
	assert.Equal(t, "flu", dict.Decode(2, ds.Value(0, 2)))
	assert.Equal(t, "25", dict.Decode(0, ds.Value(0, 0)))
}

func TestEncodeRejectsRagged(t *testing.T) {
	loader := NewLoader(nil)
	table := &Table{Header: []string{"a", "b"}, Records: [][]string{{"1"}}}
	_, _, err := loader.Encode(table, []int{0}, nil)
	require.Error(t, err)
}

func TestDictionaryRegisterIsIdempotent(t *testing.T) {
	dict := NewDictionary(1)
	a := dict.Register(0, "x")
	b := dict.Register(0, "x")
	c := dict.Register(0, "y")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 2, dict.Size(0))
	assert.Equal(t, "x", dict.Decode(0, a))
	assert.Equal(t, "", dict.Decode(0, 99))
}
