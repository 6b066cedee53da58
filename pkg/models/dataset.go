package models

// AttributeType classifies the role of a column in the anonymization process.
// Only quasi-identifying attributes participate in the generalization lattice.
type AttributeType string

const (
	AttributeIdentifying      AttributeType = "identifying"
	AttributeQuasiIdentifying AttributeType = "quasi_identifying"
	AttributeSensitive        AttributeType = "sensitive"
	AttributeInsensitive      AttributeType = "insensitive"
)

// Dataset is a read-only, dictionary-encoded view of a tabular micro-dataset.
// Every cell holds an integer code from the per-column dictionary; decoding
// back to strings is the caller's concern.
type Dataset struct {
	rows             int
	cols             int
	data             [][]int
	names            []string
	qiIndices        []int
	sensitiveIndices []int
	population       []int
}

// NewDataset creates a dataset view over row-major dictionary codes.
// qiIndices and sensitiveIndices refer to column positions.
func NewDataset(data [][]int, names []string, qiIndices, sensitiveIndices []int) *Dataset {
	cols := 0
	if len(data) > 0 {
		cols = len(data[0])
	}
	return &Dataset{
		rows:             len(data),
		cols:             cols,
		data:             data,
		names:            names,
		qiIndices:        append([]int(nil), qiIndices...),
		sensitiveIndices: append([]int(nil), sensitiveIndices...),
	}
}

// Rows returns the number of records
func (d *Dataset) Rows() int { return d.rows }

// Cols returns the number of columns
func (d *Dataset) Cols() int { return d.cols }

// Value returns the dictionary code stored at (row, col)
func (d *Dataset) Value(row, col int) int { return d.data[row][col] }

// Name returns the column name, or an empty string if names were not provided
func (d *Dataset) Name(col int) string {
	if col < len(d.names) {
		return d.names[col]
	}
	return ""
}

// QIIndices returns the quasi-identifier column positions
func (d *Dataset) QIIndices() []int { return d.qiIndices }

// SensitiveIndices returns the sensitive column positions
func (d *Dataset) SensitiveIndices() []int { return d.sensitiveIndices }

// SetPopulationCounts attaches per-row population frequencies for the
// journalist attacker model. Rows without a frequency default to zero, which
// makes downstream consumers fall back to the prosecutor model.
func (d *Dataset) SetPopulationCounts(counts []int) {
	d.population = append([]int(nil), counts...)
}

// PopulationCount returns the population frequency of the given row, or zero
func (d *Dataset) PopulationCount(row int) int {
	if row < len(d.population) {
		return d.population[row]
	}
	return 0
}
