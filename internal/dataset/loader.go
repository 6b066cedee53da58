package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonymizer/internal/hierarchy"
	"github.com/inferloop/anonymizer/pkg/errors"
	"github.com/inferloop/anonymizer/pkg/models"
)

// Loader reads CSV micro-data and hierarchy files and dictionary-encodes
// them into the views the engine consumes. Parsing lives outside the core;
// this package is the thin collaborator providing it.
type Loader struct {
	logger *logrus.Logger
}

// NewLoader creates a loader
func NewLoader(logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{logger: logger}
}

// Table is a parsed CSV file: a header and string records.
type Table struct {
	Header  []string
	Records [][]string
}

// LoadTable reads a CSV file with a header row
func (l *Loader) LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeData, "DATA_OPEN", "cannot open data file")
	}
	defer f.Close()
	return l.ReadTable(f)
}

// ReadTable parses CSV content with a header row
func (l *Loader) ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeData, "DATA_PARSE", "cannot parse CSV")
	}
	if len(all) == 0 {
		return nil, errors.NewDataError("DATA_EMPTY", "the input file has no header")
	}
	return &Table{Header: all[0], Records: all[1:]}, nil
}

// Encode dictionary-encodes a table into a dataset view.
func (l *Loader) Encode(t *Table, qiIndices, sensitiveIndices []int) (*models.Dataset, *Dictionary, error) {
	cols := len(t.Header)
	dict := NewDictionary(cols)
	data := make([][]int, len(t.Records))
	for i, record := range t.Records {
		if len(record) != cols {
			return nil, nil, errors.NewDataError("DATA_RAGGED",
				fmt.Sprintf("record %d has %d fields, expected %d", i+1, len(record), cols))
		}
		row := make([]int, cols)
		for c, value := range record {
			row[c] = dict.Register(c, value)
		}
		data[i] = row
	}

	ds := models.NewDataset(data, t.Header, qiIndices, sensitiveIndices)
	l.logger.WithFields(logrus.Fields{
		"rows": ds.Rows(),
		"cols": ds.Cols(),
	}).Debug("Dataset encoded")
	return ds, dict, nil
}

// LoadHierarchy reads a hierarchy CSV for the given column: one row per leaf
// value, columns are generalization levels. Hierarchy strings register in the
// column's dictionary so generalized output decodes uniformly.
func (l *Loader) LoadHierarchy(path string, col int, dict *Dictionary, name string) (*hierarchy.Hierarchy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeData, "HIERARCHY_OPEN", "cannot open hierarchy file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeData, "HIERARCHY_PARSE", "cannot parse hierarchy CSV")
	}

	matrix := make([][]int, len(records))
	for i, record := range records {
		row := make([]int, len(record))
		for level, value := range record {
			row[level] = dict.Register(col, value)
		}
		matrix[i] = row
	}
	return hierarchy.New(name, matrix)
}
