// Package datasets loads tabular data into core.Dataset values: CSV files
// with header-derived variable names, plus synthetic generators for tests
// and demos.
package datasets

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/errors"
)

// LoadCSV reads a headered CSV file into a Dataset. The column named
// targetCol becomes the target; every other column is a feature named after
// its header.
func LoadCSV(path, targetCol string) (*core.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "open dataset")
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "parse dataset")
	}
	if len(rows) < 2 {
		return nil, errors.New(errors.InvalidConfiguration, "dataset needs a header and at least one row")
	}

	header := rows[0]
	targetIdx := -1
	for i, name := range header {
		if name == targetCol {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return nil, errors.Newf(errors.InvalidConfiguration, "no column %q in %s", targetCol, path)
	}

	nrows := len(rows) - 1
	cols := make([][]float64, len(header))
	for i := range cols {
		cols[i] = make([]float64, nrows)
	}
	for r, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, errors.Newf(errors.InvalidConfiguration, "row %d has %d fields, want %d", r+2, len(row), len(header))
		}
		for c, field := range row {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrap(err, errors.InvalidConfiguration, "non-numeric field")
			}
			cols[c][r] = v
		}
	}

	var (
		X     [][]float64
		names []string
	)
	for i, col := range cols {
		if i == targetIdx {
			continue
		}
		X = append(X, col)
		names = append(names, header[i])
	}
	return core.NewDataset(X, [][]float64{cols[targetIdx]}, nil, names)
}
