// Package core holds the shared data model of the search engine: the
// immutable Dataset, the validated Options, population members and the loss
// functions that score them.
package core

import (
	"fmt"
	"math/rand"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"

	"github.com/symgo/symreg/pkg/errors"
)

// Dataset is the read-only input of a search run. X is column-major: X[f]
// holds feature f across all rows. Y holds one target vector per output
// column; single-output regression has len(Y) == 1.
type Dataset struct {
	X        [][]float64
	Y        [][]float64
	Weights  []float64 // optional, nil means unweighted
	VarNames []string
	Extras   map[string][]float64 // optional named side-channels for user losses

	numRows int
}

// NewDataset validates shapes and constructs a Dataset. Variable names
// default to x0..xN-1 when nil.
func NewDataset(X [][]float64, Y [][]float64, weights []float64, varNames []string) (*Dataset, error) {
	if len(X) == 0 {
		return nil, errors.New(errors.InvalidConfiguration, "dataset has no feature columns")
	}
	if len(Y) == 0 {
		return nil, errors.New(errors.InvalidConfiguration, "dataset has no target columns")
	}
	nrows := len(X[0])
	for f, col := range X {
		if len(col) != nrows {
			return nil, errors.Newf(errors.InvalidConfiguration,
				"feature column %d has %d rows, want %d", f, len(col), nrows)
		}
	}
	for o, col := range Y {
		if len(col) != nrows {
			return nil, errors.Newf(errors.InvalidConfiguration,
				"target column %d has %d rows, want %d", o, len(col), nrows)
		}
	}
	if weights != nil && len(weights) != nrows {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"weights have %d rows, want %d", len(weights), nrows)
	}
	if varNames == nil {
		varNames = make([]string, len(X))
		for i := range varNames {
			varNames[i] = fmt.Sprintf("x%d", i)
		}
	} else if len(varNames) != len(X) {
		return nil, errors.Newf(errors.InvalidConfiguration,
			"%d variable names for %d features", len(varNames), len(X))
	}

	return &Dataset{X: X, Y: Y, Weights: weights, VarNames: varNames, numRows: nrows}, nil
}

// NumRows returns the row count.
func (d *Dataset) NumRows() int { return d.numRows }

// NumFeatures returns the feature column count.
func (d *Dataset) NumFeatures() int { return len(d.X) }

// NumOutputs returns the target column count.
func (d *Dataset) NumOutputs() int { return len(d.Y) }

// ForOutput returns a view of the dataset restricted to one target column.
// Feature columns are shared; the Dataset contract is read-only so sharing is
// safe.
func (d *Dataset) ForOutput(col int) *Dataset {
	return &Dataset{
		X:        d.X,
		Y:        [][]float64{d.Y[col]},
		Weights:  d.Weights,
		VarNames: d.VarNames,
		Extras:   d.Extras,
		numRows:  d.numRows,
	}
}

// SampleBatch draws batchSize row indices with replacement for batched
// evaluation. The rng is owned by the calling worker, keeping deterministic
// mode reproducible.
func (d *Dataset) SampleBatch(rng *rand.Rand, batchSize int) []int {
	if batchSize <= 0 || batchSize >= d.numRows {
		return nil // full dataset
	}
	idx := make([]int, batchSize)
	for i := range idx {
		idx[i] = rng.Intn(d.numRows)
	}
	return idx
}

// Batch materializes the subset of rows given by idx. A nil idx returns the
// dataset itself.
func (d *Dataset) Batch(idx []int) *Dataset {
	if idx == nil {
		return d
	}
	sub := &Dataset{
		X:        make([][]float64, len(d.X)),
		Y:        make([][]float64, len(d.Y)),
		VarNames: d.VarNames,
		Extras:   d.Extras,
		numRows:  len(idx),
	}
	for f, col := range d.X {
		c := make([]float64, len(idx))
		for i, j := range idx {
			c[i] = col[j]
		}
		sub.X[f] = c
	}
	for o, col := range d.Y {
		c := make([]float64, len(idx))
		for i, j := range idx {
			c[i] = col[j]
		}
		sub.Y[o] = c
	}
	if d.Weights != nil {
		w := make([]float64, len(idx))
		for i, j := range idx {
			w[i] = d.Weights[j]
		}
		sub.Weights = w
	}
	return sub
}

// DatasetFromArrow converts a float64-typed arrow record into a Dataset. The
// column named targetCol becomes the target; every other column is a feature
// named after its field.
func DatasetFromArrow(rec arrow.Record, targetCol string) (*Dataset, error) {
	schema := rec.Schema()
	var (
		X         [][]float64
		names     []string
		target    []float64
		hasTarget bool
	)

	for i, field := range schema.Fields() {
		col, ok := rec.Column(i).(*array.Float64)
		if !ok {
			return nil, errors.Newf(errors.InvalidConfiguration,
				"arrow column %q is %s, want float64", field.Name, field.Type)
		}
		vals := make([]float64, col.Len())
		for j := 0; j < col.Len(); j++ {
			vals[j] = col.Value(j)
		}
		if field.Name == targetCol {
			target = vals
			hasTarget = true
			continue
		}
		X = append(X, vals)
		names = append(names, field.Name)
	}

	if !hasTarget {
		return nil, errors.Newf(errors.InvalidConfiguration, "arrow record has no column %q", targetCol)
	}
	return NewDataset(X, [][]float64{target}, nil, names)
}
