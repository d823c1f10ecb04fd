package core

import (
	"math"
	"math/rand"
	"testing"

	"github.com/apache/arrow/go/v13/arrow"
	"github.com/apache/arrow/go/v13/arrow/array"
	"github.com/apache/arrow/go/v13/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syerrors "github.com/symgo/symreg/pkg/errors"
	"github.com/symgo/symreg/pkg/expr"
)

func testDataset(t *testing.T) *Dataset {
	t.Helper()
	ds, err := NewDataset(
		[][]float64{{1, 2, 3, 4}},
		[][]float64{{1, 4, 9, 16}},
		nil, []string{"a"})
	require.NoError(t, err)
	return ds
}

func TestNewDatasetValidation(t *testing.T) {
	tests := []struct {
		name    string
		X, Y    [][]float64
		weights []float64
		names   []string
		wantErr bool
	}{
		{"valid", [][]float64{{1, 2}}, [][]float64{{1, 2}}, nil, nil, false},
		{"no features", nil, [][]float64{{1}}, nil, nil, true},
		{"no targets", [][]float64{{1}}, nil, nil, nil, true},
		{"ragged feature", [][]float64{{1, 2}, {1}}, [][]float64{{1, 2}}, nil, nil, true},
		{"ragged target", [][]float64{{1, 2}}, [][]float64{{1}}, nil, nil, true},
		{"bad weights", [][]float64{{1, 2}}, [][]float64{{1, 2}}, []float64{1}, nil, true},
		{"bad names", [][]float64{{1, 2}}, [][]float64{{1, 2}}, nil, []string{"a", "b"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDataset(tt.X, tt.Y, tt.weights, tt.names)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatasetDefaultVarNames(t *testing.T) {
	ds, err := NewDataset([][]float64{{1}, {2}}, [][]float64{{3}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x0", "x1"}, ds.VarNames)
}

func TestDatasetBatch(t *testing.T) {
	ds := testDataset(t)

	sub := ds.Batch([]int{0, 2})
	assert.Equal(t, 2, sub.NumRows())
	assert.Equal(t, []float64{1, 3}, sub.X[0])
	assert.Equal(t, []float64{1, 9}, sub.Y[0])

	assert.Same(t, ds, ds.Batch(nil), "nil index means full dataset")
}

func TestSampleBatchSeeded(t *testing.T) {
	ds := testDataset(t)
	a := ds.SampleBatch(rand.New(rand.NewSource(3)), 3)
	b := ds.SampleBatch(rand.New(rand.NewSource(3)), 3)
	assert.Equal(t, a, b, "batch sampling must be reproducible under a fixed seed")

	assert.Nil(t, ds.SampleBatch(rand.New(rand.NewSource(3)), 0))
	assert.Nil(t, ds.SampleBatch(rand.New(rand.NewSource(3)), 10), "batch >= rows means full dataset")
}

func TestDatasetFromArrow(t *testing.T) {
	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Float64},
		{Name: "y", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()
	b.Field(0).(*array.Float64Builder).AppendValues([]float64{1, 2, 3}, nil)
	b.Field(1).(*array.Float64Builder).AppendValues([]float64{2, 4, 6}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	ds, err := DatasetFromArrow(rec, "y")
	require.NoError(t, err)
	assert.Equal(t, 1, ds.NumFeatures())
	assert.Equal(t, []string{"a"}, ds.VarNames)
	assert.Equal(t, []float64{2, 4, 6}, ds.Y[0])

	_, err = DatasetFromArrow(rec, "missing")
	assert.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	opts := DefaultOptions()
	require.NoError(t, opts.Validate())
}

func TestOptionsPopulationSmallerThanTournament(t *testing.T) {
	opts := DefaultOptions()
	opts.PopulationSize = 5
	opts.TournamentSelectionN = 12

	err := opts.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, syerrors.New(syerrors.InvalidConfiguration, ""))
}

func TestOptionsExactlyOneLoss(t *testing.T) {
	both := DefaultOptions()
	both.LossFunc = L2Loss
	assert.Error(t, both.Validate(), "both loss styles set")

	neither := DefaultOptions()
	neither.LossName = ""
	assert.Error(t, neither.Validate(), "no loss style set")

	userOnly := DefaultOptions()
	userOnly.LossName = ""
	userOnly.LossFunc = L2Loss
	assert.NoError(t, userOnly.Validate())
}

func TestOptionsUnknownLoss(t *testing.T) {
	opts := DefaultOptions()
	opts.LossName = "nope"
	assert.Error(t, opts.Validate())
}

func TestOptionsDeterministicNeedsSingleWorker(t *testing.T) {
	opts := DefaultOptions()
	opts.Deterministic = true
	opts.NumWorkers = 4
	assert.Error(t, opts.Validate())

	opts.NumWorkers = 1
	assert.NoError(t, opts.Validate())
}

func TestBuiltinLosses(t *testing.T) {
	pred := []float64{1, 2}
	target := []float64{0, 4}

	assert.InDelta(t, 2.5, L2Loss(pred, target, nil), 1e-12)
	assert.InDelta(t, 1.5, L1Loss(pred, target, nil), 1e-12)
	assert.InDelta(t, (0.5+1.5)/2, HuberLoss(pred, target, nil), 1e-12)

	// Weighted: second row only.
	assert.InDelta(t, 4.0, L2Loss(pred, target, []float64{0, 1}), 1e-12)
}

func TestEvalLoss(t *testing.T) {
	ds := testDataset(t)
	opts := DefaultOptions()

	// a*a fits exactly.
	tree := expr.NewBinary(expr.OpMul, expr.NewVariable(0), expr.NewVariable(0))
	loss, err := EvalLoss(tree, ds, opts, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, loss, 1e-12)
}

func TestEvalLossFailureIsInf(t *testing.T) {
	ds := testDataset(t)
	opts := DefaultOptions()

	// log(-a) fails on positive inputs.
	tree := expr.NewUnary(expr.OpLog, expr.NewUnary(expr.OpNeg, expr.NewVariable(0)))
	loss, err := EvalLoss(tree, ds, opts, nil)
	require.NoError(t, err, "evaluation failure is not an error")
	assert.True(t, math.IsInf(loss, 1))
}

func TestEvalLossNegativeIsFatal(t *testing.T) {
	ds := testDataset(t)
	opts := DefaultOptions()
	opts.LossName = ""
	opts.LossFunc = func(pred, target, weights []float64) float64 { return -1 }

	_, err := EvalLoss(expr.NewVariable(0), ds, opts, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, syerrors.New(syerrors.InvalidConfiguration, ""))
}

func TestPopMemberCopyIsDeep(t *testing.T) {
	opts := DefaultOptions()
	tree := expr.NewBinary(expr.OpAdd, expr.NewConstant(1), expr.NewVariable(0))
	m := NewPopMember(tree, 0.5, 3, opts)

	cp := m.Copy()
	assert.Equal(t, m.ID, cp.ID)
	assert.Equal(t, m.Loss, cp.Loss)
	require.True(t, expr.Equal(m.Tree, cp.Tree))

	cp.Tree.L.Value = 42
	assert.Equal(t, 1.0, m.Tree.L.Value, "copy must own its tree")
}

func TestScoreOf(t *testing.T) {
	opts := DefaultOptions()
	opts.Parsimony = 0.1

	assert.InDelta(t, 1.5, ScoreOf(1.0, 5, opts), 1e-12)
	assert.True(t, math.IsInf(ScoreOf(math.Inf(1), 5, opts), 1))
}
