package search

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/errors"
	"github.com/symgo/symreg/pkg/expr"
)

func driverOptions() *core.Options {
	opts := core.DefaultOptions()
	opts.NumPopulations = 2
	opts.PopulationSize = 33
	opts.Iterations = 8
	opts.CyclesPerIteration = 30
	opts.Deterministic = true
	opts.NumWorkers = 1
	opts.Seed = 42
	return opts
}

func TestDriverFindsSquare(t *testing.T) {
	ds := squareDataset(t)
	opts := driverOptions()

	driver, err := NewDriver(ds, opts)
	require.NoError(t, err)

	result, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.HallsOfFame, 1)
	assert.Positive(t, result.Evaluations)

	rep := result.Report(0)
	require.NotEmpty(t, rep.Strings)

	// Losses along the frontier are strictly decreasing.
	for i := 1; i < len(rep.Losses); i++ {
		assert.Less(t, rep.Losses[i], rep.Losses[i-1])
	}

	hasComplexityOne := false
	result.HallsOfFame[0].Each(func(m *core.PopMember, complexity int) {
		if complexity == 1 {
			hasComplexityOne = true
		}
	})
	assert.True(t, hasComplexityOne, "the simplest slot fills from the initial populations alone")

	best, ok := result.HallsOfFame[0].BestIndex(BestByLoss)
	require.True(t, ok)
	// The best constant model scores about 7.2 on this data; anything below
	// that learned structure from the input.
	assert.Less(t, best.Loss, 3.0)
	assert.Contains(t, expr.String(best.Member.Tree, ds.VarNames), "a")
}

func TestDriverDeterministicReproducibility(t *testing.T) {
	ds := squareDataset(t)

	run := func() Report {
		driver, err := NewDriver(ds, driverOptions())
		require.NoError(t, err)
		result, err := driver.Run(context.Background())
		require.NoError(t, err)
		return result.Report(0)
	}

	first := run()
	second := run()
	assert.Equal(t, first.Strings, second.Strings)
	assert.Equal(t, first.Losses, second.Losses)
}

func TestDriverAllEvaluationsFail(t *testing.T) {
	ds := squareDataset(t)
	opts := driverOptions()
	opts.Iterations = 2
	opts.CyclesPerIteration = 5
	opts.LossName = ""
	opts.LossFunc = func(pred, target, weights []float64) float64 { return math.NaN() }

	driver, err := NewDriver(ds, opts)
	require.NoError(t, err)

	result, err := driver.Run(context.Background())
	require.NoError(t, err, "a fruitless run is not an error")
	assert.True(t, result.HallsOfFame[0].Empty())

	_, ok := result.HallsOfFame[0].BestIndex(BestByLoss)
	assert.False(t, ok)

	_, err = result.Predict(ds.X, 0, BestByLoss)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.New(errors.NoResult, ""))
}

func TestDriverPredict(t *testing.T) {
	ds := squareDataset(t)
	opts := driverOptions()
	opts.EarlyStop = func(loss float64, complexity int) bool { return loss < 1e-8 }

	driver, err := NewDriver(ds, opts)
	require.NoError(t, err)
	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	pred, err := result.Predict([][]float64{{2}}, 0, BestByLoss)
	require.NoError(t, err)
	require.Len(t, pred, 1)
	assert.InDelta(t, 4.0, pred[0], 3.0)

	_, err = result.Predict(ds.X, 5, BestByLoss)
	assert.Error(t, err, "unknown output column")
}

func TestDriverMaxEvalsStops(t *testing.T) {
	ds := squareDataset(t)
	opts := driverOptions()
	opts.MaxEvals = 100

	driver, err := NewDriver(ds, opts)
	require.NoError(t, err)
	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	// The budget is checked between cycles, so a modest overshoot of at most
	// one cycle batch per worker is allowed.
	slack := int64(opts.NumPopulations * opts.PopulationSize * 2)
	assert.LessOrEqual(t, result.Evaluations, int64(opts.MaxEvals)+slack)
}

func TestDriverBudgetSpansOutputs(t *testing.T) {
	n := 20
	xs := make([]float64, n)
	y1 := make([]float64, n)
	y2 := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i + 1)
		y1[i] = xs[i] * xs[i]
		y2[i] = xs[i] + 1
	}
	ds, err := core.NewDataset([][]float64{xs}, [][]float64{y1, y2}, nil, []string{"a"})
	require.NoError(t, err)

	opts := driverOptions()
	opts.Iterations = 3
	opts.MaxEvals = 10 // below the seeding cost of a single output

	driver, err := NewDriver(ds, opts)
	require.NoError(t, err)
	result, err := driver.Run(context.Background())
	require.NoError(t, err)

	seeding := int64(opts.NumPopulations * opts.PopulationSize)
	assert.Equal(t, seeding, result.Evaluations,
		"an exhausted budget stops the next output before it seeds")
	assert.False(t, result.HallsOfFame[0].Empty())
	assert.True(t, result.HallsOfFame[1].Empty())
}

func TestDriverTimeoutIsPartialResult(t *testing.T) {
	ds := squareDataset(t)
	opts := driverOptions()
	opts.Deterministic = false
	opts.Seed = 7
	opts.Iterations = 10000
	opts.Timeout = 200 * time.Millisecond

	driver, err := NewDriver(ds, opts)
	require.NoError(t, err)

	start := time.Now()
	result, err := driver.Run(context.Background())
	require.NoError(t, err, "timeout is normal termination")
	assert.Less(t, time.Since(start), 30*time.Second)
	assert.NotNil(t, result)
}

func TestDriverRejectsInvalidOptions(t *testing.T) {
	ds := squareDataset(t)
	opts := driverOptions()
	opts.PopulationSize = 0

	_, err := NewDriver(ds, opts)
	assert.Error(t, err)
}

func TestDriverDeadContextAtStart(t *testing.T) {
	ds := squareDataset(t)
	driver, err := NewDriver(ds, driverOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = driver.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.New(errors.Canceled, ""))
}

func TestDriverMidRunCancellation(t *testing.T) {
	ds := squareDataset(t)
	opts := driverOptions()
	opts.Iterations = 10000

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	driver, err := NewDriver(ds, opts)
	require.NoError(t, err)
	result, err := driver.Run(ctx)
	require.NoError(t, err, "mid-run cancellation yields partial results")
	require.Len(t, result.HallsOfFame, 1)
}
