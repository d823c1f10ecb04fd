package search

import (
	"context"
	"math"
	"math/rand"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/errors"
	"github.com/symgo/symreg/pkg/expr"
	"github.com/symgo/symreg/pkg/logging"
	"github.com/symgo/symreg/pkg/optimize"
)

// Driver owns the populations of a search run, schedules evolution cycles
// across workers, triggers migration at iteration boundaries and aggregates
// every evaluated member into the shared Hall of Fame.
type Driver struct {
	opts  *core.Options
	ds    *core.Dataset
	runID string
}

// NewDriver validates the options and binds a driver to the dataset.
func NewDriver(ds *core.Dataset, opts *core.Options) (*Driver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Driver{opts: opts, ds: ds, runID: uuid.NewString()[:8]}, nil
}

// Result is what a completed (or timed-out) run returns: one archive per
// output column, evolved and migrated fully independently.
type Result struct {
	HallsOfFame []*HallOfFame
	Options     *core.Options
	VarNames    []string
	Evaluations int64
}

// Report formats the Pareto frontier of one output column.
func (r *Result) Report(output int) Report {
	return r.HallsOfFame[output].Format(r.VarNames)
}

// Predict evaluates the best archived equation of the given output column
// over X. It returns a NoResult error when the archive is empty — an empty
// archive must surface an explicit failure, never numeric garbage.
func (r *Result) Predict(X [][]float64, output int, criterion BestCriterion) ([]float64, error) {
	if output < 0 || output >= len(r.HallsOfFame) {
		return nil, errors.Newf(errors.InvalidConfiguration, "no output column %d", output)
	}
	best, ok := r.HallsOfFame[output].BestIndex(criterion)
	if !ok {
		return nil, errors.New(errors.NoResult, "no equation was ever successfully evaluated")
	}
	pred, completed := expr.Eval(best.Member.Tree, X)
	if !completed {
		return nil, errors.New(errors.EvaluationFailed, "best equation failed to evaluate on the given input")
	}
	return pred, nil
}

// workerState is the per-population state owned exclusively by one worker
// for the duration of a cycle batch.
type workerState struct {
	pop    *Population
	rng    *rand.Rand
	engine *MutationEngine
}

// Run executes the search until the iteration budget or a stop condition is
// reached. Resource exhaustion (timeout, max evaluations) is normal
// termination with partial results, not an error.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	// A context that is already dead is a caller mistake, not a partial run.
	if err := errors.CheckContext(ctx, "search run"); err != nil {
		return nil, err
	}

	ctx = logging.WithRunID(ctx, d.runID)
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	logger := logging.GetLogger()
	logger.Info(ctx, "starting search: populations=%d, iterations=%d, outputs=%d",
		d.opts.NumPopulations, d.opts.Iterations, d.ds.NumOutputs())

	var evals atomic.Int64
	result := &Result{
		Options:     d.opts,
		VarNames:    d.ds.VarNames,
		HallsOfFame: make([]*HallOfFame, d.ds.NumOutputs()),
	}

	for out := 0; out < d.ds.NumOutputs(); out++ {
		hof, err := d.runOutput(ctx, d.ds.ForOutput(out), &evals)
		if err != nil {
			return nil, err
		}
		result.HallsOfFame[out] = hof
	}

	result.Evaluations = evals.Load()
	logger.Info(ctx, "search finished: evaluations=%d", result.Evaluations)
	return result, nil
}

func (d *Driver) runOutput(ctx context.Context, ds *core.Dataset, evals *atomic.Int64) (*HallOfFame, error) {
	opts := d.opts
	logger := logging.GetLogger()

	hof := NewHallOfFame(opts)
	stats := NewSearchStats(opts)
	started := time.Now()

	// A budget exhausted by an earlier output column must not be spent on
	// seeding this one.
	if stop, why := d.shouldStop(ctx, hof, evals); stop {
		logger.Info(ctx, "skipping output: %s", why)
		return hof, nil
	}

	seed := opts.Seed
	if seed == 0 && !opts.Deterministic {
		seed = time.Now().UnixNano()
	}

	workers := make([]*workerState, opts.NumPopulations)
	for i := range workers {
		rng := rand.New(rand.NewSource(seed + int64(i)*0x9E3779B9))
		pop, err := NewRandomPopulation(rng, ds, opts, 0)
		if err != nil {
			return nil, err
		}
		for _, m := range pop.Members {
			evals.Add(1)
			stats.Record(core.Complexity(m.Tree), m.Loss)
			hof.Update(m)
		}
		workers[i] = &workerState{
			pop:    pop,
			rng:    rng,
			engine: NewMutationEngine(rng, ds, opts, d.makeOptimizer()),
		}
	}

	for iter := 0; iter < opts.Iterations; iter++ {
		if stop, why := d.shouldStop(ctx, hof, evals); stop {
			logger.Info(ctx, "stopping search: %s", why)
			break
		}

		maxSize := CurrentMaxSize(opts, iter)
		for _, w := range workers {
			w.engine.SetMaxSize(maxSize)
		}

		if err := d.runCycleBatches(ctx, workers, ds, stats, hof, evals, iter); err != nil {
			return nil, err
		}

		// Barrier reached: no cycles in flight, so cross-population reads
		// during migration see quiescent members.
		d.migrate(workers, hof)

		if best, ok := hof.BestIndex(BestByLoss); ok {
			rate := float64(evals.Load()) / time.Since(started).Seconds()
			logger.Debug(ctx, "iteration %d: best_loss=%.6g, best_complexity=%d, evaluations=%d, evals_per_sec=%.0f",
				iter, best.Loss, best.Complexity, evals.Load(), rate)
		}
	}

	return hof, nil
}

func (d *Driver) makeOptimizer() ConstOptimizer {
	if d.opts.OptimizerProbability == 0 && d.opts.MutationWeights.Optimize == 0 {
		return nil
	}
	o := optimize.New(d.opts)
	return o.Optimize
}

// runCycleBatches runs CyclesPerIteration cycles on every population, one
// population per task. A worker holds exclusive write access to its
// population for the whole batch; the Hall of Fame and the statistics are
// the only shared sinks and serialize internally. Stop conditions are
// re-checked between whole cycles, never mid-mutation.
func (d *Driver) runCycleBatches(
	ctx context.Context,
	workers []*workerState,
	ds *core.Dataset,
	stats *SearchStats,
	hof *HallOfFame,
	evals *atomic.Int64,
	iter int,
) error {
	opts := d.opts
	logger := logging.GetLogger()
	birth := iter + 1

	batch := func(idx int, w *workerState) error {
		bctx := logging.WithPopulation(ctx, idx)
		sink := func(m *core.PopMember) {
			evals.Add(1)
			stats.Record(core.Complexity(m.Tree), m.Loss)
			hof.Update(m)
		}
		for c := 0; c < opts.CyclesPerIteration; c++ {
			if ctx.Err() != nil {
				return nil // cooperative exit with partial results
			}
			if opts.MaxEvals > 0 && evals.Load() >= int64(opts.MaxEvals) {
				return nil
			}
			if err := RunCycle(w.rng, w.pop, w.engine, ds, opts, stats, birth, sink); err != nil {
				return err
			}
		}
		logger.Debug(bctx, "cycle batch done: best_loss=%.6g", w.pop.Best().Loss)
		return nil
	}

	if opts.Deterministic {
		for i, w := range workers {
			if err := batch(i, w); err != nil {
				return err
			}
		}
		return nil
	}

	n := opts.NumWorkers
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	p := pool.New().WithMaxGoroutines(n).WithErrors()
	for i, w := range workers {
		p.Go(func() error { return batch(i, w) })
	}
	return p.Wait()
}

// migrate runs the two independently toggled exchanges for every population.
func (d *Driver) migrate(workers []*workerState, hof *HallOfFame) {
	opts := d.opts
	if len(workers) > 1 && opts.MigrationEnabled {
		for i, w := range workers {
			other := w.rng.Intn(len(workers) - 1)
			if other >= i {
				other++
			}
			Migrate(w.rng, w.pop, workers[other].pop, opts)
		}
	}
	if opts.HofMigrationEnabled {
		for _, w := range workers {
			MigrateHallOfFame(w.rng, w.pop, hof, opts)
		}
	}
}

func (d *Driver) shouldStop(ctx context.Context, hof *HallOfFame, evals *atomic.Int64) (bool, string) {
	if ctx.Err() != nil {
		return true, "deadline reached"
	}
	if d.opts.MaxEvals > 0 && evals.Load() >= int64(d.opts.MaxEvals) {
		return true, "max evaluations reached"
	}
	if d.opts.EarlyStop != nil {
		hit := false
		hof.Each(func(m *core.PopMember, complexity int) {
			if !hit && !math.IsInf(m.Loss, 1) && d.opts.EarlyStop(m.Loss, complexity) {
				hit = true
			}
		})
		if hit {
			return true, "early stop condition satisfied"
		}
	}
	return false, ""
}
