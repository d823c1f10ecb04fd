package search

import (
	"math/rand"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/expr"
)

// EvalSink receives every successfully evaluated member, exactly once. The
// driver wires it to the Hall of Fame, the adaptive statistics and the
// evaluation counter.
type EvalSink func(m *core.PopMember)

// maximum operator re-draws for one offspring before giving up on the
// attempt when SkipMutationFailures is set.
const mutationRetries = 10

// RunCycle drives one regularized-evolution cycle over the population:
// PopulationSize rounds of tournament -> mutate/crossover -> evaluate ->
// replace-weakest, followed by an optional constant-optimization pass. The
// population size is invariant across the call.
func RunCycle(
	rng *rand.Rand,
	pop *Population,
	engine *MutationEngine,
	ds *core.Dataset,
	opts *core.Options,
	stats *SearchStats,
	birth int,
	sink EvalSink,
) error {
	for round := 0; round < opts.PopulationSize; round++ {
		batchIdx := sampleBatch(rng, ds, opts)

		if opts.CrossoverProbability > 0 && rng.Float64() < opts.CrossoverProbability {
			if err := crossoverRound(rng, pop, engine, opts, stats, birth, batchIdx, sink); err != nil {
				return err
			}
			continue
		}

		if err := mutationRound(rng, pop, engine, opts, stats, birth, batchIdx, sink); err != nil {
			return err
		}
	}

	// Independent end-of-cycle optimization trigger; a separate probabilistic
	// event from the sampled optimize mutation.
	if engine.optimizer != nil && opts.OptimizerProbability > 0 && rng.Float64() < opts.OptimizerProbability {
		optimizeRound(rng, pop, engine, opts, birth, sink)
	}

	return nil
}

func mutationRound(
	rng *rand.Rand,
	pop *Population,
	engine *MutationEngine,
	opts *core.Options,
	stats *SearchStats,
	birth int,
	batchIdx []int,
	sink EvalSink,
) error {
	parentIdx := pop.SelectParent(rng, opts, stats)
	parent := pop.Members[parentIdx]

	attempts := 1
	if opts.SkipMutationFailures {
		attempts = mutationRetries
	}

	var child *core.PopMember
	for try := 0; try < attempts; try++ {
		c, ok, err := engine.Mutate(parent, birth, batchIdx)
		if err != nil {
			return err
		}
		if ok {
			child = c
			break
		}
		if opts.StrictMutationFailures {
			return rejectMutation("mutation")
		}
	}
	if child == nil {
		// All attempts rejected: keep the parent unchanged.
		return nil
	}

	pop.ReplaceWeakest(rng, opts, stats, child)
	// A do_nothing child is a copy carrying the parent's lineage ID and its
	// cached loss; nothing was evaluated, so it never reaches the sink and
	// never consumes evaluation budget.
	if child.ID != parent.ID {
		sink(child)
	}
	return nil
}

func crossoverRound(
	rng *rand.Rand,
	pop *Population,
	engine *MutationEngine,
	opts *core.Options,
	stats *SearchStats,
	birth int,
	batchIdx []int,
	sink EvalSink,
) error {
	ia := pop.SelectParent(rng, opts, stats)
	ib := pop.SelectParent(rng, opts, stats)

	a, b, ok, err := engine.Crossover(pop.Members[ia], pop.Members[ib], birth, batchIdx)
	if err != nil {
		return err
	}
	if !ok {
		if opts.StrictMutationFailures {
			return rejectMutation("crossover")
		}
		return nil
	}

	pop.ReplaceWeakest(rng, opts, stats, a)
	pop.ReplaceWeakest(rng, opts, stats, b)
	sink(a)
	sink(b)
	return nil
}

// optimizeRound re-optimizes the constants of one random member in place,
// installing a freshly owned tree on success.
func optimizeRound(
	rng *rand.Rand,
	pop *Population,
	engine *MutationEngine,
	opts *core.Options,
	birth int,
	sink EvalSink,
) {
	idx := rng.Intn(len(pop.Members))
	m := pop.Members[idx]
	if len(expr.Constants(m.Tree)) == 0 {
		return
	}

	tree, loss, err := engine.optimizer(expr.Clone(m.Tree), engine.ds)
	if err != nil || !engine.checkTree(tree) {
		return
	}
	if loss >= m.Loss {
		return
	}

	updated := core.NewPopMember(tree, loss, birth, opts)
	updated.ID = m.ID
	pop.Members[idx] = updated
	sink(updated)
}

func sampleBatch(rng *rand.Rand, ds *core.Dataset, opts *core.Options) []int {
	if !opts.Batching {
		return nil
	}
	return ds.SampleBatch(rng, opts.BatchSize)
}
