// Package search implements the evolutionary search engine: populations,
// tournament selection, the mutation engine, regularized evolution cycles,
// migration and the Hall of Fame, coordinated by the Driver.
package search

import (
	"math"
	"math/rand"
	"sort"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/expr"
)

// Population is a fixed-size ordered collection of members. Its size is
// invariant for the lifetime of the search: members are only ever replaced,
// never added or removed. A population is owned by exactly one worker during
// a cycle batch.
type Population struct {
	Members []*core.PopMember
}

// NewRandomPopulation seeds a population with freshly generated trees, each
// evaluated on the dataset.
func NewRandomPopulation(rng *rand.Rand, ds *core.Dataset, opts *core.Options, birth int) (*Population, error) {
	gen := expr.GenOptions{
		Operators:   opts.Operators,
		NumFeatures: ds.NumFeatures(),
		MaxSize:     initialTreeSize(opts),
		MaxDepth:    opts.MaxDepth,
		ConstProb:   opts.ConstProb,
		ConstStdev:  opts.ConstStdev,
	}

	members := make([]*core.PopMember, opts.PopulationSize)
	for i := range members {
		tree := expr.RandomTree(rng, gen)
		loss, err := core.EvalLoss(tree, ds, opts, nil)
		if err != nil {
			return nil, err
		}
		members[i] = core.NewPopMember(tree, loss, birth, opts)
	}
	return &Population{Members: members}, nil
}

// Seed populations start small; evolution grows them toward maxsize.
func initialTreeSize(opts *core.Options) int {
	if opts.MaxSize < 3 {
		return opts.MaxSize
	}
	return 3
}

// Best returns the member with the lowest raw loss.
func (p *Population) Best() *core.PopMember {
	best := p.Members[0]
	for _, m := range p.Members[1:] {
		if m.Loss < best.Loss {
			best = m
		}
	}
	return best
}

// SelectParent runs one tournament and returns the index of the winner.
// TournamentSelectionN members are drawn with replacement and ranked by
// adjusted cost; the i-th best wins with probability p*(1-p)^i normalized
// over the sample. With probability ProbPickFirst the tournament best is
// returned outright.
func (p *Population) SelectParent(rng *rand.Rand, opts *core.Options, stats *SearchStats) int {
	n := opts.TournamentSelectionN
	entries := make([]tournamentEntry, n)
	for i := range entries {
		idx := rng.Intn(len(p.Members))
		entries[i] = tournamentEntry{idx: idx, cost: memberCost(p.Members[idx], stats, opts.UseFrequencyInTournament)}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].cost < entries[j].cost })

	if opts.ProbPickFirst > 0 && rng.Float64() < opts.ProbPickFirst {
		return entries[0].idx
	}

	pr := opts.TournamentSelectionP
	// Normalized geometric decay over the sample.
	var total float64
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = pr * math.Pow(1-pr, float64(i))
		total += weights[i]
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return entries[i].idx
		}
	}
	return entries[n-1].idx
}

type tournamentEntry struct {
	idx  int
	cost float64
}

// memberCost ranks members inside a tournament: loss plus parsimony penalty,
// scaled by the adaptive frequency factor when the caller's flag enables it.
// Selection and replacement carry separate flags (UseFrequencyInTournament
// and UseFrequency) so either side of the exchange can be penalized alone.
func memberCost(m *core.PopMember, stats *SearchStats, useFrequency bool) float64 {
	cost := m.Score
	if stats != nil && useFrequency {
		cost *= stats.Penalty(core.Complexity(m.Tree))
	}
	return cost
}

// ReplaceWeakest installs child over the weakest member of an independently
// drawn replacement tournament. The child never lands on a uniformly random
// slot: regularized evolution replaces losers, not arbitrary members. With
// UseFrequency set, "weakest" is judged by the frequency-adjusted cost, so
// over-represented complexity buckets are evicted first.
func (p *Population) ReplaceWeakest(rng *rand.Rand, opts *core.Options, stats *SearchStats, child *core.PopMember) int {
	n := opts.TournamentSelectionN
	worstIdx := rng.Intn(len(p.Members))
	worstCost := memberCost(p.Members[worstIdx], stats, opts.UseFrequency)
	for i := 1; i < n; i++ {
		idx := rng.Intn(len(p.Members))
		if c := memberCost(p.Members[idx], stats, opts.UseFrequency); c > worstCost {
			worstIdx, worstCost = idx, c
		}
	}
	p.Members[worstIdx] = child
	return worstIdx
}

// Copy returns a deep copy of the population; no member is shared.
func (p *Population) Copy() *Population {
	members := make([]*core.PopMember, len(p.Members))
	for i, m := range p.Members {
		members[i] = m.Copy()
	}
	return &Population{Members: members}
}
