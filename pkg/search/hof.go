package search

import (
	"math"
	"sync"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/expr"
)

// scoreEpsilon keeps the log-ratio frontier score finite at zero loss.
const scoreEpsilon = 1e-10

// maxNodeDegree is the largest operator arity; the archive reserves headroom
// of this many slots past maxsize so a child that grew past the limit by one
// operator still lands in a valid bucket.
const maxNodeDegree = 2

// HallOfFame archives the best-ever member per complexity value. Entries are
// immutable deep-copied snapshots; the archive never references a live
// population member. It is the only object under concurrent write pressure,
// so every update is serialized behind a mutex.
type HallOfFame struct {
	mu      sync.Mutex
	members []*core.PopMember // index c-1 holds the entry of complexity c
	exists  []bool
	opts    *core.Options
}

func archiveSize(opts *core.Options) int {
	return opts.MaxSize + maxNodeDegree
}

// NewHallOfFame creates an empty archive sized to [1, maxsize+maxNodeDegree].
func NewHallOfFame(opts *core.Options) *HallOfFame {
	n := archiveSize(opts)
	return &HallOfFame{
		members: make([]*core.PopMember, n),
		exists:  make([]bool, n),
		opts:    opts,
	}
}

// Update merges a candidate into the archive: the slot at the candidate's
// complexity is overwritten iff empty or strictly improved. Once set, a
// slot's loss never increases. Candidates with non-finite loss are ignored.
func (h *HallOfFame) Update(candidate *core.PopMember) {
	if candidate == nil || math.IsInf(candidate.Loss, 0) || math.IsNaN(candidate.Loss) {
		return
	}
	c := core.Complexity(candidate.Tree)
	if c < 1 || c > len(h.members) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	slot := c - 1
	if h.exists[slot] && h.members[slot].Loss <= candidate.Loss {
		return
	}
	h.members[slot] = candidate.Copy()
	h.exists[slot] = true
}

// FrontierPoint is one entry of the dominating Pareto frontier.
type FrontierPoint struct {
	Member     *core.PopMember
	Complexity int
	Loss       float64
	// Score is the negated log-loss improvement rate over the previous
	// frontier point; the first point has score 0.
	Score float64
}

// ParetoFrontier scans complexities ascending and keeps an entry iff its
// loss is strictly below every smaller existing complexity's loss, i.e. full
// dominance, yielding a strictly decreasing loss-vs-complexity curve with no
// duplicate complexities.
func (h *HallOfFame) ParetoFrontier() []FrontierPoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	var frontier []FrontierPoint
	bestSoFar := math.Inf(1)
	prevLoss := math.NaN()
	prevComplexity := 0

	for slot := 0; slot < len(h.members); slot++ {
		if !h.exists[slot] {
			continue
		}
		m := h.members[slot]
		if m.Loss >= bestSoFar {
			continue
		}
		bestSoFar = m.Loss

		c := slot + 1
		score := 0.0
		if !math.IsNaN(prevLoss) {
			dc := float64(c - prevComplexity)
			score = -(math.Log(m.Loss+scoreEpsilon) - math.Log(prevLoss+scoreEpsilon)) / dc
		}
		frontier = append(frontier, FrontierPoint{
			Member:     m.Copy(),
			Complexity: c,
			Loss:       m.Loss,
			Score:      score,
		})
		prevLoss = m.Loss
		prevComplexity = c
	}
	return frontier
}

// BestCriterion selects which frontier point a best-index query returns.
type BestCriterion int

const (
	// BestByLoss picks the minimum-loss frontier point.
	BestByLoss BestCriterion = iota
	// BestByScore picks the maximum-score frontier point.
	BestByScore
)

// Manual returns a criterion pinning selection to a fixed frontier index,
// for callers who inspected the frontier and chose an equation themselves.
func Manual(index int) BestCriterion {
	return BestCriterion(-(index + 1))
}

// BestIndex applies the criterion over the frontier and returns the winning
// point. ok is false when the archive has no existing slot (the explicit
// no-result sentinel) or a manual index falls outside the frontier.
func (h *HallOfFame) BestIndex(criterion BestCriterion) (FrontierPoint, bool) {
	frontier := h.ParetoFrontier()
	if len(frontier) == 0 {
		return FrontierPoint{}, false
	}

	if criterion < 0 {
		idx := -int(criterion) - 1
		if idx >= len(frontier) {
			return FrontierPoint{}, false
		}
		return frontier[idx], true
	}

	best := 0
	switch criterion {
	case BestByScore:
		for i, p := range frontier {
			if p.Score > frontier[best].Score {
				best = i
			}
		}
	default:
		for i, p := range frontier {
			if p.Loss < frontier[best].Loss {
				best = i
			}
		}
	}
	return frontier[best], true
}

// TopByScore returns up to n frontier points ordered by descending score,
// the donors of Hall-of-Fame migration.
func (h *HallOfFame) TopByScore(n int) []FrontierPoint {
	frontier := h.ParetoFrontier()
	for i := 1; i < len(frontier); i++ {
		for j := i; j > 0 && frontier[j].Score > frontier[j-1].Score; j-- {
			frontier[j], frontier[j-1] = frontier[j-1], frontier[j]
		}
	}
	if len(frontier) > n {
		frontier = frontier[:n]
	}
	return frontier
}

// Report is the query surface for external consumers: the dominating Pareto
// frontier ascending by complexity.
type Report struct {
	Trees        []*expr.Node
	Losses       []float64
	Complexities []int
	Scores       []float64
	Strings      []string
}

// Format renders the frontier for textual reporting and visualization.
func (h *HallOfFame) Format(varNames []string) Report {
	frontier := h.ParetoFrontier()
	rep := Report{
		Trees:        make([]*expr.Node, len(frontier)),
		Losses:       make([]float64, len(frontier)),
		Complexities: make([]int, len(frontier)),
		Scores:       make([]float64, len(frontier)),
		Strings:      make([]string, len(frontier)),
	}
	for i, p := range frontier {
		rep.Trees[i] = p.Member.Tree
		rep.Losses[i] = p.Loss
		rep.Complexities[i] = p.Complexity
		rep.Scores[i] = p.Score
		rep.Strings[i] = expr.String(p.Member.Tree, varNames)
	}
	return rep
}

// Each visits every existing archive entry in ascending complexity order
// while holding the archive lock. The callback must not call back into the
// archive.
func (h *HallOfFame) Each(fn func(m *core.PopMember, complexity int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for slot, ok := range h.exists {
		if ok {
			fn(h.members[slot], slot+1)
		}
	}
}

// Empty reports whether no member was ever archived.
func (h *HallOfFame) Empty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.exists {
		if e {
			return false
		}
	}
	return true
}
