package search

import (
	"math"
	"sync"

	"github.com/symgo/symreg/pkg/core"
)

// SearchStats tracks, per complexity bucket, how often candidates are
// evaluated and the best loss achieved there. The adaptive parsimony penalty
// grows for complexities that are over-represented without delivering a
// marginal improvement over smaller trees. Shared across workers; all
// methods are safe for concurrent use.
type SearchStats struct {
	mu       sync.Mutex
	counts   []float64
	total    float64
	bestLoss []float64
	scaling  float64
	enabled  bool
}

// NewSearchStats sizes the buckets to the archive range [1, maxComplexity].
func NewSearchStats(opts *core.Options) *SearchStats {
	max := archiveSize(opts)
	best := make([]float64, max+1)
	for i := range best {
		best[i] = math.Inf(1)
	}
	return &SearchStats{
		counts:   make([]float64, max+1),
		bestLoss: best,
		scaling:  opts.AdaptiveParsimonyScaling,
		enabled:  opts.AdaptiveParsimonyScaling > 0 && (opts.UseFrequency || opts.UseFrequencyInTournament),
	}
}

// Record registers one evaluation outcome at the given complexity.
func (s *SearchStats) Record(complexity int, loss float64) {
	if s == nil || complexity < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if complexity >= len(s.counts) {
		return
	}
	s.counts[complexity]++
	s.total++
	if loss < s.bestLoss[complexity] {
		s.bestLoss[complexity] = loss
	}
}

// Penalty returns the multiplicative cost factor for a complexity bucket,
// always >= 1. Buckets that are frequent and give no strict improvement over
// the best smaller-complexity loss are penalized exponentially in their
// relative frequency.
func (s *SearchStats) Penalty(complexity int) float64 {
	if s == nil || !s.enabled {
		return 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if complexity < 1 || complexity >= len(s.counts) || s.total == 0 {
		return 1
	}
	freq := s.counts[complexity] / s.total

	improves := complexity == 1
	if !improves {
		smallerBest := math.Inf(1)
		for c := 1; c < complexity; c++ {
			if s.bestLoss[c] < smallerBest {
				smallerBest = s.bestLoss[c]
			}
		}
		improves = s.bestLoss[complexity] < smallerBest
	}

	if improves {
		return 1
	}
	return math.Exp(s.scaling * freq)
}

// CurrentMaxSize linearly ramps the enforced maxsize from a small tree up to
// the configured maximum over the first WarmupMaxsizeBy fraction of
// iterations, suppressing early bloat.
func CurrentMaxSize(opts *core.Options, iteration int) int {
	if opts.WarmupMaxsizeBy <= 0 {
		return opts.MaxSize
	}
	const floor = 3
	if opts.MaxSize <= floor {
		return opts.MaxSize
	}
	progress := float64(iteration) / (opts.WarmupMaxsizeBy * float64(opts.Iterations))
	if progress >= 1 {
		return opts.MaxSize
	}
	size := floor + int(progress*float64(opts.MaxSize-floor))
	if size > opts.MaxSize {
		size = opts.MaxSize
	}
	return size
}
