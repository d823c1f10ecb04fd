package search

import (
	"math"
	"math/rand"
	"sort"

	"github.com/symgo/symreg/pkg/core"
)

// Migrate replaces the weakest fractionReplaced share of dest's slots with
// deep copies randomly sampled from src. The source is never mutated and the
// destination's size invariant is preserved.
func Migrate(rng *rand.Rand, dest, src *Population, opts *core.Options) {
	k := migrationCount(opts.FractionReplaced, len(dest.Members))
	if k == 0 || len(src.Members) == 0 {
		return
	}
	for _, slot := range weakestSlots(dest, k) {
		donor := src.Members[rng.Intn(len(src.Members))]
		dest.Members[slot] = donor.Copy()
	}
}

// MigrateHallOfFame replaces the weakest fractionReplacedHof share of dest's
// slots with deep copies sampled from the top-n archive frontier points by
// score.
func MigrateHallOfFame(rng *rand.Rand, dest *Population, hof *HallOfFame, opts *core.Options) {
	k := migrationCount(opts.FractionReplacedHof, len(dest.Members))
	if k == 0 {
		return
	}
	donors := hof.TopByScore(opts.TopN)
	if len(donors) == 0 {
		return
	}
	for _, slot := range weakestSlots(dest, k) {
		donor := donors[rng.Intn(len(donors))]
		dest.Members[slot] = donor.Member.Copy()
	}
}

// migrationCount rounds fraction*size to the nearest slot count.
func migrationCount(fraction float64, size int) int {
	k := int(math.Round(fraction * float64(size)))
	if k < 0 {
		return 0
	}
	if k > size {
		return size
	}
	return k
}

// weakestSlots returns the indices of the k highest-score (worst) members.
func weakestSlots(p *Population, k int) []int {
	idx := make([]int, len(p.Members))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return p.Members[idx[a]].Score > p.Members[idx[b]].Score
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}
