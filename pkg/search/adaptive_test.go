package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPenaltyNeverBelowOne(t *testing.T) {
	opts := testOptions()
	stats := NewSearchStats(opts)

	for c := 1; c <= opts.MaxSize; c++ {
		stats.Record(c, float64(c))
	}
	for c := 0; c <= opts.MaxSize+5; c++ {
		assert.GreaterOrEqual(t, stats.Penalty(c), 1.0)
	}
}

func TestPenaltyRewardsImprovement(t *testing.T) {
	opts := testOptions()
	stats := NewSearchStats(opts)

	// Complexity 3 improves over complexity 1; complexity 5 does not and is
	// heavily over-represented.
	stats.Record(1, 10.0)
	stats.Record(3, 1.0)
	for i := 0; i < 100; i++ {
		stats.Record(5, 2.0)
	}

	assert.Equal(t, 1.0, stats.Penalty(1), "complexity one always counts as improving")
	assert.Equal(t, 1.0, stats.Penalty(3))
	assert.Greater(t, stats.Penalty(5), 1.0)
}

func TestPenaltyDisabled(t *testing.T) {
	opts := testOptions()
	opts.UseFrequency = false
	opts.UseFrequencyInTournament = false
	stats := NewSearchStats(opts)

	for i := 0; i < 100; i++ {
		stats.Record(5, 2.0)
	}
	assert.Equal(t, 1.0, stats.Penalty(5))
}

func TestCurrentMaxSizeRamp(t *testing.T) {
	opts := testOptions()
	opts.MaxSize = 20
	opts.Iterations = 10
	opts.WarmupMaxsizeBy = 0.5 // full size by iteration 5

	assert.Equal(t, 3, CurrentMaxSize(opts, 0))
	assert.Equal(t, 20, CurrentMaxSize(opts, 5))
	assert.Equal(t, 20, CurrentMaxSize(opts, 9))

	sizes := make([]int, 6)
	for i := range sizes {
		sizes[i] = CurrentMaxSize(opts, i)
	}
	for i := 1; i < len(sizes); i++ {
		assert.GreaterOrEqual(t, sizes[i], sizes[i-1], "ramp is monotone")
	}
}

func TestCurrentMaxSizeNoWarmup(t *testing.T) {
	opts := testOptions()
	opts.WarmupMaxsizeBy = 0
	assert.Equal(t, opts.MaxSize, CurrentMaxSize(opts, 0))
}
