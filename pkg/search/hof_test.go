package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/expr"
)

// treeOfComplexity builds a right-leaning additive chain with the requested
// node count (odd sizes only: 1, 3, 5, ...).
func treeOfComplexity(c int) *expr.Node {
	tree := expr.NewVariable(0)
	for expr.Size(tree) < c {
		tree = expr.NewBinary(expr.OpAdd, expr.NewConstant(1), tree)
	}
	return tree
}

func archived(opts *core.Options, complexity int, loss float64) *core.PopMember {
	return core.NewPopMember(treeOfComplexity(complexity), loss, 0, opts)
}

func TestHallOfFameUpdateMonotone(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)

	hof.Update(archived(opts, 3, 1.0))
	hof.Update(archived(opts, 3, 2.0)) // worse, must not overwrite
	hof.Update(archived(opts, 3, 0.5)) // better, must overwrite

	var losses []float64
	hof.Each(func(m *core.PopMember, complexity int) {
		assert.Equal(t, 3, complexity)
		losses = append(losses, m.Loss)
	})
	require.Len(t, losses, 1)
	assert.Equal(t, 0.5, losses[0])
}

func TestHallOfFameIgnoresNonFinite(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)

	hof.Update(archived(opts, 3, math.Inf(1)))
	hof.Update(archived(opts, 3, math.NaN()))
	hof.Update(nil)
	assert.True(t, hof.Empty())
}

func TestHallOfFameEntriesAreSnapshots(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)

	m := archived(opts, 3, 1.0)
	hof.Update(m)
	m.Tree.L.Value = 99 // live member keeps evolving

	hof.Each(func(got *core.PopMember, complexity int) {
		assert.Equal(t, 1.0, got.Tree.L.Value, "archive holds a deep copy")
	})
}

func TestParetoFrontierDominance(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)

	hof.Update(archived(opts, 1, 5.0))
	hof.Update(archived(opts, 3, 1.0))
	hof.Update(archived(opts, 5, 2.0)) // dominated by complexity 3
	hof.Update(archived(opts, 7, 0.1))

	frontier := hof.ParetoFrontier()
	require.Len(t, frontier, 3)
	assert.Equal(t, []int{1, 3, 7},
		[]int{frontier[0].Complexity, frontier[1].Complexity, frontier[2].Complexity})

	for i := 1; i < len(frontier); i++ {
		assert.Less(t, frontier[i].Loss, frontier[i-1].Loss, "frontier loss is strictly decreasing")
	}
}

func TestParetoFrontierScores(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)

	hof.Update(archived(opts, 1, 5.0))
	hof.Update(archived(opts, 3, 1.0))

	frontier := hof.ParetoFrontier()
	require.Len(t, frontier, 2)
	assert.Zero(t, frontier[0].Score, "first point has no predecessor")

	want := -(math.Log(1.0+scoreEpsilon) - math.Log(5.0+scoreEpsilon)) / 2
	assert.InDelta(t, want, frontier[1].Score, 1e-12)
	assert.Positive(t, frontier[1].Score)
}

func TestBestIndexEmptyArchive(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)

	_, ok := hof.BestIndex(BestByLoss)
	assert.False(t, ok, "empty archive is an explicit no-result")
}

func TestBestIndexCriteria(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)

	hof.Update(archived(opts, 1, 5.0))
	hof.Update(archived(opts, 3, 0.01)) // huge improvement: top score
	hof.Update(archived(opts, 5, 0.009))

	byLoss, ok := hof.BestIndex(BestByLoss)
	require.True(t, ok)
	assert.Equal(t, 5, byLoss.Complexity)

	byScore, ok := hof.BestIndex(BestByScore)
	require.True(t, ok)
	assert.Equal(t, 3, byScore.Complexity)
}

func TestBestIndexManual(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)
	hof.Update(archived(opts, 1, 5.0))
	hof.Update(archived(opts, 3, 1.0))

	p, ok := hof.BestIndex(Manual(0))
	require.True(t, ok)
	assert.Equal(t, 1, p.Complexity)

	p, ok = hof.BestIndex(Manual(1))
	require.True(t, ok)
	assert.Equal(t, 3, p.Complexity)

	_, ok = hof.BestIndex(Manual(5))
	assert.False(t, ok, "manual index beyond the frontier")
}

func TestTopByScoreOrdering(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)

	hof.Update(archived(opts, 1, 5.0))
	hof.Update(archived(opts, 3, 0.01))
	hof.Update(archived(opts, 5, 0.009))

	top := hof.TopByScore(2)
	require.Len(t, top, 2)
	assert.GreaterOrEqual(t, top[0].Score, top[1].Score)
	assert.Equal(t, 3, top[0].Complexity)
}

func TestFormat(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)
	hof.Update(archived(opts, 1, 5.0))

	rep := hof.Format([]string{"a"})
	require.Len(t, rep.Strings, 1)
	assert.Equal(t, "a", rep.Strings[0])
	assert.Equal(t, []int{1}, rep.Complexities)
	assert.Equal(t, []float64{5.0}, rep.Losses)
}

func TestHallOfFameOversizedCandidate(t *testing.T) {
	opts := testOptions()
	hof := NewHallOfFame(opts)

	hof.Update(archived(opts, archiveSize(opts)+3, 0.1))
	assert.True(t, hof.Empty(), "candidates past the archive range are dropped")
}
