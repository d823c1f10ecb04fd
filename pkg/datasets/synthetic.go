package datasets

import (
	"math"
	"math/rand"

	"github.com/symgo/symreg/pkg/core"
)

// Synthetic builds a single-feature dataset y = f(x) over n points drawn
// uniformly from [lo, hi].
func Synthetic(rng *rand.Rand, n int, lo, hi float64, name string, f func(float64) float64) (*core.Dataset, error) {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = lo + rng.Float64()*(hi-lo)
		y[i] = f(x[i])
	}
	return core.NewDataset([][]float64{x}, [][]float64{y}, nil, []string{name})
}

// Square is the y = x^2 benchmark.
func Square(rng *rand.Rand, n int) (*core.Dataset, error) {
	return Synthetic(rng, n, -3, 3, "a", func(v float64) float64 { return v * v })
}

// Trig is the y = 2 sin(x) + 0.5 benchmark.
func Trig(rng *rand.Rand, n int) (*core.Dataset, error) {
	return Synthetic(rng, n, -math.Pi, math.Pi, "theta", func(v float64) float64 {
		return 2*math.Sin(v) + 0.5
	})
}
