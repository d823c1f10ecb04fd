package expr

import "math/rand"

// GenOptions bounds random tree generation.
type GenOptions struct {
	Operators   OperatorSet
	NumFeatures int
	MaxSize     int
	MaxDepth    int
	ConstProb   float64 // probability a leaf is a constant rather than a variable
	ConstStdev  float64 // scale of freshly drawn constants
}

// RandomTree grows a random tree of at most opts.MaxSize nodes and
// opts.MaxDepth depth. Growth stops stochastically, so small trees are common.
func RandomTree(rng *rand.Rand, opts GenOptions) *Node {
	if opts.MaxSize < 1 {
		opts.MaxSize = 1
	}
	budget := 1 + rng.Intn(opts.MaxSize)
	return grow(rng, opts, budget, opts.MaxDepth)
}

func grow(rng *rand.Rand, opts GenOptions, budget, depthLeft int) *Node {
	if budget <= 1 || depthLeft <= 1 {
		return RandomLeaf(rng, opts)
	}

	haveUnary := len(opts.Operators.Unary) > 0
	haveBinary := len(opts.Operators.Binary) > 0 && budget >= 3

	switch {
	case haveBinary && (!haveUnary || rng.Float64() < 0.7):
		op := opts.Operators.Binary[rng.Intn(len(opts.Operators.Binary))]
		lbudget := 1 + rng.Intn(budget-2)
		l := grow(rng, opts, lbudget, depthLeft-1)
		r := grow(rng, opts, budget-1-Size(l), depthLeft-1)
		return NewBinary(op, l, r)
	case haveUnary:
		op := opts.Operators.Unary[rng.Intn(len(opts.Operators.Unary))]
		return NewUnary(op, grow(rng, opts, budget-1, depthLeft-1))
	default:
		return RandomLeaf(rng, opts)
	}
}

// RandomLeaf draws a fresh constant or variable leaf.
func RandomLeaf(rng *rand.Rand, opts GenOptions) *Node {
	if opts.NumFeatures == 0 || rng.Float64() < opts.ConstProb {
		scale := opts.ConstStdev
		if scale == 0 {
			scale = 1
		}
		return NewConstant(rng.NormFloat64() * scale)
	}
	return NewVariable(rng.Intn(opts.NumFeatures))
}
