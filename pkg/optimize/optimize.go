// Package optimize provides the numeric constant optimizer consumed by the
// search engine. It tunes the constant leaves of an expression tree against
// a dataset and is fallible in exactly the way a mutation is: callers
// discard the result on error.
package optimize

import (
	"math"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/errors"
	"github.com/symgo/symreg/pkg/expr"
)

// Optimizer tunes tree constants with gradient descent under a backtracking
// step size. The analytic gradient comes from expr.EvalWithGradient when the
// configured loss is the built-in L2; other losses fall back to central
// finite differences.
type Optimizer struct {
	opts *core.Options
}

// New builds an optimizer bound to the run options.
func New(opts *core.Options) *Optimizer {
	return &Optimizer{opts: opts}
}

// Optimize returns a tree with tuned constants and its full-data loss. The
// input tree is owned by the optimizer and may be returned modified. Errors
// mean the attempt should be discarded: trees without constants, or trees
// that never evaluated successfully.
func (o *Optimizer) Optimize(tree *expr.Node, ds *core.Dataset) (*expr.Node, float64, error) {
	consts := expr.Constants(tree)
	if len(consts) == 0 {
		return nil, 0, errors.New(errors.OptimizationFailed, "tree has no constants")
	}

	loss, err := core.EvalLoss(tree, ds, o.opts, nil)
	if err != nil {
		return nil, 0, err
	}
	if math.IsInf(loss, 1) {
		return nil, 0, errors.New(errors.OptimizationFailed, "tree does not evaluate")
	}

	step := 0.1
	for iter := 0; iter < o.opts.OptimizerIterations; iter++ {
		grad, ok := o.gradient(tree, consts, ds)
		if !ok {
			break
		}

		// Backtracking: shrink the step until the loss improves.
		improved := false
		for attempt := 0; attempt < 6; attempt++ {
			before := snapshot(consts)
			for i, c := range consts {
				c.Value -= step * grad[i]
			}
			trial, err := core.EvalLoss(tree, ds, o.opts, nil)
			if err != nil {
				return nil, 0, err
			}
			if trial < loss {
				loss = trial
				step *= 1.5
				improved = true
				break
			}
			restore(consts, before)
			step *= 0.5
		}
		if !improved {
			break
		}
	}

	return tree, loss, nil
}

func (o *Optimizer) gradient(tree *expr.Node, consts []*expr.Node, ds *core.Dataset) ([]float64, bool) {
	if o.opts.LossName == "l2" {
		return l2Gradient(tree, ds)
	}
	return o.numericGradient(tree, consts, ds)
}

// l2Gradient chains the prediction gradients through the weighted mean
// squared error.
func l2Gradient(tree *expr.Node, ds *core.Dataset) ([]float64, bool) {
	pred, grads, completed := expr.EvalWithGradient(tree, ds.X)
	if !completed {
		return nil, false
	}
	target := ds.Y[0]

	var wsum float64
	if ds.Weights == nil {
		wsum = float64(len(pred))
	} else {
		for _, w := range ds.Weights {
			wsum += w
		}
	}
	if wsum == 0 {
		return nil, false
	}

	out := make([]float64, len(grads))
	for k := range grads {
		var sum float64
		for i := range pred {
			w := 1.0
			if ds.Weights != nil {
				w = ds.Weights[i]
			}
			sum += 2 * w * (pred[i] - target[i]) * grads[k][i]
		}
		out[k] = sum / wsum
	}
	return out, true
}

// numericGradient uses central differences on the full loss, one constant at
// a time.
func (o *Optimizer) numericGradient(tree *expr.Node, consts []*expr.Node, ds *core.Dataset) ([]float64, bool) {
	out := make([]float64, len(consts))
	for i, c := range consts {
		h := 1e-6 * (math.Abs(c.Value) + 1)
		orig := c.Value

		c.Value = orig + h
		up, err := core.EvalLoss(tree, ds, o.opts, nil)
		if err != nil || math.IsInf(up, 1) {
			c.Value = orig
			return nil, false
		}
		c.Value = orig - h
		down, err := core.EvalLoss(tree, ds, o.opts, nil)
		c.Value = orig
		if err != nil || math.IsInf(down, 1) {
			return nil, false
		}

		out[i] = (up - down) / (2 * h)
	}
	return out, true
}

func snapshot(consts []*expr.Node) []float64 {
	vals := make([]float64, len(consts))
	for i, c := range consts {
		vals[i] = c.Value
	}
	return vals
}

func restore(consts []*expr.Node, vals []float64) {
	for i, c := range consts {
		c.Value = vals[i]
	}
}
