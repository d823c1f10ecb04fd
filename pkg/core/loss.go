package core

import (
	"math"

	"github.com/symgo/symreg/pkg/errors"
	"github.com/symgo/symreg/pkg/expr"
)

// LossFunc reduces predictions against targets to a single non-negative
// value. Weights may be nil. A user-supplied LossFunc crosses the worker
// boundary and must therefore be pure: safely callable concurrently with no
// shared mutable state.
type LossFunc func(pred, target, weights []float64) float64

var builtinLosses = map[string]LossFunc{
	"l2":    L2Loss,
	"l1":    L1Loss,
	"huber": HuberLoss,
}

// L2Loss is the (weighted) mean squared error.
func L2Loss(pred, target, weights []float64) float64 {
	var sum, wsum float64
	for i := range pred {
		d := pred[i] - target[i]
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		sum += w * d * d
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

// L1Loss is the (weighted) mean absolute error.
func L1Loss(pred, target, weights []float64) float64 {
	var sum, wsum float64
	for i := range pred {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		sum += w * math.Abs(pred[i]-target[i])
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

// HuberLoss blends L2 near zero with L1 in the tails (delta = 1).
func HuberLoss(pred, target, weights []float64) float64 {
	const delta = 1.0
	var sum, wsum float64
	for i := range pred {
		d := math.Abs(pred[i] - target[i])
		var l float64
		if d <= delta {
			l = 0.5 * d * d
		} else {
			l = delta * (d - 0.5*delta)
		}
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		sum += w * l
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}

// EvalLoss evaluates tree on the dataset (or the batch given by idx) and
// returns its loss. Evaluation failure maps to +Inf, never an error. A
// negative loss from a user loss function is an InvalidConfiguration error:
// downstream scoring assumes losses are non-negative.
func EvalLoss(tree *expr.Node, ds *Dataset, opts *Options, idx []int) (float64, error) {
	batch := ds.Batch(idx)
	pred, completed := expr.Eval(tree, batch.X)
	if !completed {
		return math.Inf(1), nil
	}

	loss := opts.Loss()(pred, batch.Y[0], batch.Weights)
	if math.IsNaN(loss) {
		return math.Inf(1), nil
	}
	if loss < 0 {
		return 0, errors.WithFields(
			errors.New(errors.InvalidConfiguration, "loss function returned a negative value"),
			errors.Fields{"loss": loss})
	}
	return loss, nil
}
