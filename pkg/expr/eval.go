package expr

import "math"

// Eval evaluates the tree over a column-major feature matrix X, where
// X[f] holds the values of feature f across all rows. The completed flag is
// false when any intermediate value is non-finite (overflow, domain
// violation); callers must treat that as an infinite-loss outcome, never a
// fault.
func Eval(n *Node, X [][]float64) ([]float64, bool) {
	nrows := 0
	if len(X) > 0 {
		nrows = len(X[0])
	}
	return evalNode(n, X, nrows)
}

func evalNode(n *Node, X [][]float64, nrows int) ([]float64, bool) {
	out := make([]float64, nrows)

	switch n.Kind {
	case KindConstant:
		for i := range out {
			out[i] = n.Value
		}
		return out, true

	case KindVariable:
		if n.Feature < 0 || n.Feature >= len(X) {
			return nil, false
		}
		copy(out, X[n.Feature])
		return out, true

	case KindUnary:
		child, ok := evalNode(n.L, X, nrows)
		if !ok {
			return nil, false
		}
		fn := opTable[n.Op].unary
		for i, v := range child {
			r := fn(v)
			if !finite(r) {
				return nil, false
			}
			out[i] = r
		}
		return out, true

	default: // KindBinary
		l, ok := evalNode(n.L, X, nrows)
		if !ok {
			return nil, false
		}
		r, ok := evalNode(n.R, X, nrows)
		if !ok {
			return nil, false
		}
		fn := opTable[n.Op].binop
		for i := range out {
			v := fn(l[i], r[i])
			if !finite(v) {
				return nil, false
			}
			out[i] = v
		}
		return out, true
	}
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// EvalWithGradient evaluates the tree and the partial derivatives of its
// output with respect to every constant leaf, in the order Constants returns
// them. grads[k][row] holds d(out[row])/d(constant k). completed is false on
// any non-finite value or derivative.
func EvalWithGradient(n *Node, X [][]float64) (values []float64, grads [][]float64, completed bool) {
	nrows := 0
	if len(X) > 0 {
		nrows = len(X[0])
	}
	consts := Constants(n)
	index := make(map[*Node]int, len(consts))
	for i, c := range consts {
		index[c] = i
	}

	vals, g, ok := evalGrad(n, X, nrows, index)
	if !ok {
		return nil, nil, false
	}
	return vals, g, true
}

func evalGrad(n *Node, X [][]float64, nrows int, index map[*Node]int) ([]float64, [][]float64, bool) {
	nconst := len(index)
	vals := make([]float64, nrows)
	grads := make([][]float64, nconst)
	for k := range grads {
		grads[k] = make([]float64, nrows)
	}

	switch n.Kind {
	case KindConstant:
		for i := range vals {
			vals[i] = n.Value
		}
		k := index[n]
		for i := range grads[k] {
			grads[k][i] = 1
		}
		return vals, grads, true

	case KindVariable:
		if n.Feature < 0 || n.Feature >= len(X) {
			return nil, nil, false
		}
		copy(vals, X[n.Feature])
		return vals, grads, true

	case KindUnary:
		cv, cg, ok := evalGrad(n.L, X, nrows, index)
		if !ok {
			return nil, nil, false
		}
		fn := opTable[n.Op].unary
		for i, v := range cv {
			r := fn(v)
			if !finite(r) {
				return nil, nil, false
			}
			vals[i] = r
		}
		for k := range grads {
			for i := range grads[k] {
				d := unaryDeriv(n.Op, cv[i]) * cg[k][i]
				if !finite(d) {
					return nil, nil, false
				}
				grads[k][i] = d
			}
		}
		return vals, grads, true

	default: // KindBinary
		lv, lg, ok := evalGrad(n.L, X, nrows, index)
		if !ok {
			return nil, nil, false
		}
		rv, rg, ok := evalGrad(n.R, X, nrows, index)
		if !ok {
			return nil, nil, false
		}
		fn := opTable[n.Op].binop
		for i := range vals {
			v := fn(lv[i], rv[i])
			if !finite(v) {
				return nil, nil, false
			}
			vals[i] = v
		}
		for k := range grads {
			for i := range grads[k] {
				da, db := binaryDeriv(n.Op, lv[i], rv[i])
				d := da*lg[k][i] + db*rg[k][i]
				if !finite(d) {
					return nil, nil, false
				}
				grads[k][i] = d
			}
		}
		return vals, grads, true
	}
}

func unaryDeriv(op Op, x float64) float64 {
	switch op {
	case OpNeg:
		return -1
	case OpSin:
		return math.Cos(x)
	case OpCos:
		return -math.Sin(x)
	case OpExp:
		return math.Exp(x)
	case OpLog:
		return 1 / x
	case OpSqrt:
		return 0.5 / math.Sqrt(x)
	case OpAbs:
		if x < 0 {
			return -1
		}
		return 1
	case OpSquare:
		return 2 * x
	case OpCube:
		return 3 * x * x
	default:
		return 0
	}
}

func binaryDeriv(op Op, a, b float64) (da, db float64) {
	switch op {
	case OpAdd:
		return 1, 1
	case OpSub:
		return 1, -1
	case OpMul:
		return b, a
	case OpDiv:
		return 1 / b, -a / (b * b)
	case OpPow:
		v := math.Pow(a, b)
		return b * math.Pow(a, b-1), v * math.Log(a)
	default:
		return 0, 0
	}
}
