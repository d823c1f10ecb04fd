package expr

// Simplify returns a semantically equivalent tree that is no larger than the
// input: constant subtrees are folded and algebraic identities collapsed.
// The input is not modified.
func Simplify(n *Node) *Node {
	if n == nil {
		return nil
	}

	switch n.Kind {
	case KindConstant, KindVariable:
		c := *n
		return &c
	}

	out := &Node{Kind: n.Kind, Op: n.Op}
	out.L = Simplify(n.L)
	if n.Kind == KindBinary {
		out.R = Simplify(n.R)
	}

	// Constant folding: every child constant and the result finite.
	if folded, ok := fold(out); ok {
		return folded
	}

	return applyIdentities(out)
}

func fold(n *Node) (*Node, bool) {
	switch n.Kind {
	case KindUnary:
		if n.L.Kind != KindConstant {
			return nil, false
		}
		v := opTable[n.Op].unary(n.L.Value)
		if !finite(v) {
			return nil, false
		}
		return NewConstant(v), true
	case KindBinary:
		if n.L.Kind != KindConstant || n.R.Kind != KindConstant {
			return nil, false
		}
		v := opTable[n.Op].binop(n.L.Value, n.R.Value)
		if !finite(v) {
			return nil, false
		}
		return NewConstant(v), true
	}
	return nil, false
}

func applyIdentities(n *Node) *Node {
	if n.Kind != KindBinary {
		if n.Kind == KindUnary && n.Op == OpNeg && n.L.Kind == KindUnary && n.L.Op == OpNeg {
			return n.L.L
		}
		return n
	}

	l, r := n.L, n.R
	switch n.Op {
	case OpAdd:
		if isConst(l, 0) {
			return r
		}
		if isConst(r, 0) {
			return l
		}
	case OpSub:
		if isConst(r, 0) {
			return l
		}
	case OpMul:
		if isConst(l, 1) {
			return r
		}
		if isConst(r, 1) {
			return l
		}
		if isConst(l, 0) || isConst(r, 0) {
			return NewConstant(0)
		}
	case OpDiv:
		if isConst(r, 1) {
			return l
		}
	case OpPow:
		if isConst(r, 1) {
			return l
		}
	}
	return n
}

func isConst(n *Node, v float64) bool {
	return n.Kind == KindConstant && n.Value == v
}
