package expr

import "math"

// Op identifies a primitive operator. Unary and binary operators share the
// enum so arity-preserving swaps can be expressed over a single value.
type Op uint8

const (
	// Binary operators.
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpPow

	// Unary operators.
	OpNeg
	OpSin
	OpCos
	OpExp
	OpLog
	OpSqrt
	OpAbs
	OpSquare
	OpCube

	opCount
)

type opInfo struct {
	name  string
	arity int
	prec  int  // binding strength for infix rendering
	infix bool // rendered infix rather than function-style
	unary func(float64) float64
	binop func(float64, float64) float64
}

var opTable = [opCount]opInfo{
	OpAdd: {name: "+", arity: 2, prec: 1, infix: true, binop: func(a, b float64) float64 { return a + b }},
	OpSub: {name: "-", arity: 2, prec: 1, infix: true, binop: func(a, b float64) float64 { return a - b }},
	OpMul: {name: "*", arity: 2, prec: 2, infix: true, binop: func(a, b float64) float64 { return a * b }},
	OpDiv: {name: "/", arity: 2, prec: 2, infix: true, binop: func(a, b float64) float64 { return a / b }},
	OpPow: {name: "^", arity: 2, prec: 3, infix: true, binop: math.Pow},

	OpNeg:    {name: "neg", arity: 1, unary: func(a float64) float64 { return -a }},
	OpSin:    {name: "sin", arity: 1, unary: math.Sin},
	OpCos:    {name: "cos", arity: 1, unary: math.Cos},
	OpExp:    {name: "exp", arity: 1, unary: math.Exp},
	OpLog:    {name: "log", arity: 1, unary: math.Log},
	OpSqrt:   {name: "sqrt", arity: 1, unary: math.Sqrt},
	OpAbs:    {name: "abs", arity: 1, unary: math.Abs},
	OpSquare: {name: "square", arity: 1, unary: func(a float64) float64 { return a * a }},
	OpCube:   {name: "cube", arity: 1, unary: func(a float64) float64 { return a * a * a }},
}

// String returns the canonical operator name.
func (op Op) String() string {
	if int(op) < len(opTable) {
		return opTable[op].name
	}
	return "?"
}

// Arity returns 1 or 2.
func (op Op) Arity() int {
	return opTable[op].arity
}

// ParseOp resolves an operator by name, e.g. from a config file.
func ParseOp(name string) (Op, bool) {
	for op := Op(0); op < opCount; op++ {
		if opTable[op].name == name {
			return op, true
		}
	}
	return 0, false
}

// OperatorSet is the subset of operators a search run may use.
type OperatorSet struct {
	Binary []Op
	Unary  []Op
}

// DefaultOperators covers the arithmetic core plus the common transcendentals.
func DefaultOperators() OperatorSet {
	return OperatorSet{
		Binary: []Op{OpAdd, OpSub, OpMul, OpDiv},
		Unary:  []Op{OpSin, OpCos, OpExp, OpLog},
	}
}

// Contains reports whether op is part of the set.
func (s OperatorSet) Contains(op Op) bool {
	list := s.Binary
	if op.Arity() == 1 {
		list = s.Unary
	}
	for _, o := range list {
		if o == op {
			return true
		}
	}
	return false
}

// SameArity returns all operators in the set sharing op's arity, excluding op
// itself.
func (s OperatorSet) SameArity(op Op) []Op {
	list := s.Binary
	if op.Arity() == 1 {
		list = s.Unary
	}
	out := make([]Op, 0, len(list))
	for _, o := range list {
		if o != op {
			out = append(out, o)
		}
	}
	return out
}
