// Package expr provides the typed expression trees consumed by the search
// engine: evaluation, structural metrics, cloning, mutation primitives,
// random generation and algebraic simplification.
package expr

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// Kind discriminates the node variants of an expression tree.
type Kind uint8

const (
	KindConstant Kind = iota
	KindVariable
	KindUnary
	KindBinary
)

// Node is a single node of an expression tree. A tree is owned by exactly one
// member at a time; sharing subtrees across trees is not allowed.
type Node struct {
	Kind    Kind
	Value   float64 // constant payload, KindConstant only
	Feature int     // variable index, KindVariable only
	Op      Op      // operator, KindUnary/KindBinary only
	L, R    *Node   // R is nil for unary nodes
}

// NewConstant returns a constant leaf.
func NewConstant(v float64) *Node {
	return &Node{Kind: KindConstant, Value: v}
}

// NewVariable returns a variable leaf referring to feature index i.
func NewVariable(i int) *Node {
	return &Node{Kind: KindVariable, Feature: i}
}

// NewUnary returns a unary operator node.
func NewUnary(op Op, child *Node) *Node {
	return &Node{Kind: KindUnary, Op: op, L: child}
}

// NewBinary returns a binary operator node.
func NewBinary(op Op, l, r *Node) *Node {
	return &Node{Kind: KindBinary, Op: op, L: l, R: r}
}

// Size returns the number of nodes in the tree, the complexity measure used
// throughout the search.
func Size(n *Node) int {
	if n == nil {
		return 0
	}
	return 1 + Size(n.L) + Size(n.R)
}

// Depth returns the height of the tree; a single leaf has depth 1.
func Depth(n *Node) int {
	if n == nil {
		return 0
	}
	ld, rd := Depth(n.L), Depth(n.R)
	if rd > ld {
		ld = rd
	}
	return 1 + ld
}

// Clone returns a deep copy sharing no nodes with the original.
func Clone(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.L = Clone(n.L)
	c.R = Clone(n.R)
	return &c
}

// Nodes returns all nodes in preorder. The returned pointers alias the tree,
// so they can be used to mutate it in place.
func Nodes(n *Node) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(m *Node) {
		if m == nil {
			return
		}
		out = append(out, m)
		walk(m.L)
		walk(m.R)
	}
	walk(n)
	return out
}

// RandomNode picks a uniformly random node of the tree.
func RandomNode(n *Node, rng *rand.Rand) *Node {
	nodes := Nodes(n)
	return nodes[rng.Intn(len(nodes))]
}

// ReplaceChild swaps the child slot of parent currently holding old with repl.
// Returns false if old is not a direct child of parent.
func ReplaceChild(parent, old, repl *Node) bool {
	switch {
	case parent.L == old:
		parent.L = repl
		return true
	case parent.R == old:
		parent.R = repl
		return true
	}
	return false
}

// ParentOf locates the parent of target within root, nil if target is the
// root or not part of the tree.
func ParentOf(root, target *Node) *Node {
	if root == nil || root == target {
		return nil
	}
	if root.L == target || root.R == target {
		return root
	}
	if p := ParentOf(root.L, target); p != nil {
		return p
	}
	return ParentOf(root.R, target)
}

// Constants returns pointers to every constant leaf, preorder.
func Constants(n *Node) []*Node {
	var out []*Node
	for _, m := range Nodes(n) {
		if m.Kind == KindConstant {
			out = append(out, m)
		}
	}
	return out
}

// Equal reports structural equality of two trees.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindConstant:
		return a.Value == b.Value
	case KindVariable:
		return a.Feature == b.Feature
	case KindUnary:
		return a.Op == b.Op && Equal(a.L, b.L)
	default:
		return a.Op == b.Op && Equal(a.L, b.L) && Equal(a.R, b.R)
	}
}

// String renders the tree in infix notation using the given variable names.
// Falls back to xN when no name is available.
func String(n *Node, varNames []string) string {
	var b strings.Builder
	writeNode(&b, n, varNames, 0)
	return b.String()
}

func writeNode(b *strings.Builder, n *Node, varNames []string, parentPrec int) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindConstant:
		b.WriteString(strconv.FormatFloat(n.Value, 'g', 6, 64))
	case KindVariable:
		if n.Feature >= 0 && n.Feature < len(varNames) && varNames[n.Feature] != "" {
			b.WriteString(varNames[n.Feature])
		} else {
			fmt.Fprintf(b, "x%d", n.Feature)
		}
	case KindUnary:
		b.WriteString(n.Op.String())
		b.WriteByte('(')
		writeNode(b, n.L, varNames, 0)
		b.WriteByte(')')
	case KindBinary:
		info := opTable[n.Op]
		if !info.infix {
			b.WriteString(n.Op.String())
			b.WriteByte('(')
			writeNode(b, n.L, varNames, 0)
			b.WriteString(", ")
			writeNode(b, n.R, varNames, 0)
			b.WriteByte(')')
			return
		}
		needParens := info.prec < parentPrec
		if needParens {
			b.WriteByte('(')
		}
		writeNode(b, n.L, varNames, info.prec)
		b.WriteByte(' ')
		b.WriteString(n.Op.String())
		b.WriteByte(' ')
		// Right operand binds one tighter so non-associative ops parenthesize.
		writeNode(b, n.R, varNames, info.prec+1)
		if needParens {
			b.WriteByte(')')
		}
	}
}
