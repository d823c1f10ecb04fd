package search

import (
	"math"
	"math/rand"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/errors"
	"github.com/symgo/symreg/pkg/expr"
)

// mutationKind is the explicit tagged variant behind the weighted operator
// dispatch: one entry per mutation, with a parallel weight table sampled via
// a cumulative distribution.
type mutationKind int

const (
	mutConstant mutationKind = iota
	mutOperator
	mutAddNode
	mutInsertNode
	mutDeleteNode
	mutSimplify
	mutRandomize
	mutDoNothing
	mutOptimize
	mutationKinds
)

func (k mutationKind) String() string {
	return [...]string{
		"mutate_constant", "mutate_operator", "add_node", "insert_node",
		"delete_node", "simplify", "randomize", "do_nothing", "optimize",
	}[k]
}

// ConstOptimizer is the contract of the external constant optimizer: fallible
// like any mutation, returning a freshly owned tree and its loss.
type ConstOptimizer func(tree *expr.Node, ds *core.Dataset) (*expr.Node, float64, error)

// MutationEngine applies one stochastic operator to produce an offspring.
// An engine is owned by a single worker; it is not safe for concurrent use.
type MutationEngine struct {
	opts      *core.Options
	ds        *core.Dataset
	rng       *rand.Rand
	optimizer ConstOptimizer
	weights   [mutationKinds]float64
	maxSize   int // current enforced maxsize, ramped by warmup
}

// NewMutationEngine builds an engine. The optimizer may be nil, in which case
// the optimize mutation is disabled.
func NewMutationEngine(rng *rand.Rand, ds *core.Dataset, opts *core.Options, optimizer ConstOptimizer) *MutationEngine {
	e := &MutationEngine{
		opts:      opts,
		ds:        ds,
		rng:       rng,
		optimizer: optimizer,
		maxSize:   opts.MaxSize,
	}
	w := opts.MutationWeights
	e.weights = [mutationKinds]float64{
		mutConstant:   w.MutateConstant,
		mutOperator:   w.MutateOperator,
		mutAddNode:    w.AddNode,
		mutInsertNode: w.InsertNode,
		mutDeleteNode: w.DeleteNode,
		mutSimplify:   w.Simplify,
		mutRandomize:  w.Randomize,
		mutDoNothing:  w.DoNothing,
		mutOptimize:   w.Optimize,
	}
	if !opts.ShouldSimplify {
		e.weights[mutSimplify] = 0
	}
	if optimizer == nil {
		e.weights[mutOptimize] = 0
	}
	return e
}

// SetMaxSize updates the enforced maxsize (warmup ramp).
func (e *MutationEngine) SetMaxSize(size int) {
	e.maxSize = size
}

// sampleKind draws a mutation by weighted random choice; weights normalize to
// a distribution at sampling time.
func (e *MutationEngine) sampleKind() mutationKind {
	var total float64
	for _, w := range e.weights {
		total += w
	}
	if total == 0 {
		return mutDoNothing
	}
	r := e.rng.Float64() * total
	for k, w := range e.weights {
		r -= w
		if r <= 0 && w > 0 {
			return mutationKind(k)
		}
	}
	return mutDoNothing
}

// Mutate applies one sampled operator to parent and returns the evaluated
// child. Every operator except do_nothing re-evaluates loss before
// acceptance; do_nothing copies the parent's loss bit-identically. The
// returned bool is false when the attempt was structurally rejected; a child
// that evaluates to a non-finite loss is still returned, carrying +Inf. The
// error is non-nil only for fatal conditions (negative user loss).
func (e *MutationEngine) Mutate(parent *core.PopMember, birth int, batchIdx []int) (*core.PopMember, bool, error) {
	kind := e.sampleKind()

	if kind == mutDoNothing {
		child := parent.Copy()
		child.Birth = birth
		return child, true, nil
	}

	if kind == mutOptimize {
		tree, loss, err := e.optimizer(expr.Clone(parent.Tree), e.ds)
		if err != nil {
			return nil, false, nil
		}
		if !e.checkTree(tree) {
			return nil, false, nil
		}
		return core.NewPopMember(tree, loss, birth, e.opts), true, nil
	}

	tree, ok := e.applyStructural(kind, parent.Tree)
	if !ok {
		return nil, false, nil
	}
	if !e.checkTree(tree) {
		return nil, false, nil
	}

	loss, err := core.EvalLoss(tree, e.ds, e.opts, batchIdx)
	if err != nil {
		return nil, false, err
	}
	return core.NewPopMember(tree, loss, birth, e.opts), true, nil
}

func (e *MutationEngine) applyStructural(kind mutationKind, parent *expr.Node) (*expr.Node, bool) {
	tree := expr.Clone(parent)
	switch kind {
	case mutConstant:
		return tree, e.mutateConstant(tree)
	case mutOperator:
		return tree, e.mutateOperator(tree)
	case mutAddNode:
		return e.addNode(tree)
	case mutInsertNode:
		return e.insertNode(tree)
	case mutDeleteNode:
		return e.deleteNode(tree)
	case mutSimplify:
		return expr.Simplify(tree), true
	case mutRandomize:
		return expr.RandomTree(e.rng, e.genOptions()), true
	default:
		return tree, true
	}
}

func (e *MutationEngine) genOptions() expr.GenOptions {
	return expr.GenOptions{
		Operators:   e.opts.Operators,
		NumFeatures: e.ds.NumFeatures(),
		MaxSize:     e.maxSize,
		MaxDepth:    e.opts.MaxDepth,
		ConstProb:   e.opts.ConstProb,
		ConstStdev:  e.opts.ConstStdev,
	}
}

// mutateConstant applies a multiplicative log-normal perturbation to one
// random constant leaf, with an occasional sign flip.
func (e *MutationEngine) mutateConstant(tree *expr.Node) bool {
	consts := expr.Constants(tree)
	if len(consts) == 0 {
		return false
	}
	c := consts[e.rng.Intn(len(consts))]
	factor := math.Exp(e.rng.NormFloat64() * e.opts.PerturbationFactor)
	c.Value *= factor
	if e.rng.Float64() < e.opts.ProbabilityNegateConstant {
		c.Value = -c.Value
	}
	return true
}

// mutateOperator swaps one operator node for another of equal arity.
func (e *MutationEngine) mutateOperator(tree *expr.Node) bool {
	var ops []*expr.Node
	for _, n := range expr.Nodes(tree) {
		if n.Kind == expr.KindUnary || n.Kind == expr.KindBinary {
			ops = append(ops, n)
		}
	}
	if len(ops) == 0 {
		return false
	}
	target := ops[e.rng.Intn(len(ops))]
	alts := e.opts.Operators.SameArity(target.Op)
	if len(alts) == 0 {
		return false
	}
	target.Op = alts[e.rng.Intn(len(alts))]
	return true
}

// addNode grows the tree by replacing a random leaf with a fresh operator
// node over new leaves.
func (e *MutationEngine) addNode(tree *expr.Node) (*expr.Node, bool) {
	var leaves []*expr.Node
	for _, n := range expr.Nodes(tree) {
		if n.Kind == expr.KindConstant || n.Kind == expr.KindVariable {
			leaves = append(leaves, n)
		}
	}
	if len(leaves) == 0 {
		return nil, false
	}
	leaf := leaves[e.rng.Intn(len(leaves))]
	repl, ok := e.randomOpNode()
	if !ok {
		return nil, false
	}
	if leaf == tree {
		return repl, true
	}
	parent := expr.ParentOf(tree, leaf)
	if parent == nil || !expr.ReplaceChild(parent, leaf, repl) {
		return nil, false
	}
	return tree, true
}

func (e *MutationEngine) randomOpNode() (*expr.Node, bool) {
	gen := e.genOptions()
	nBin, nUn := len(e.opts.Operators.Binary), len(e.opts.Operators.Unary)
	if nBin == 0 && nUn == 0 {
		return nil, false
	}
	if nBin > 0 && (nUn == 0 || e.rng.Float64() < 0.7) {
		op := e.opts.Operators.Binary[e.rng.Intn(nBin)]
		return expr.NewBinary(op, expr.RandomLeaf(e.rng, gen), expr.RandomLeaf(e.rng, gen)), true
	}
	op := e.opts.Operators.Unary[e.rng.Intn(nUn)]
	return expr.NewUnary(op, expr.RandomLeaf(e.rng, gen)), true
}

// insertNode splices a fresh operator above a random subtree.
func (e *MutationEngine) insertNode(tree *expr.Node) (*expr.Node, bool) {
	target := expr.RandomNode(tree, e.rng)
	gen := e.genOptions()

	var repl *expr.Node
	nBin, nUn := len(e.opts.Operators.Binary), len(e.opts.Operators.Unary)
	switch {
	case nBin > 0 && (nUn == 0 || e.rng.Float64() < 0.7):
		op := e.opts.Operators.Binary[e.rng.Intn(nBin)]
		leaf := expr.RandomLeaf(e.rng, gen)
		if e.rng.Float64() < 0.5 {
			repl = expr.NewBinary(op, target, leaf)
		} else {
			repl = expr.NewBinary(op, leaf, target)
		}
	case nUn > 0:
		op := e.opts.Operators.Unary[e.rng.Intn(nUn)]
		repl = expr.NewUnary(op, target)
	default:
		return nil, false
	}

	if target == tree {
		return repl, true
	}
	parent := expr.ParentOf(tree, target)
	if parent == nil || !expr.ReplaceChild(parent, target, repl) {
		return nil, false
	}
	return tree, true
}

// deleteNode removes a random operator node by hoisting one of its children.
// Fails on a tree with no operator nodes.
func (e *MutationEngine) deleteNode(tree *expr.Node) (*expr.Node, bool) {
	var ops []*expr.Node
	for _, n := range expr.Nodes(tree) {
		if n.Kind == expr.KindUnary || n.Kind == expr.KindBinary {
			ops = append(ops, n)
		}
	}
	if len(ops) == 0 {
		return nil, false
	}
	target := ops[e.rng.Intn(len(ops))]
	child := target.L
	if target.Kind == expr.KindBinary && e.rng.Float64() < 0.5 {
		child = target.R
	}
	if target == tree {
		return child, true
	}
	parent := expr.ParentOf(tree, target)
	if parent == nil || !expr.ReplaceChild(parent, target, child) {
		return nil, false
	}
	return tree, true
}

// Crossover swaps random subtrees between two parents and returns both
// children, each already evaluated. ok is false when either child violates a
// structural constraint or fails evaluation.
func (e *MutationEngine) Crossover(a, b *core.PopMember, birth int, batchIdx []int) (*core.PopMember, *core.PopMember, bool, error) {
	ta, tb := expr.Clone(a.Tree), expr.Clone(b.Tree)

	na := expr.RandomNode(ta, e.rng)
	nb := expr.RandomNode(tb, e.rng)

	pa := expr.ParentOf(ta, na)
	pb := expr.ParentOf(tb, nb)

	// Swap the subtrees in place.
	if pa == nil {
		ta = nb
	} else {
		expr.ReplaceChild(pa, na, nb)
	}
	if pb == nil {
		tb = na
	} else {
		expr.ReplaceChild(pb, nb, na)
	}

	if !e.checkTree(ta) || !e.checkTree(tb) {
		return nil, nil, false, nil
	}

	lossA, err := core.EvalLoss(ta, e.ds, e.opts, batchIdx)
	if err != nil {
		return nil, nil, false, err
	}
	lossB, err := core.EvalLoss(tb, e.ds, e.opts, batchIdx)
	if err != nil {
		return nil, nil, false, err
	}

	return core.NewPopMember(ta, lossA, birth, e.opts),
		core.NewPopMember(tb, lossB, birth, e.opts), true, nil
}

// checkTree enforces maxsize, maxdepth and per-operator nesting constraints.
func (e *MutationEngine) checkTree(tree *expr.Node) bool {
	if tree == nil {
		return false
	}
	if expr.Size(tree) > e.maxSize || expr.Depth(tree) > e.opts.MaxDepth {
		return false
	}
	return checkNesting(tree, e.opts.NestedConstraints)
}

// checkNesting verifies that for every constrained (outer, inner) pair, the
// deepest chain of inner operators below any outer node stays within bounds.
func checkNesting(tree *expr.Node, constraints map[expr.Op]map[expr.Op]int) bool {
	if len(constraints) == 0 {
		return true
	}
	for _, n := range expr.Nodes(tree) {
		if n.Kind != expr.KindUnary && n.Kind != expr.KindBinary {
			continue
		}
		inner, ok := constraints[n.Op]
		if !ok {
			continue
		}
		for op, bound := range inner {
			if maxChain(n.L, op) > bound || maxChain(n.R, op) > bound {
				return false
			}
		}
	}
	return true
}

// maxChain returns the maximum number of op occurrences along any
// root-to-leaf path of the subtree.
func maxChain(n *expr.Node, op expr.Op) int {
	if n == nil {
		return 0
	}
	depth := maxChain(n.L, op)
	if r := maxChain(n.R, op); r > depth {
		depth = r
	}
	if (n.Kind == expr.KindUnary || n.Kind == expr.KindBinary) && n.Op == op {
		depth++
	}
	return depth
}

// rejectMutation surfaces a structural rejection in strict mode.
func rejectMutation(kind string) error {
	return errors.WithFields(
		errors.New(errors.MutationRejected, "mutation violated structural constraints"),
		errors.Fields{"mutation": kind})
}
