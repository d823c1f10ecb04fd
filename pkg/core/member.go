package core

import (
	"math"

	"github.com/google/uuid"

	"github.com/symgo/symreg/pkg/expr"
)

// PopMember is one candidate in a population: an owned tree plus its cached
// scores. Members are replaced wholesale rather than mutated in place; the
// only exception is constant re-optimization, which installs a freshly owned
// tree.
type PopMember struct {
	ID    string     // lineage tag, stable across copies
	Tree  *expr.Node // owned, never aliased across members
	Loss  float64    // raw loss, >= 0 or +Inf
	Score float64    // loss plus parsimony penalty, the tournament metric
	Birth int        // generation counter at creation
}

// NewPopMember builds a member and computes its parsimony-adjusted score.
func NewPopMember(tree *expr.Node, loss float64, birth int, opts *Options) *PopMember {
	m := &PopMember{
		ID:    uuid.NewString(),
		Tree:  tree,
		Loss:  loss,
		Birth: birth,
	}
	m.Score = ScoreOf(loss, Complexity(tree), opts)
	return m
}

// Complexity is the integer size measure of a tree, the secondary objective
// alongside loss.
func Complexity(tree *expr.Node) int {
	return expr.Size(tree)
}

// ScoreOf applies the baseline parsimony penalty to a raw loss.
func ScoreOf(loss float64, complexity int, opts *Options) float64 {
	if math.IsInf(loss, 1) {
		return loss
	}
	return loss + opts.Parsimony*float64(complexity)
}

// Copy returns a deep copy: the tree is cloned so the copy shares no nodes
// with the original. The lineage ID is preserved.
func (m *PopMember) Copy() *PopMember {
	return &PopMember{
		ID:    m.ID,
		Tree:  expr.Clone(m.Tree),
		Loss:  m.Loss,
		Score: m.Score,
		Birth: m.Birth,
	}
}
