package core

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/symgo/symreg/pkg/errors"
	"github.com/symgo/symreg/pkg/expr"
)

// MutationWeights is the weight table behind the mutation operator
// distribution. Weights are relative; they are normalized at sampling time.
type MutationWeights struct {
	MutateConstant float64 `json:"mutate_constant" validate:"gte=0"` // Default: 0.048
	MutateOperator float64 `json:"mutate_operator" validate:"gte=0"` // Default: 0.47
	AddNode        float64 `json:"add_node" validate:"gte=0"`        // Default: 0.79
	InsertNode     float64 `json:"insert_node" validate:"gte=0"`     // Default: 5.1
	DeleteNode     float64 `json:"delete_node" validate:"gte=0"`     // Default: 1.7
	Simplify       float64 `json:"simplify" validate:"gte=0"`        // Default: 0.002
	Randomize      float64 `json:"randomize" validate:"gte=0"`       // Default: 0.00023
	DoNothing      float64 `json:"do_nothing" validate:"gte=0"`      // Default: 0.21
	Optimize       float64 `json:"optimize" validate:"gte=0"`        // Default: 0.0
}

// DefaultMutationWeights mirrors the weighting that works well for symbolic
// regression in practice.
func DefaultMutationWeights() MutationWeights {
	return MutationWeights{
		MutateConstant: 0.048,
		MutateOperator: 0.47,
		AddNode:        0.79,
		InsertNode:     5.1,
		DeleteNode:     1.7,
		Simplify:       0.002,
		Randomize:      0.00023,
		DoNothing:      0.21,
		Optimize:       0.0,
	}
}

// EarlyStopFunc lets callers stop the search once any archive member
// satisfies a (loss, complexity) predicate.
type EarlyStopFunc func(loss float64, complexity int) bool

// Options is the immutable, validated configuration of a search run. It is
// shared by reference across all populations and workers; nothing mutates it
// after Validate.
type Options struct {
	// Search space
	Operators expr.OperatorSet
	MaxSize   int `validate:"gte=1"` // Default: 20
	MaxDepth  int `validate:"gte=1"` // Default: 10
	// NestedConstraints bounds how deep an operator may occur inside another:
	// NestedConstraints[outer][inner] = max nesting level of inner within
	// outer, 0 forbidding it entirely. A missing entry means unconstrained.
	NestedConstraints map[expr.Op]map[expr.Op]int

	// Population structure
	PopulationSize int `validate:"gte=2"` // Default: 33
	NumPopulations int `validate:"gte=1"` // Default: 15

	// Selection
	TournamentSelectionN int     `validate:"gte=1"`       // Default: 12
	TournamentSelectionP float64 `validate:"gt=0,lte=1"`  // Default: 0.86
	ProbPickFirst        float64 `validate:"gte=0,lte=1"` // Fast path: always take the tournament best with this probability

	// Parsimony
	Parsimony                float64 `validate:"gte=0"` // Default: 0.0032
	AdaptiveParsimonyScaling float64 `validate:"gte=0"` // Default: 20; 0 disables adaptive scaling
	// UseFrequency applies the frequency-adjusted cost when picking
	// replacement victims; UseFrequencyInTournament applies it during parent
	// selection. The two are independent.
	UseFrequency             bool
	UseFrequencyInTournament bool
	WarmupMaxsizeBy          float64 `validate:"gte=0,lte=1"` // fraction of iterations over which maxsize ramps up

	// Mutation
	MutationWeights           MutationWeights
	CrossoverProbability      float64 `validate:"gte=0,lte=1"` // Default: 0.066
	ProbabilityNegateConstant float64 `validate:"gte=0,lte=1"` // Default: 0.01
	PerturbationFactor        float64 `validate:"gte=0"`       // Default: 0.076
	SkipMutationFailures      bool    // retry with a fresh operator instead of keeping the parent
	StrictMutationFailures    bool    // surface structural rejections as fatal errors
	ShouldSimplify            bool    // enable the simplify mutation operator

	// Constant optimization
	OptimizerProbability float64 `validate:"gte=0,lte=1"` // Default: 0.14, end-of-cycle trigger
	OptimizerIterations  int     `validate:"gte=0"`       // Default: 8

	// Loss: exactly one of LossName and LossFunc must be set.
	LossName string   // one of "l2", "l1", "huber"
	LossFunc LossFunc // user-supplied; must be pure and concurrency-safe

	// Schedule
	Iterations         int `validate:"gte=1"` // Default: 40
	CyclesPerIteration int `validate:"gte=1"` // Default: 550 evolve cycles between migrations

	// Migration
	MigrationEnabled    bool
	HofMigrationEnabled bool
	FractionReplaced    float64 `validate:"gte=0,lte=1"` // Default: 0.00036
	FractionReplacedHof float64 `validate:"gte=0,lte=1"` // Default: 0.035
	TopN                int     `validate:"gte=1"`       // Default: 12

	// Batching
	Batching  bool
	BatchSize int `validate:"gte=0"` // Default: 50

	// Stopping
	Timeout   time.Duration // 0 means unbounded
	MaxEvals  int           // 0 means unbounded
	EarlyStop EarlyStopFunc

	// Execution
	NumWorkers    int   `validate:"gte=0"` // 0 means GOMAXPROCS
	Deterministic bool  // single-threaded, fully seeded
	Seed          int64 // Default: 0

	// Generation of fresh random trees
	ConstProb  float64 `validate:"gte=0,lte=1"` // Default: 0.3
	ConstStdev float64 `validate:"gte=0"`       // Default: 1.0
}

// DefaultOptions returns a validated-ready configuration with defaults that
// match common symbolic regression practice.
func DefaultOptions() *Options {
	return &Options{
		Operators:                 expr.DefaultOperators(),
		MaxSize:                   20,
		MaxDepth:                  10,
		PopulationSize:            33,
		NumPopulations:            15,
		TournamentSelectionN:      12,
		TournamentSelectionP:      0.86,
		Parsimony:                 0.0032,
		AdaptiveParsimonyScaling:  20,
		UseFrequency:              true,
		UseFrequencyInTournament:  true,
		MutationWeights:           DefaultMutationWeights(),
		CrossoverProbability:      0.066,
		ProbabilityNegateConstant: 0.01,
		PerturbationFactor:        0.076,
		SkipMutationFailures:      true,
		ShouldSimplify:            true,
		OptimizerProbability:      0.14,
		OptimizerIterations:       8,
		LossName:                  "l2",
		Iterations:                40,
		CyclesPerIteration:        550,
		MigrationEnabled:          true,
		HofMigrationEnabled:       true,
		FractionReplaced:          0.00036,
		FractionReplacedHof:       0.035,
		TopN:                      12,
		BatchSize:                 50,
		ConstProb:                 0.3,
		ConstStdev:                1.0,
	}
}

var validate = validator.New()

// Validate checks the configuration and returns an InvalidConfiguration
// error describing the first violation found. It must be called before the
// Options are shared with the search.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(err, errors.InvalidConfiguration, "invalid options")
	}

	if o.PopulationSize < o.TournamentSelectionN {
		return errors.WithFields(
			errors.New(errors.InvalidConfiguration, "population smaller than tournament"),
			errors.Fields{"population_size": o.PopulationSize, "tournament_n": o.TournamentSelectionN})
	}

	if (o.LossName == "") == (o.LossFunc == nil) {
		return errors.New(errors.InvalidConfiguration,
			"exactly one of LossName and LossFunc must be set")
	}
	if o.LossName != "" {
		if _, ok := builtinLosses[o.LossName]; !ok {
			return errors.Newf(errors.InvalidConfiguration, "unknown loss %q", o.LossName)
		}
	}

	if len(o.Operators.Binary)+len(o.Operators.Unary) == 0 {
		return errors.New(errors.InvalidConfiguration, "empty operator set")
	}
	for outer, inner := range o.NestedConstraints {
		if !o.Operators.Contains(outer) {
			return errors.Newf(errors.InvalidConfiguration,
				"nested constraint on %s, which is not in the operator set", outer)
		}
		for op, depth := range inner {
			if depth < 0 {
				return errors.Newf(errors.InvalidConfiguration,
					"negative nesting bound for %s inside %s", op, outer)
			}
		}
	}

	if o.Batching && o.BatchSize < 1 {
		return errors.New(errors.InvalidConfiguration, "batching enabled with batch size < 1")
	}
	if o.Deterministic && o.NumWorkers > 1 {
		return errors.New(errors.InvalidConfiguration,
			"deterministic mode requires a single worker")
	}

	return nil
}

// Loss resolves the configured loss function.
func (o *Options) Loss() LossFunc {
	if o.LossFunc != nil {
		return o.LossFunc
	}
	return builtinLosses[o.LossName]
}
