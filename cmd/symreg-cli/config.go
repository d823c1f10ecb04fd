package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/symgo/symreg/pkg/core"
	"github.com/symgo/symreg/pkg/errors"
	"github.com/symgo/symreg/pkg/expr"
)

// RunConfig is the YAML surface of a search run.
type RunConfig struct {
	Data   string `yaml:"data"`
	Target string `yaml:"target"`

	Operators struct {
		Binary []string `yaml:"binary"`
		Unary  []string `yaml:"unary"`
	} `yaml:"operators"`

	MaxSize        int     `yaml:"maxsize"`
	Iterations     int     `yaml:"iterations"`
	Populations    int     `yaml:"populations"`
	PopulationSize int     `yaml:"population_size"`
	Parsimony      float64 `yaml:"parsimony"`
	Loss           string  `yaml:"loss"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxEvals       int     `yaml:"max_evals"`
	Seed           int64   `yaml:"seed"`
	Workers        int     `yaml:"workers"`
	Deterministic  bool    `yaml:"deterministic"`
}

// LoadRunConfig parses the YAML file at path.
func LoadRunConfig(path string) (*RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "read config")
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfiguration, "parse config")
	}
	if cfg.Data == "" || cfg.Target == "" {
		return nil, errors.New(errors.InvalidConfiguration, "config needs data and target")
	}
	return &cfg, nil
}

// Options converts the config into validated search options, starting from
// the defaults and overriding only what the file sets.
func (c *RunConfig) Options() (*core.Options, error) {
	opts := core.DefaultOptions()

	if len(c.Operators.Binary)+len(c.Operators.Unary) > 0 {
		var set expr.OperatorSet
		for _, name := range c.Operators.Binary {
			op, ok := expr.ParseOp(name)
			if !ok || op.Arity() != 2 {
				return nil, errors.Newf(errors.InvalidConfiguration, "unknown binary operator %q", name)
			}
			set.Binary = append(set.Binary, op)
		}
		for _, name := range c.Operators.Unary {
			op, ok := expr.ParseOp(name)
			if !ok || op.Arity() != 1 {
				return nil, errors.Newf(errors.InvalidConfiguration, "unknown unary operator %q", name)
			}
			set.Unary = append(set.Unary, op)
		}
		opts.Operators = set
	}

	if c.MaxSize > 0 {
		opts.MaxSize = c.MaxSize
	}
	if c.Iterations > 0 {
		opts.Iterations = c.Iterations
	}
	if c.Populations > 0 {
		opts.NumPopulations = c.Populations
	}
	if c.PopulationSize > 0 {
		opts.PopulationSize = c.PopulationSize
	}
	if c.Parsimony > 0 {
		opts.Parsimony = c.Parsimony
	}
	if c.Loss != "" {
		opts.LossName = c.Loss
	}
	if c.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	if c.MaxEvals > 0 {
		opts.MaxEvals = c.MaxEvals
	}
	opts.Seed = c.Seed
	opts.NumWorkers = c.Workers
	opts.Deterministic = c.Deterministic
	if c.Deterministic {
		opts.NumWorkers = 1
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
