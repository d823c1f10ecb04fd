package logging

import "context"

type contextKey string

const (
	runIDKey      contextKey = "symreg-run-id"
	populationKey contextKey = "symreg-population"
)

// WithRunID attaches a search run identifier to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID extracts the search run identifier from the context.
func GetRunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok
}

// WithPopulation attaches a population index to the context.
func WithPopulation(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, populationKey, index)
}

// GetPopulation extracts the population index from the context.
func GetPopulation(ctx context.Context) (int, bool) {
	idx, ok := ctx.Value(populationKey).(int)
	return idx, ok
}
