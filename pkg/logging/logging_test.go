package logging

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput records entries for assertions.
type captureOutput struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (c *captureOutput) Write(e LogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureOutput) Sync() error  { return nil }
func (c *captureOutput) Close() error { return nil }

func (c *captureOutput) all() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LogEntry(nil), c.entries...)
}

func TestSeverityFiltering(t *testing.T) {
	cap := &captureOutput{}
	logger := NewLogger(Config{Severity: WARN, Outputs: []Output{cap}})

	ctx := context.Background()
	logger.Debug(ctx, "dropped")
	logger.Info(ctx, "dropped")
	logger.Warn(ctx, "kept")
	logger.Error(ctx, "kept too")

	entries := cap.all()
	require.Len(t, entries, 2)
	assert.Equal(t, WARN, entries[0].Severity)
	assert.Equal(t, ERROR, entries[1].Severity)
}

func TestContextMetadata(t *testing.T) {
	cap := &captureOutput{}
	logger := NewLogger(Config{Severity: DEBUG, Outputs: []Output{cap}})

	ctx := WithRunID(context.Background(), "abc123")
	ctx = WithPopulation(ctx, 4)
	logger.Info(ctx, "hello %s", "world")

	entries := cap.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello world", entries[0].Message)
	assert.Equal(t, "abc123", entries[0].RunID)
	assert.Equal(t, 4, entries[0].PopulationID)
}

func TestNoContextMetadata(t *testing.T) {
	cap := &captureOutput{}
	logger := NewLogger(Config{Severity: DEBUG, Outputs: []Output{cap}})

	logger.Info(context.Background(), "bare")

	entries := cap.all()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].RunID)
	assert.Equal(t, -1, entries[0].PopulationID)
}

func TestDefaultFields(t *testing.T) {
	cap := &captureOutput{}
	logger := NewLogger(Config{
		Severity:      DEBUG,
		Outputs:       []Output{cap},
		DefaultFields: map[string]interface{}{"component": "search"},
	})

	logger.Info(context.Background(), "msg")

	entries := cap.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "search", entries[0].Fields["component"])
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"DEBUG", DEBUG},
		{"INFO", INFO},
		{"WARN", WARN},
		{"ERROR", ERROR},
		{"FATAL", FATAL},
		{"nonsense", INFO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseSeverity(tt.in), tt.in)
	}
}

func TestSetLogger(t *testing.T) {
	orig := GetLogger()
	defer SetLogger(orig)

	custom := NewLogger(Config{Severity: ERROR})
	SetLogger(custom)
	assert.Same(t, custom, GetLogger())
}
