package logging

// LogEntry represents a structured log record with fields relevant to an
// evolutionary search run.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Search-specific fields
	RunID        string // Identifier of the search run
	PopulationID int    // Index of the population the event belongs to, -1 if global

	// General structured data
	Fields map[string]interface{}
}
