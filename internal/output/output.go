package output

import (
	"fmt"
	"strings"
)

// Formatter renders transcription results for the user
type Formatter interface {
	// Format renders a single result
	Format(content any) (string, error)
	// Append buffers a result for Formatted
	Append(content any)
	// Formatted renders everything appended so far
	Formatted() (string, error)
	// Clear drops buffered results
	Clear()
}

// New returns the formatter registered under name ("text" or "json")
func New(name string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return NewTextFormatter(), nil
	case "json":
		return NewJSONFormatter(), nil
	default:
		return nil, fmt.Errorf("unknown output format: %q (expected text or json)", name)
	}
}
