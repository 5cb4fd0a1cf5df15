package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// FormatVersion is written into every JSON result's metadata
const FormatVersion = "1.0"

// JSONFormatter renders results as JSON objects
type JSONFormatter struct {
	Indent          int
	IncludeMetadata bool

	now    func() time.Time
	buffer []map[string]any
}

// NewJSONFormatter creates a formatter with two-space indent and metadata
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{
		Indent:          2,
		IncludeMetadata: true,
		now:             time.Now,
	}
}

// toObject wraps content: strings become {"text": ...}, maps are copied,
// anything else becomes {"content": ...}
func toObject(content any) map[string]any {
	switch v := content.(type) {
	case string:
		return map[string]any{"text": v}
	case map[string]any:
		return maps.Clone(v)
	case map[string]string:
		obj := make(map[string]any, len(v))
		for k, s := range v {
			obj[k] = s
		}
		return obj
	default:
		return map[string]any{"content": fmt.Sprint(v)}
	}
}

// Format implements Formatter
func (f *JSONFormatter) Format(content any) (string, error) {
	obj := toObject(content)
	if f.IncludeMetadata {
		obj["metadata"] = map[string]any{
			"timestamp":      f.now().Format(time.RFC3339),
			"format_version": FormatVersion,
		}
	}
	return f.encode(obj)
}

// Append implements Formatter
func (f *JSONFormatter) Append(content any) {
	f.buffer = append(f.buffer, toObject(content))
}

// Formatted renders the appended results as a JSON array
func (f *JSONFormatter) Formatted() (string, error) {
	items := f.buffer
	if items == nil {
		items = []map[string]any{}
	}
	return f.encode(items)
}

// Clear implements Formatter
func (f *JSONFormatter) Clear() {
	f.buffer = nil
}

func (f *JSONFormatter) encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// 日本語や記号をそのまま出力する
	enc.SetEscapeHTML(false)
	if f.Indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", f.Indent))
	}
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
