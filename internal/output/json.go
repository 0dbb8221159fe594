package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter formats data as indented JSON
type JSONFormatter struct {
	Indent string
}

// Format writes data indented, followed by a newline. Absent data prints as null.
func (f *JSONFormatter) Format(data json.RawMessage, w io.Writer) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, nullIfEmpty(data), "", f.Indent); err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// RawFormatter writes data compacted onto a single line, one document per
// line, which suits streams piped into other tools.
type RawFormatter struct{}

func (f *RawFormatter) Format(data json.RawMessage, w io.Writer) error {
	var buf bytes.Buffer
	if err := json.Compact(&buf, nullIfEmpty(data)); err != nil {
		return fmt.Errorf("failed to compact JSON: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func nullIfEmpty(data json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null")
	}
	return data
}
