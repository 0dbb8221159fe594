// Package output renders GraphQL response data and command status for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// Format represents the output format
type Format string

const (
	FormatJSON Format = "json"
	FormatRaw  Format = "raw"
	FormatYAML Format = "yaml"
)

// Formatter writes one response's data
type Formatter interface {
	Format(data json.RawMessage, w io.Writer) error
}

// ParseFormat validates a format name. An empty name selects JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatRaw, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("invalid output format %q (use json, raw or yaml)", s)
	}
}

// NewFormatter creates a formatter for the specified format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatRaw:
		return &RawFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &JSONFormatter{Indent: "  "}
	}
}
