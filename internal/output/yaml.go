package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats data as block-style YAML, keeping the field order of
// the response.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(data json.RawMessage, w io.Writer) error {
	// JSON is valid YAML, so decoding into a node keeps key order.
	var doc yaml.Node
	if err := yaml.Unmarshal(nullIfEmpty(data), &doc); err != nil {
		return fmt.Errorf("failed to read response data: %w", err)
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to write YAML: %w", err)
	}
	return enc.Close()
}

// blockStyle drops the flow style the JSON syntax left on collections.
func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style &^= yaml.FlowStyle
	}
	if n.Kind == yaml.ScalarNode && n.Style&yaml.DoubleQuotedStyle != 0 {
		n.Style &^= yaml.DoubleQuotedStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}
