package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONDescriptorParser implements DescriptorParser for JSON.
type JSONDescriptorParser struct{}

// NewJSONDescriptorParser creates a new JSONDescriptorParser.
func NewJSONDescriptorParser() DescriptorParser {
	return &JSONDescriptorParser{}
}

// Parse checks that data is a single JSON object and returns it compacted.
func (p *JSONDescriptorParser) Parse(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("descriptor must be a JSON object")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("invalid descriptor JSON: %w", err)
	}
	return buf.Bytes(), nil
}
