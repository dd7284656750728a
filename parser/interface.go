// Package parser reads device descriptor documents and normalizes them to
// the JSON text the registry stores.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DescriptorParser converts a descriptor document into JSON.
type DescriptorParser interface {
	// Parse returns the document as JSON. The result is not validated
	// against the descriptor rules.
	Parse(data []byte) ([]byte, error)
}

// ForPath picks a parser from the file extension of path.
func ForPath(path string) (DescriptorParser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
		return NewJSONDescriptorParser(), nil
	case ".yaml", ".yml":
		return NewYamlDescriptorParser(), nil
	default:
		return nil, fmt.Errorf("unsupported descriptor format %q", ext)
	}
}
