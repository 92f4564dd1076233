package policy

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadDocument parses a single tier's YAML policy document.
func LoadDocument(b []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("policy: parse document: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("policy: document missing version")
	}
	return &doc, nil
}
