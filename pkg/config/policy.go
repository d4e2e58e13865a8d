package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Policy overrides the built-in keyword and phrase lists. Empty lists keep the defaults.
// Keywords and topic keywords match whole words; a trailing "*" marks a stem.
//
//	keywords: [refund, chargeback, lawyer, "complain*"]
//	low_confidence_phrases: ["not sure", "no idea"]
//	topics:
//	  billing: [refund, invoice]
type Policy struct {
	Keywords             []string            `yaml:"keywords"`
	LowConfidencePhrases []string            `yaml:"low_confidence_phrases"`
	Topics               map[string][]string `yaml:"topics"`
}

// LoadPolicyFile reads a YAML policy file. An empty path returns nil, nil.
func LoadPolicyFile(path string) (*Policy, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	policy := &Policy{}
	if err := yaml.UnmarshalStrict(data, policy); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	return policy, nil
}
