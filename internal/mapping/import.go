package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the YAML layout accepted by ParseRules.
type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes a YAML document of the form
//
//	rules:
//	  - integration_id: sap-1
//	    source_field_type: gl_account
//	    source_field_value: "500100"
//	    target_scope: 1
//	    target_category: stationary_combustion
//
// Unknown keys are rejected so typos do not silently drop fields.
func ParseRules(r io.Reader) ([]Rule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f rulesFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parsing mapping rules: %w", err)
	}
	return f.Rules, nil
}

// LoadRulesFile reads and parses a YAML rules file.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping rules %s: %w", path, err)
	}
	return ParseRules(bytes.NewReader(data))
}
