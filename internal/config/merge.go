package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyOrganization = "organization"
	keyLogging      = "logging"
	keyReport       = "report"
	keyTags         = "tags"
	keySync         = "sync"
	keyStorage      = "storage"
	keyRedis        = "redis"
	keyMapping      = "mapping"
	keyFactors      = "factors"
	keyIntegrations = "integrations"
)

// knownTopLevelKeys lists the YAML keys that correspond to exported Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyOrganization: true,
	keyLogging:      true,
	keyReport:       true,
	keyTags:         true,
	keySync:         true,
	keyStorage:      true,
	keyRedis:        true,
	keyMapping:      true,
	keyFactors:      true,
	keyIntegrations: true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Fields named in an overlay section overwrite the
// target's fields; fields and sections the overlay omits keep their values.
// Lists such as integrations are replaced as a whole.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	// Discover which top-level keys are present in the overlay.
	var overlay map[string]interface{}
	if err = yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parsing overlay YAML from %s: %w", overlayPath, err)
	}

	// Empty or comment-only file: nothing to merge.
	if len(overlay) == 0 {
		return nil
	}

	for key, value := range overlay {
		if !knownTopLevelKeys[key] {
			continue
		}

		// Re-marshal the single section so we can unmarshal it onto the
		// strongly-typed target field.
		sectionBytes, marshalErr := yaml.Marshal(value)
		if marshalErr != nil {
			return fmt.Errorf("re-marshalling overlay section %q: %w", key, marshalErr)
		}

		if err = unmarshalSection(target, key, sectionBytes); err != nil {
			return fmt.Errorf("applying overlay section %q: %w", key, err)
		}
	}

	return nil
}

// unmarshalSection unmarshals raw YAML bytes into the correct field of target
// based on the given key name.
func unmarshalSection(target *Config, key string, data []byte) error {
	switch key {
	case keyOrganization:
		return replaceSection(data, &target.Organization)
	case keyLogging:
		return replaceSection(data, &target.Logging)
	case keyReport:
		return replaceSection(data, &target.Report)
	case keyTags:
		return replaceSection(data, &target.Tags)
	case keySync:
		return replaceSection(data, &target.Sync)
	case keyStorage:
		return replaceSection(data, &target.Storage)
	case keyRedis:
		return replaceSection(data, &target.Redis)
	case keyMapping:
		return replaceSection(data, &target.Mapping)
	case keyFactors:
		return replaceSection(data, &target.Factors)
	case keyIntegrations:
		return replaceSection(data, &target.Integrations)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

// replaceSection decodes data over a copy of the section and only then assigns
// it, so a decode error leaves the target section untouched.
func replaceSection[T any](data []byte, field *T) error {
	v := *field
	if err := yaml.Unmarshal(data, &v); err != nil {
		return err
	}
	*field = v
	return nil
}
