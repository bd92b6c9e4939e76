package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Top-level YAML config key names used for shallow merge.
const (
	keyGovernor = "governor"
	keyExport   = "export"
	keyHost     = "host"
	keyLogging  = "logging"
	keyCache    = "cache"
	keyPrompts  = "prompts"
)

// knownTopLevelKeys lists the YAML keys that correspond to Config fields.
// Keys not in this list are silently ignored during merge.
//
//nolint:gochecknoglobals // Compile-time constant lookup table.
var knownTopLevelKeys = map[string]bool{
	keyGovernor: true,
	keyExport:   true,
	keyHost:     true,
	keyLogging:  true,
	keyCache:    true,
	keyPrompts:  true,
}

// ShallowMergeYAML loads a YAML file and merges its top-level keys onto
// the target Config. Keys present in the overlay replace entire sections
// in the target. Keys absent in the overlay are left unchanged.
func ShallowMergeYAML(target *Config, overlayPath string) error {
	if target == nil {
		return errors.New("nil target *Config in ShallowMergeYAML")
	}

	data, err := os.ReadFile(overlayPath)
	if err != nil {
		return fmt.Errorf("reading overlay file %s: %w", overlayPath, err)
	}

	var overlay map[string]any
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

		// Re-marshal the single section so it decodes onto the typed field.
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

// unmarshalSection decodes data into a fresh value and replaces the section
// of target named by key.
func unmarshalSection(target *Config, key string, data []byte) error {
	switch key {
	case keyGovernor:
		return replaceSection(&target.Governor, data)
	case keyExport:
		return replaceSection(&target.Export, data)
	case keyHost:
		return replaceSection(&target.Host, data)
	case keyLogging:
		return replaceSection(&target.Logging, data)
	case keyCache:
		return replaceSection(&target.Cache, data)
	case keyPrompts:
		return replaceSection(&target.Prompts, data)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
}

func replaceSection[T any](dst *T, data []byte) error {
	var v T
	if err := yaml.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}
