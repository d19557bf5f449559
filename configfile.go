package pluggable

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// moduleManifest mirrors ModuleConfig for decoding, with settings as a raw
// map so values funnel through the settings union afterwards.
type moduleManifest struct {
	ID                    string                 `yaml:"id" toml:"id"`
	Name                  string                 `yaml:"name" toml:"name"`
	Version               string                 `yaml:"version" toml:"version"`
	Dependencies          []string               `yaml:"dependencies" toml:"dependencies"`
	DependencyConstraints []DependencyConstraint `yaml:"dependencyConstraints" toml:"dependencyConstraints"`
	MinCoreVersion        string                 `yaml:"minCoreVersion" toml:"minCoreVersion"`
	MaxCoreVersion        string                 `yaml:"maxCoreVersion" toml:"maxCoreVersion"`
	Enabled               *bool                  `yaml:"enabled" toml:"enabled"`
	Settings              map[string]any         `yaml:"settings" toml:"settings"`
	WatchPath             string                 `yaml:"watchPath" toml:"watchPath"`
}

// LoadModuleConfig parses a module manifest file into a ModuleConfig.
// The format is chosen by extension: .yaml/.yml or .toml. Discovery of
// manifest files on disk stays the host's responsibility; this only parses
// a path it is handed.
//
// Enabled defaults to true when the manifest omits it.
func LoadModuleConfig(path string) (ModuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModuleConfig{}, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return ParseModuleConfig(data, filepath.Ext(path))
}

// ParseModuleConfig decodes manifest bytes in the format implied by ext.
func ParseModuleConfig(data []byte, ext string) (ModuleConfig, error) {
	var manifest moduleManifest
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &manifest); err != nil {
			return ModuleConfig{}, fmt.Errorf("parsing YAML manifest: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &manifest); err != nil {
			return ModuleConfig{}, fmt.Errorf("parsing TOML manifest: %w", err)
		}
	default:
		return ModuleConfig{}, fmt.Errorf("%w: %q", ErrUnsupportedManifestFormat, ext)
	}

	settings, err := NewSettings(manifest.Settings)
	if err != nil {
		return ModuleConfig{}, &ConfigValidationError{Field: "settings", Reason: err.Error()}
	}

	enabled := true
	if manifest.Enabled != nil {
		enabled = *manifest.Enabled
	}

	return ModuleConfig{
		ID:                    manifest.ID,
		Name:                  manifest.Name,
		Version:               manifest.Version,
		Dependencies:          manifest.Dependencies,
		DependencyConstraints: manifest.DependencyConstraints,
		MinCoreVersion:        manifest.MinCoreVersion,
		MaxCoreVersion:        manifest.MaxCoreVersion,
		Enabled:               enabled,
		Settings:              settings,
		WatchPath:             manifest.WatchPath,
	}, nil
}
