// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// RepositoryTypeFilesystem materializes the merged view into a file.
	RepositoryTypeFilesystem RepositoryType = "filesystem"

	// FormatYAML writes the merged view as YAML.
	FormatYAML RepositoryFormat = "yaml"
	// FormatTOML writes the merged view as TOML.
	FormatTOML RepositoryFormat = "toml"
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrUnknownPlaceholder is returned when a {$key} reference names no key.
	ErrUnknownPlaceholder = errors.New("unknown placeholder")
	// ErrPlaceholderCycle is the sentinel error wrapped by PlaceholderCycleError.
	ErrPlaceholderCycle = errors.New("placeholder cycle")
	// ErrInvalidWritePath is returned by Write for relative paths and directories.
	ErrInvalidWritePath = errors.New("invalid config write path")
)

type (
	// RepositoryType selects the repository materializer.
	RepositoryType string

	// RepositoryFormat selects the file format of the filesystem materializer.
	RepositoryFormat string

	// Config is the effective project configuration after defaults, the config
	// file and environment overrides were merged and placeholders expanded.
	// Relative paths are relative to the project root.
	Config struct {
		StateDir   string           `json:"state_dir" mapstructure:"state_dir"`
		Factory    FactoryConfig    `json:"factory" mapstructure:"factory"`
		Repository RepositoryConfig `json:"repository" mapstructure:"repository"`
		Discovery  DiscoveryConfig  `json:"discovery" mapstructure:"discovery"`
		Log        LogConfig        `json:"log" mapstructure:"log"`
	}

	// FactoryConfig controls the generated factory manifest.
	FactoryConfig struct {
		AutoGenerate bool   `json:"auto_generate" mapstructure:"auto_generate"`
		OutFile      string `json:"out_file" mapstructure:"out_file"`
	}

	// RepositoryConfig controls where and how the merged view is written.
	RepositoryConfig struct {
		Type   RepositoryType   `json:"type" mapstructure:"type"`
		Path   string           `json:"path" mapstructure:"path"`
		Format RepositoryFormat `json:"format" mapstructure:"format"`
	}

	// DiscoveryConfig controls the binding state snapshot.
	DiscoveryConfig struct {
		StorePath string `json:"store_path" mapstructure:"store_path"`
	}

	// LogConfig controls logging.
	LogConfig struct {
		Level string `json:"level" mapstructure:"level"`
	}

	// InvalidConfigError reports a configuration value that failed validation.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		Key    string
		Value  string
		Reason string
	}

	// PlaceholderCycleError reports placeholders that reference each other.
	PlaceholderCycleError struct {
		Keys []string
	}
)

// DefaultConfig returns the configuration used when no file overrides a key.
func DefaultConfig() *Config {
	return &Config{
		StateDir: ".resmerge",
		Factory: FactoryConfig{
			AutoGenerate: true,
			OutFile:      "{$state_dir}/factory.gen.cue",
		},
		Repository: RepositoryConfig{
			Type:   RepositoryTypeFilesystem,
			Path:   "{$state_dir}/repository",
			Format: FormatYAML,
		},
		Discovery: DiscoveryConfig{
			StorePath: "{$state_dir}/bindings.yaml",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the values CUE cannot see, such as environment overrides.
func (c *Config) Validate() error {
	switch c.Repository.Type {
	case RepositoryTypeFilesystem:
	default:
		return &InvalidConfigError{Key: "repository.type", Value: string(c.Repository.Type), Reason: "must be filesystem"}
	}
	switch c.Repository.Format {
	case FormatYAML, FormatTOML:
	default:
		return &InvalidConfigError{Key: "repository.format", Value: string(c.Repository.Format), Reason: "must be yaml or toml"}
	}
	if strings.TrimSpace(c.StateDir) == "" {
		return &InvalidConfigError{Key: "state_dir", Reason: "must not be empty"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid config: %s %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("invalid config: %s %q %s", e.Key, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Error implements the error interface.
func (e *PlaceholderCycleError) Error() string {
	return "placeholder cycle: " + strings.Join(e.Keys, " -> ")
}

// Unwrap returns ErrPlaceholderCycle for errors.Is() compatibility.
func (e *PlaceholderCycleError) Unwrap() error { return ErrPlaceholderCycle }
