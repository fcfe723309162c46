// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/resmerge/resmerge/internal/cueutil"
	"github.com/resmerge/resmerge/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "resmerge"
	// ConfigFileName is the project config file looked up in the project root.
	ConfigFileName = "resmerge.config.cue"
	// EnvPrefix prefixes environment overrides, e.g. RESMERGE_STATE_DIR.
	EnvPrefix = "RESMERGE"
)

//go:embed config_schema.cue
var configSchema string

// loadWithOptions performs option-driven config loading. It returns the
// effective config and the path of the file that was merged, if any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("state_dir", defaults.StateDir)
	v.SetDefault("factory.auto_generate", defaults.Factory.AutoGenerate)
	v.SetDefault("factory.out_file", defaults.Factory.OutFile)
	v.SetDefault("repository.type", string(defaults.Repository.Type))
	v.SetDefault("repository.path", defaults.Repository.Path)
	v.SetDefault("repository.format", string(defaults.Repository.Format))
	v.SetDefault("discovery.store_path", defaults.Discovery.StorePath)
	v.SetDefault("log.level", defaults.Log.Level)

	resolvedPath := ""

	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'resmerge config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		resolvedPath = opts.ConfigFilePath
	} else if opts.ProjectRoot != "" {
		candidate := filepath.Join(opts.ProjectRoot, ConfigFileName)
		if fileExists(candidate) {
			resolvedPath = candidate
		}
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	if err := expandViper(v); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("expand configuration placeholders").
			WithResource(resolvedPath).
			WithSuggestion("Make sure every {$key} placeholder names an existing key").
			WithSuggestion("Remove placeholders that refer back to themselves").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// Viper. Fields are optional, so validation is not concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.DecodeMap(configSchema, data, "#Config",
		cueutil.WithConcrete(false), cueutil.WithFilename(path))
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// expandViper resolves {$key} placeholders across every known key and writes
// the expanded values back as overrides.
func expandViper(v *viper.Viper) error {
	values := make(map[string]string)
	for _, key := range v.AllKeys() {
		values[key] = v.GetString(key)
	}

	expanded, err := expandPlaceholders(values)
	if err != nil {
		return err
	}

	for key, raw := range values {
		if hasPlaceholder(raw) {
			v.Set(key, expanded[key])
		}
	}
	return nil
}

// Write stores cfg as CUE at path. The path must be absolute and must not be a
// directory; missing parent directories are created.
func Write(cfg *Config, path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidWritePath, path)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%w: %q is a directory", ErrInvalidWritePath, path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	src, err := cueutil.Encode(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	header := "// resmerge project configuration\n\n"
	if err := os.WriteFile(path, append([]byte(header), src...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Abs resolves a configured path against the project root.
func Abs(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
