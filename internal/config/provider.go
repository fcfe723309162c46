// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"fmt"
)

type (
	// LoadOptions says where a project's configuration lives.
	LoadOptions struct {
		// ProjectRoot is the directory holding resmerge.config.cue. Without
		// that file the defaults and RESMERGE_* variables still apply.
		ProjectRoot string
		// ConfigFilePath names the file to merge instead of the one in
		// ProjectRoot. It must exist.
		ConfigFilePath string
	}

	// Provider produces the configuration a project is opened with. The CLI
	// and project.Open take one so callers can substitute a fixed Config.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Config, error)
	}

	// ProviderFunc adapts a plain function to Provider.
	ProviderFunc func(ctx context.Context, opts LoadOptions) (*Config, error)

	// cueProvider merges defaults, resmerge.config.cue and the environment.
	cueProvider struct{}
)

// NewProvider returns the Provider backed by resmerge.config.cue.
func NewProvider() Provider {
	return cueProvider{}
}

// Static returns a Provider that hands out cfg whatever LoadOptions say.
func Static(cfg *Config) Provider {
	return ProviderFunc(func(ctx context.Context, _ LoadOptions) (*Config, error) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load config canceled: %w", err)
		}
		return cfg, nil
	})
}

func (f ProviderFunc) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	return f(ctx, opts)
}

func (cueProvider) Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	cfg, _, err := loadWithOptions(ctx, opts)
	return cfg, err
}
