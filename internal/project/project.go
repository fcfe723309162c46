// SPDX-License-Identifier: MPL-2.0

package project

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/resmerge/resmerge/internal/config"
	"github.com/resmerge/resmerge/internal/discovery"
	"github.com/resmerge/resmerge/internal/factory"
	"github.com/resmerge/resmerge/internal/registry"
	"github.com/resmerge/resmerge/internal/repository"
	"github.com/resmerge/resmerge/internal/storage"
	"github.com/resmerge/resmerge/pkg/pkgfile"
)

type (
	// Options customizes Open. Zero values select the file-backed defaults.
	Options struct {
		// ConfigFilePath loads configuration from this file instead of the
		// project root.
		ConfigFilePath string
		// Config supplies the configuration. Defaults to config.NewProvider().
		Config config.Provider
		// Logger receives all component output. Defaults to a logger writing
		// to LogOutput at the configured level.
		Logger *log.Logger
		// LogOutput is the default logger's destination. Defaults to stderr.
		LogOutput io.Writer

		PackageStorage storage.PackageFileStorage
		InstallStorage storage.InstallFileStorage
		Materializer   repository.Materializer
		Generator      factory.Generator
	}

	// Project is the state of one project directory.
	Project struct {
		root   string
		cfg    *config.Config
		logger *log.Logger

		registry    *registry.Registry
		engine      *discovery.Engine
		coordinator *repository.Coordinator
		generator   factory.Generator

		storePath string
		// loading suppresses snapshot writes while packages are fed to the
		// engine one by one.
		loading bool
		// force disables the up-to-date check for the running build.
		force bool
	}
)

// Open loads the project rooted at root: configuration, installed packages,
// then the binding types and bindings of every enabled package. Package load
// problems are recorded as package or binding states and do not fail Open.
func Open(ctx context.Context, root string, opts Options) (*Project, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	provider := opts.Config
	if provider == nil {
		provider = config.NewProvider()
	}
	cfg, err := provider.Load(ctx, config.LoadOptions{ProjectRoot: absRoot, ConfigFilePath: opts.ConfigFilePath})
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		out := opts.LogOutput
		if out == nil {
			out = os.Stderr
		}
		logger = log.NewWithOptions(out, log.Options{Prefix: config.AppName})
		if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
			logger.SetLevel(level)
		}
	}

	fileStorage := storage.NewFileStorage()
	pkgStorage := opts.PackageStorage
	if pkgStorage == nil {
		pkgStorage = fileStorage
	}
	installStorage := opts.InstallStorage
	if installStorage == nil {
		installStorage = fileStorage
	}

	p := &Project{
		root:      absRoot,
		cfg:       cfg,
		logger:    logger,
		storePath: config.Abs(absRoot, cfg.Discovery.StorePath),
	}

	p.registry = registry.New(registry.Options{
		RootDir:        absRoot,
		InstallFile:    filepath.Join(config.Abs(absRoot, cfg.StateDir), pkgfile.InstallFileName),
		PackageStorage: pkgStorage,
		InstallStorage: installStorage,
		Logger:         logger.WithPrefix("registry"),
	})

	p.engine = discovery.New(
		discovery.WithLogger(logger.WithPrefix("discovery")),
		discovery.WithHooks(discovery.Hooks{After: p.persistSnapshot}),
	)

	var buildOpts []repository.Option
	materializer := opts.Materializer
	if materializer == nil {
		fm := repository.NewFileMaterializer(config.Abs(absRoot, cfg.Repository.Path), cfg.Repository.Format, logger.WithPrefix("repository"))
		upToDate := repository.SkipIfUnchanged(fm)
		materializer = fm
		buildOpts = append(buildOpts, repository.WithListener(func(e *repository.BuildEvent) {
			if !p.force {
				upToDate(e)
			}
		}))
	}
	p.coordinator = repository.NewCoordinator(p.registry, materializer,
		append(buildOpts, repository.WithLogger(logger.WithPrefix("build")))...)

	p.generator = opts.Generator
	if p.generator == nil && cfg.Factory.AutoGenerate {
		p.generator = factory.NewCUEGenerator(config.Abs(absRoot, cfg.Factory.OutFile), logger.WithPrefix("factory"))
	}

	if err := p.registry.LoadAll(); err != nil {
		return nil, err
	}
	p.loadEngine()
	p.registry.OnChange(p.sync)

	return p, nil
}

// Root returns the absolute project directory.
func (p *Project) Root() string { return p.root }

// Config returns the effective configuration.
func (p *Project) Config() *config.Config { return p.cfg }

// Registry returns the package registry.
func (p *Project) Registry() *registry.Registry { return p.registry }

// Engine returns the binding engine.
func (p *Project) Engine() *discovery.Engine { return p.engine }

// Logger returns the project logger.
func (p *Project) Logger() *log.Logger { return p.logger }

// Inputs returns slash-separated glob patterns, relative to the project root,
// matching every file whose change can alter the build: package descriptors,
// the configuration file and the install records.
func (p *Project) Inputs() []string {
	patterns := []string{"**/" + pkgfile.FileName, config.ConfigFileName}
	stateDir := config.Abs(p.root, p.cfg.StateDir)
	if rel, err := filepath.Rel(p.root, stateDir); err == nil && !strings.HasPrefix(rel, "..") {
		patterns = append(patterns, path.Join(filepath.ToSlash(rel), pkgfile.InstallFileName))
	}
	return patterns
}
