// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/resmerge/resmerge/internal/config"
	"github.com/resmerge/resmerge/internal/discovery"
	"github.com/resmerge/resmerge/internal/project"
)

type (
	// App wires CLI dependencies. Command handlers receive it and open the
	// project through it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer

		// Flags shared by all commands.
		dir        string
		configPath string
		verbose    bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
}

// openProject opens the project selected by --dir and --config.
func (a *App) openProject(ctx context.Context) (*project.Project, error) {
	opts := project.Options{ConfigFilePath: a.configPath, Config: a.Config, LogOutput: a.stderr}
	if a.verbose {
		opts.Logger = log.NewWithOptions(a.stderr, log.Options{Prefix: config.AppName, Level: log.DebugLevel})
	}
	return project.Open(ctx, a.dir, opts)
}

// renderDiagnostics prints engine diagnostics to stderr.
func (a *App) renderDiagnostics(diags []discovery.Diagnostic) {
	for _, diag := range diags {
		prefix := WarningStyle.Render("warning")
		if diag.Severity == discovery.SeverityError {
			prefix = ErrorStyle.Render("error")
		}
		_, _ = fmt.Fprintf(a.stderr, "%s: %s (%s)\n", prefix, diag.Message, diag.Package)
	}
}
