// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for resmerge.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/resmerge/resmerge/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "resmerge",
		Short: "Merge resources contributed by installed packages",
		Long: TitleStyle.Render("resmerge") + SubtitleStyle.Render(" - merge resources contributed by installed packages") + `

resmerge tracks the packages installed into a project, resolves which
package wins when several map the same resource path, and keeps resource
bindings consistent with the binding types they reference.

Packages describe themselves in a 'resmerge.cue' file using CUE.

` + SubtitleStyle.Render("Examples:") + `
  resmerge package install vendor/blog   Install the package in vendor/blog
  resmerge package list                  List installed packages
  resmerge conflicts                     Show unresolved resource conflicts
  resmerge build                         Materialize the merged repository
  resmerge config show                   Show the effective configuration`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.configPath, "config", "", "config file (default is <dir>/resmerge.config.cue)")
	rootCmd.PersistentFlags().StringVarP(&app.dir, "dir", "C", ".", "project root directory")

	rootCmd.AddCommand(newPackageCommand(app))
	rootCmd.AddCommand(newTypeCommand(app))
	rootCmd.AddCommand(newBindingCommand(app))
	rootCmd.AddCommand(newBuildCommand(app))
	rootCmd.AddCommand(newConflictsCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			renderError(w, err, app.verbose)
		}),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// renderError prints err, followed by the catalog entry of an actionable
// error in verbose mode.
func renderError(w io.Writer, err error, verbose bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	_, _ = fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))

	var ae *issue.ActionableError
	if !verbose || !errors.As(err, &ae) {
		return
	}
	if entry := ae.Issue(); entry != nil {
		if rendered, renderErr := entry.Render("dark"); renderErr == nil {
			_, _ = fmt.Fprint(w, rendered)
		}
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
