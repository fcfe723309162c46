// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/resmerge/resmerge/internal/project"
	"github.com/resmerge/resmerge/internal/watch"
)

// newBuildCommand creates the `resmerge build` command.
func newBuildCommand(app *App) *cobra.Command {
	var force, watchMode bool
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Materialize the merged repository",
		Long: `Resolve every resource path contributed by the enabled packages and write
the merged repository. The build is skipped when the repository is already
up to date, unless --force is given.

With --watch the command keeps running and rebuilds whenever a package
descriptor, the configuration or the install records change. A failed
rebuild is reported and the watch continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			err = runBuild(cmd.Context(), app, p, force)
			if !watchMode {
				return err
			}
			if err != nil {
				renderError(app.stderr, err, app.verbose)
			}
			return watchBuild(cmd.Context(), app, p)
		},
	}
	buildCmd.Flags().BoolVarP(&force, "force", "f", false, "rebuild even when the repository is up to date")
	buildCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "rebuild when package descriptors change")
	return buildCmd
}

func runBuild(ctx context.Context, app *App, p *project.Project, force bool) error {
	res, err := p.Build(ctx, force)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintf(app.stdout, "%s %s\n", SubtitleStyle.Render("Repository is up to date"),
			SubtitleStyle.Render(fmt.Sprintf("(%d paths)", res.View.Len())))
		return nil
	}
	fmt.Fprintf(app.stdout, "%s %d paths\n", SuccessStyle.Render("Built repository:"), res.View.Len())
	return nil
}

// watchBuild blocks until ctx is cancelled. Every rebuild reopens the project
// so descriptor edits are picked up.
func watchBuild(ctx context.Context, app *App, p *project.Project) error {
	w, err := watch.New(watch.Options{
		Root:     p.Root(),
		Patterns: p.Inputs(),
		Logger:   p.Logger(),
		OnChange: func(ctx context.Context, changed []string) error {
			fmt.Fprintf(app.stdout, "%s Detected %d change(s): %s\n", CmdStyle.Render("→"), len(changed), strings.Join(changed, ", "))
			next, err := app.openProject(ctx)
			if err != nil {
				renderError(app.stderr, err, app.verbose)
				return nil
			}
			if err := runBuild(ctx, app, next, false); err != nil {
				renderError(app.stderr, err, app.verbose)
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	fmt.Fprintf(app.stdout, "%s Watching %s for changes (Ctrl+C to stop)...\n", CmdStyle.Render("→"), p.Root())
	return w.Run(ctx)
}

// newConflictsCommand creates the `resmerge conflicts` command. It exits with
// status 1 when at least one conflict is unresolved.
func newConflictsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "Show resource paths without a winning package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			conflicts := p.Conflicts()
			if len(conflicts) == 0 {
				fmt.Fprintln(app.stdout, SuccessStyle.Render("No conflicts"))
				return nil
			}
			for i, c := range conflicts {
				if i > 0 {
					fmt.Fprintln(app.stdout)
				}
				fmt.Fprintln(app.stdout, WarningStyle.Render(c.Error()))
			}
			return &ExitError{Code: 1}
		},
	}
}
