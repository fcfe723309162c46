// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/resmerge/resmerge/internal/registry"
)

// newPackageCommand creates the `resmerge package` command tree.
func newPackageCommand(app *App) *cobra.Command {
	pkgCmd := &cobra.Command{
		Use:   "package",
		Short: "Manage installed packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var name, installer string
	installCmd := &cobra.Command{
		Use:   "install <path>",
		Short: "Install the package at path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			pkg, err := p.InstallPackage(cmd.Context(), args[0], name, installer)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s (%s)\n", SuccessStyle.Render("Installed"), CmdStyle.Render(pkg.Name), pkg.InstallPath)
			return nil
		},
	}
	installCmd.Flags().StringVar(&name, "name", "", "package name (default is the name in the package descriptor)")
	installCmd.Flags().StringVar(&installer, "installer", "", "installer recorded for the package (default \"user\")")

	removeCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an installed package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			if err := p.RemovePackage(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Removed"), CmdStyle.Render(args[0]))
			return nil
		},
	}

	var stateName, listInstaller string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filters []registry.Filter
			if stateName != "" {
				state, err := registry.ParseState(stateName)
				if err != nil {
					return err
				}
				filters = append(filters, registry.WithState(state))
			}
			if listInstaller != "" {
				filters = append(filters, func(p *registry.Package) bool {
					return !p.IsRoot() && p.Installer() == listInstaller
				})
			}

			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			packages := p.Registry().All(filters...)
			for _, pkg := range p.Registry().Duplicates() {
				if matchesAll(pkg, filters) {
					packages = append(packages, pkg)
				}
			}
			listPackages(app, packages)
			return nil
		},
	}
	listCmd.Flags().StringVar(&stateName, "state", "", "only list packages in this state (enabled, not-found, not-loadable, duplicate)")
	listCmd.Flags().StringVar(&listInstaller, "installer", "", "only list packages installed by this installer")

	pkgCmd.AddCommand(installCmd, removeCmd, listCmd)
	return pkgCmd
}

func listPackages(app *App, packages []*registry.Package) {
	fmt.Fprintln(app.stdout, TitleStyle.Render("Packages"))
	for _, pkg := range packages {
		installer := ""
		if !pkg.IsRoot() {
			installer = " " + SubtitleStyle.Render("["+pkg.Installer()+"]")
		}
		fmt.Fprintf(app.stdout, "  %s %s %s%s\n",
			CmdStyle.Render(pkg.Name),
			stateStyle(pkg.State.String()).Render(pkg.State.String()),
			pkg.InstallPath,
			installer)
		if pkg.LoadErr != nil && app.verbose {
			fmt.Fprintf(app.stdout, "    %s\n", SubtitleStyle.Render(pkg.LoadErr.Error()))
		}
	}
}

func matchesAll(p *registry.Package, filters []registry.Filter) bool {
	for _, f := range filters {
		if !f(p) {
			return false
		}
	}
	return true
}
