// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/resmerge/resmerge/pkg/pkgfile"
)

// newTypeCommand creates the `resmerge type` command tree.
func newTypeCommand(app *App) *cobra.Command {
	typeCmd := &cobra.Command{
		Use:   "type",
		Short: "Manage binding types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	typeCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List binding types of all packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, TitleStyle.Render("Binding types"))
			for _, t := range p.Engine().Snapshot().Types {
				fmt.Fprintf(app.stdout, "  %s %s %s\n",
					CmdStyle.Render(t.Name), stateStyle(t.State).Render(t.State), SubtitleStyle.Render("("+t.Package+")"))
				for _, param := range t.Parameters {
					flag := ""
					if param.Required {
						flag = " required"
					}
					fmt.Fprintf(app.stdout, "    %s%s\n", param.Name, flag)
				}
			}
			return nil
		},
	})

	var description string
	var required, optional []string
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Declare a binding type in the root package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := pkgfile.BindingTypeDescriptor{Name: args[0], Description: description}
			for _, name := range required {
				d.Parameters = append(d.Parameters, pkgfile.ParameterDescriptor{Name: name, Required: true})
			}
			for _, spec := range optional {
				name, def, _ := strings.Cut(spec, "=")
				d.Parameters = append(d.Parameters, pkgfile.ParameterDescriptor{Name: name, Default: def})
			}

			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := p.AddBindingType(cmd.Context(), d); err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Added binding type"), CmdStyle.Render(d.Name))
			return nil
		},
	}
	addCmd.Flags().StringVar(&description, "description", "", "type description")
	addCmd.Flags().StringSliceVar(&required, "required", nil, "required parameter names")
	addCmd.Flags().StringSliceVar(&optional, "optional", nil, "optional parameters as name or name=default")

	removeCmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a binding type declared by the root package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			return p.RemoveBindingType(cmd.Context(), args[0])
		},
	}

	typeCmd.AddCommand(addCmd, removeCmd)
	return typeCmd
}

// newBindingCommand creates the `resmerge binding` command tree.
func newBindingCommand(app *App) *cobra.Command {
	bindingCmd := &cobra.Command{
		Use:   "binding",
		Short: "Manage resource bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	bindingCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List bindings of all packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, TitleStyle.Render("Bindings"))
			for _, b := range p.Engine().Snapshot().Bindings {
				fmt.Fprintf(app.stdout, "  %s %s %s %s %s\n",
					SubtitleStyle.Render(b.UUID), CmdStyle.Render(b.Query), b.Type,
					stateStyle(b.State).Render(b.State), SubtitleStyle.Render("("+b.Package+")"))
				for _, k := range slices.Sorted(maps.Keys(b.Parameters)) {
					fmt.Fprintf(app.stdout, "    %s=%s\n", k, b.Parameters[k])
				}
			}
			if app.verbose {
				app.renderDiagnostics(p.Diagnostics())
			}
			return nil
		},
	})

	var params map[string]string
	var id string
	addCmd := &cobra.Command{
		Use:   "add <query> <type>",
		Short: "Bind a resource query to a binding type in the root package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			b, err := p.AddBinding(cmd.Context(), pkgfile.BindingDescriptor{UUID: id, Query: args[0], Type: args[1], Parameters: params})
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s %s\n", SuccessStyle.Render("Added binding"), b.UUID, stateStyle(b.State.String()).Render(b.State.String()))
			return nil
		},
	}
	addCmd.Flags().StringToStringVarP(&params, "param", "p", nil, "binding parameters as key=value")
	addCmd.Flags().StringVar(&id, "uuid", "", "binding UUID (default is a new random UUID)")

	removeCmd := &cobra.Command{
		Use:   "remove <uuid>",
		Short: "Remove a binding declared by the root package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid binding UUID %q: %w", args[0], err)
			}
			p, err := app.openProject(cmd.Context())
			if err != nil {
				return err
			}
			return p.RemoveBinding(cmd.Context(), id)
		},
	}

	bindingCmd.AddCommand(addCmd, removeCmd)
	return bindingCmd
}
