// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/resmerge/resmerge/internal/config"
)

// newConfigCommand creates the `resmerge config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect resmerge configuration",
		Long: `Inspect resmerge configuration.

Configuration is read from resmerge.config.cue in the project root.
Every key can be overridden with a RESMERGE_ environment variable,
e.g. RESMERGE_REPOSITORY_FORMAT=toml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(app.dir)
			if err != nil {
				return err
			}
			cfg, err := app.Config.Load(cmd.Context(), config.LoadOptions{ProjectRoot: root, ConfigFilePath: app.configPath})
			if err != nil {
				return err
			}
			showConfig(app, root, cfg)
			return nil
		},
	})

	return cfgCmd
}

func showConfig(app *App, root string, cfg *config.Config) {
	fmt.Fprintln(app.stdout, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(app.stdout)

	source := app.configPath
	if source == "" {
		source = filepath.Join(root, config.ConfigFileName)
	}
	fmt.Fprintf(app.stdout, "%s: %s\n\n", CmdStyle.Render("Config file"), SubtitleStyle.Render(source))

	rows := []struct{ key, value string }{
		{"state_dir", cfg.StateDir},
		{"factory.auto_generate", fmt.Sprint(cfg.Factory.AutoGenerate)},
		{"factory.out_file", cfg.Factory.OutFile},
		{"repository.type", string(cfg.Repository.Type)},
		{"repository.path", cfg.Repository.Path},
		{"repository.format", string(cfg.Repository.Format)},
		{"discovery.store_path", cfg.Discovery.StorePath},
		{"log.level", cfg.Log.Level},
	}
	for _, row := range rows {
		fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render(row.key), SuccessStyle.Render(row.value))
	}
}
