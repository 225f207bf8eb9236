// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/archpkg/archpkg/internal/config"
	"github.com/archpkg/archpkg/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `archpkg config` command tree. Its
// subcommands load configuration themselves so that a broken file can
// still be located and regenerated.
func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	opts := func() config.LoadOptions {
		return config.LoadOptions{ConfigFilePath: flags.cfgFile}
	}

	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage archpkg configuration",
		Long: `Manage archpkg configuration.

Configuration is stored in $XDG_CONFIG_HOME/archpkg/config.cue (usually
~/.config/archpkg/config.cue). Any key can be overridden from the
environment, for example ARCHPKG_AUR_TIMEOUT=1m.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			setupLogging(app.stderr, flags.verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.deps.Config.Load(cmd.Context(), opts())
			if err != nil {
				if rendered, rerr := issue.Get(issue.ConfigLoadFailedId).Render("auto"); rerr == nil {
					fmt.Fprint(cmd.ErrOrStderr(), rendered)
				}
				return err
			}
			path, _ := config.FilePath(opts())
			showConfig(cmd.OutOrStdout(), cfg, path)
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, created, err := config.CreateDefaultConfig(opts(), force)
			if err != nil {
				return issue.WrapWithOperation(err, "create configuration file")
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists, use --force to overwrite\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration and hold-list file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.FilePath(opts())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", path)

			cfg, err := app.deps.Config.Load(cmd.Context(), opts())
			if err != nil {
				cfg = config.DefaultConfig()
			}
			if holds, err := cfg.HoldListPath(opts()); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Hold list: %s\n", holds)
			}
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.deps.Config.Load(cmd.Context(), opts())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, path string) {
	key := CmdStyle.Render
	val := SuccessStyle.Render

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if fileExistsCheck(path) {
		fmt.Fprintf(w, "%s: %s\n", key("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", key("Config file"), SubtitleStyle.Render("(using defaults)"))
	}

	fmt.Fprintf(w, "\n%s:\n", key("pacman"))
	fmt.Fprintf(w, "  binary: %s\n", val(cfg.Pacman.Binary))
	fmt.Fprintf(w, "  escalation: %s\n", val(cfg.Pacman.Escalation))

	fmt.Fprintf(w, "\n%s:\n", key("aur"))
	fmt.Fprintf(w, "  rpc_url: %s\n", val(cfg.AUR.RPCURL))
	fmt.Fprintf(w, "  clone_url: %s\n", val(cfg.AUR.CloneURL))
	fmt.Fprintf(w, "  timeout: %s\n", val(cfg.AUR.Timeout.String()))
	fmt.Fprintf(w, "  retry: %s attempts, %s backoff\n",
		val(fmt.Sprint(cfg.AUR.Retry.Attempts)), val(cfg.AUR.Retry.Backoff.String()))

	fmt.Fprintf(w, "\n%s:\n", key("build"))
	fmt.Fprintf(w, "  command: %s\n", val(cfg.Build.Command+" "+strings.Join(cfg.Build.Flags, " ")))
	root := cfg.Build.WorkspaceRoot
	if root == "" {
		root = os.TempDir()
	}
	fmt.Fprintf(w, "  workspace_root: %s\n", val(root))

	fmt.Fprintf(w, "\n%s:\n", key("ui"))
	fmt.Fprintf(w, "  color_scheme: %s\n", val(string(cfg.UI.ColorScheme)))
	fmt.Fprintf(w, "  verbose: %s\n", val(fmt.Sprint(cfg.UI.Verbose)))
}

// fileExistsCheck checks if a file exists and is not a directory.
func fileExistsCheck(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
