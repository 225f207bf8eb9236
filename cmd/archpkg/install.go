// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/archpkg/archpkg/internal/resolver"

	"github.com/spf13/cobra"
)

func newInstallCommand(app *App, use string, aliases []string, short string, mode resolver.Mode) *cobra.Command {
	var files bool

	cmd := &cobra.Command{
		Use:     use + " <package>...",
		Aliases: aliases,
		Short:   short,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var batch *resolver.BatchResult
			if files {
				batch = app.Resolver.InstallFiles(cmd.Context(), args)
			} else {
				batch = app.Resolver.Install(cmd.Context(), mode, args)
			}
			return app.reportBatch(cmd, batch)
		},
	}

	if mode == resolver.ModeAuto {
		cmd.Use = use + " [-f] <package|file>..."
		cmd.Long = `Install each package from the official repositories, falling back to
building it from the AUR when pacman does not know it. Packages are processed
in order; a failure only stops the batch when it is unsafe to continue.

With -f the arguments are pre-built package archives installed with pacman -U.`
		cmd.Flags().BoolVarP(&files, "file", "f", false, "install local package files")
	}
	return cmd
}
