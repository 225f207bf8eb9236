// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newInspectCommands(app *App) []*cobra.Command {
	whatdepends := &cobra.Command{
		Use:   "whatdepends <package>",
		Short: "List installed packages that require a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := app.Pacman.LocalInfo(cmd.Context(), args[0])
			if err != nil {
				return passthroughError(err)
			}
			deps := info.RequiredBy()
			if len(deps) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "nothing requires %s\n", args[0])
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(deps, "\n"))
			return nil
		},
	}

	homepage := &cobra.Command{
		Use:   "homepage <package>",
		Short: "Print an installed package's upstream URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := app.Pacman.LocalInfo(cmd.Context(), args[0])
			if err != nil {
				return passthroughError(err)
			}
			url := info.URL()
			if url == "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s has no homepage\n", args[0])
				return silentExit(1)
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Count installed, explicit, foreign and orphaned packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.Pacman.Stats(cmd.Context())
			if err != nil {
				return passthroughError(err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, TitleStyle.Render("Package statistics"))
			fmt.Fprintf(w, "  installed  %d\n", s.Installed)
			fmt.Fprintf(w, "  explicit   %d\n", s.Explicit)
			fmt.Fprintf(w, "  foreign    %d\n", s.Foreign)
			fmt.Fprintf(w, "  orphans    %d\n", s.Orphans)
			return nil
		},
	}

	return []*cobra.Command{whatdepends, homepage, stats}
}
