// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"slices"

	"github.com/archpkg/archpkg/internal/holdlist"
	"github.com/archpkg/archpkg/internal/issue"

	"github.com/spf13/cobra"
)

func newHoldCommands(app *App) []*cobra.Command {
	lock := &cobra.Command{
		Use:   "lock [package]...",
		Short: "Hold packages back from upgrades and installs",
		Long: `Add packages to the hold list. Held packages are passed to pacman as
--ignore on upgrade and are skipped by install. Without arguments the current
hold list is printed.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return printHolds(cmd, app.Holds)
			}
			added, err := app.Holds.Add(args...)
			if err != nil {
				return holdError(err, "lock packages", app.Holds)
			}
			for _, n := range args {
				state := "already held"
				if slices.Contains(added, n) {
					state = "held"
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓")+" "+CmdStyle.Render(n)+" "+state)
			}
			return nil
		},
	}

	unlock := &cobra.Command{
		Use:   "unlock <package>...",
		Short: "Release held packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := app.Holds.Remove(args...)
			if err != nil {
				return holdError(err, "unlock packages", app.Holds)
			}
			for _, n := range args {
				state := "was not held"
				if slices.Contains(removed, n) {
					state = "released"
				}
				fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("✓")+" "+CmdStyle.Render(n)+" "+state)
			}
			return nil
		},
	}

	return []*cobra.Command{lock, unlock}
}

func printHolds(cmd *cobra.Command, l *holdlist.List) error {
	names, err := l.Names()
	if err != nil {
		return holdError(err, "read hold list", l)
	}
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no packages are held")
		return nil
	}
	for _, n := range names {
		fmt.Fprintln(cmd.OutOrStdout(), n)
	}
	return nil
}

func holdError(err error, op string, l *holdlist.List) error {
	return issue.NewErrorContext().
		WithOperation(op).
		WithResource(l.Path()).
		WithSuggestion("Set hold_list.path in the config file to use another location").
		Wrap(err).
		BuildError()
}
