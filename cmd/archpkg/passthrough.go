// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/archpkg/archpkg/internal/issue"
	"github.com/archpkg/archpkg/internal/pacman"

	"github.com/spf13/cobra"
)

// passthroughError forwards pacman's exit status. pacman already printed its
// own diagnostics, so only a missing binary gets a message of ours.
func passthroughError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pacman.ErrManagerMissing) {
		return issue.NewErrorContext().
			WithOperation("run pacman").
			WithSuggestion("Set pacman.binary in the config file if pacman lives elsewhere").
			Wrap(err).
			BuildError()
	}
	if errors.Is(err, pacman.ErrEscalationMissing) {
		return issue.NewErrorContext().
			WithOperation("run pacman with privileges").
			WithSuggestion("Install sudo, or set pacman.escalation in the config file").
			Wrap(err).
			BuildError()
	}
	if errors.Is(err, context.Canceled) {
		return &ExitError{Code: 130, Err: err}
	}
	if code := pacman.ExitCode(err); code > 0 {
		return silentExit(code)
	}
	return err
}

// simpleVerb declares a verb that is a single pacman invocation.
type simpleVerb struct {
	use     string
	aliases []string
	short   string
	args    cobra.PositionalArgs
	run     func(ctx context.Context, c *pacman.Client, args []string) error
}

func newPassthroughCommands(app *App) []*cobra.Command {
	verbs := []simpleVerb{
		{
			use: "remove <package>...", aliases: []string{"delete"}, short: "Remove packages",
			args: cobra.MinimumNArgs(1),
			run: func(ctx context.Context, c *pacman.Client, args []string) error {
				return c.Remove(ctx, args...)
			},
		},
		{
			use: "update", short: "Refresh the sync databases",
			args: cobra.NoArgs,
			run: func(ctx context.Context, c *pacman.Client, _ []string) error {
				return c.Refresh(ctx)
			},
		},
		{
			use: "info <package>", short: "Show package details, synced or installed",
			args: cobra.ExactArgs(1),
			run: func(ctx context.Context, c *pacman.Client, args []string) error {
				return c.Info(ctx, args[0])
			},
		},
		{
			use: "query [package]...", short: "List installed packages",
			args: cobra.ArbitraryArgs,
			run: func(ctx context.Context, c *pacman.Client, args []string) error {
				return c.Query(ctx, args...)
			},
		},
		{
			use: "version", short: "Show the pacman version",
			args: cobra.NoArgs,
			run: func(ctx context.Context, c *pacman.Client, _ []string) error {
				return c.Version(ctx)
			},
		},
		{
			use: "check", short: "Check the local package database",
			args: cobra.NoArgs,
			run: func(ctx context.Context, c *pacman.Client, _ []string) error {
				return c.CheckDatabase(ctx)
			},
		},
		{
			use: "which <path>", aliases: []string{"owns"}, short: "Show which package owns a file",
			args: cobra.ExactArgs(1),
			run: func(ctx context.Context, c *pacman.Client, args []string) error {
				return c.Owns(ctx, args[0])
			},
		},
		{
			use: "files <package>", short: "List the files a package installed",
			args: cobra.ExactArgs(1),
			run: func(ctx context.Context, c *pacman.Client, args []string) error {
				return c.Files(ctx, args[0])
			},
		},
		{
			use: "reinstall <package>...", short: "Reinstall packages from the official repositories",
			args: cobra.MinimumNArgs(1),
			run: func(ctx context.Context, c *pacman.Client, args []string) error {
				return c.Reinstall(ctx, args...)
			},
		},
		{
			use: "changelog <package>", short: "Show a package's changelog",
			args: cobra.ExactArgs(1),
			run: func(ctx context.Context, c *pacman.Client, args []string) error {
				return c.Changelog(ctx, args[0])
			},
		},
		{
			use: "verify [package]...", short: "Verify installed files against the package database",
			args: cobra.ArbitraryArgs,
			run: func(ctx context.Context, c *pacman.Client, args []string) error {
				return c.Verify(ctx, args...)
			},
		},
	}

	cmds := make([]*cobra.Command, 0, len(verbs)+3)
	for _, v := range verbs {
		run := v.run
		cmds = append(cmds, &cobra.Command{
			Use:     v.use,
			Aliases: v.aliases,
			Short:   v.short,
			Args:    v.args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return passthroughError(run(cmd.Context(), app.Pacman, args))
			},
		})
	}

	return append(cmds, newUpgradeCommand(app), newOrphansCommand(app), newAutoremoveCommand(app))
}

func newUpgradeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade the system, skipping held packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			held, err := app.Holds.Names()
			if err != nil {
				return issue.WrapWithContext(err, "read hold list", app.Holds.Path())
			}
			if len(held) > 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), SubtitleStyle.Render("holding back: "+strings.Join(held, ", ")))
			}
			return passthroughError(app.Pacman.Upgrade(cmd.Context(), held))
		},
	}
}

func newOrphansCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "List packages installed as dependencies that nothing requires",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := app.Pacman.Orphans(cmd.Context())
			if err != nil {
				return passthroughError(err)
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newAutoremoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "autoremove",
		Short: "Remove orphaned packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := app.Pacman.Autoremove(cmd.Context())
			if err != nil {
				return passthroughError(err)
			}
			if len(removed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no orphans to remove")
			}
			return nil
		},
	}
}
