// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/archpkg/archpkg/internal/aurbuild"
	"github.com/archpkg/archpkg/internal/config"
	"github.com/archpkg/archpkg/internal/issue"
	"github.com/archpkg/archpkg/internal/resolver"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags holds the persistent flags shared by every verb.
type rootFlags struct {
	verbose bool
	cfgFile string
}

// NewRootCommand builds the full command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "archpkg",
		Short: "One front end for the official repositories and the AUR",
		Long: TitleStyle.Render("archpkg") + SubtitleStyle.Render(" - one front end for pacman and the AUR") + `

Packages are installed from the official repositories when they exist there
and built from the AUR otherwise. AUR builds never run as root.

` + SubtitleStyle.Render("Examples:") + `
  archpkg install htop yay     Official first, AUR fallback
  archpkg installaur paru      AUR only
  archpkg search -a browser    Search the AUR
  archpkg lock linux           Hold a package back from upgrades`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.load(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.cfgFile}, flags.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			// Unknown verbs are not an error: print a hint and exit 0.
			fmt.Fprintf(cmd.OutOrStdout(), "%s unknown command %s, run %s for the list of commands\n",
				WarningStyle.Render("!"), CmdStyle.Render(args[0]), CmdStyle.Render("archpkg help"))
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	root.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/archpkg/config.cue)")

	root.SetIn(app.stdin)
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.AddCommand(
		newInstallCommand(app, "install", []string{"add"}, "Install packages, falling back to the AUR", resolver.ModeAuto),
		newInstallCommand(app, "installaur", []string{"addaur"}, "Build and install packages from the AUR", resolver.ModeAurOnly),
		newInstallCommand(app, "installarch", []string{"addarch"}, "Install packages from the official repositories only", resolver.ModeOfficialOnly),
		newSearchCommand(app),
	)
	root.AddCommand(newHoldCommands(app)...)
	root.AddCommand(newPassthroughCommands(app)...)
	root.AddCommand(newInspectCommands(app)...)
	root.AddCommand(
		newExtractCommand(),
		newCleanCommand(app),
		newConfigCommand(app, flags),
	)

	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs archpkg with the process's arguments and exits. Build
// workspaces still open when the command tree returns, for instance after an
// interrupt, are removed before exit.
func Execute() {
	code := Run(context.Background(), Dependencies{}, os.Args[1:])
	if err := aurbuild.ReleaseAll(); err != nil {
		slog.Warn("leftover build workspaces", "error", err)
	}
	os.Exit(code)
}

// Run executes the command tree and returns the process exit code.
func Run(ctx context.Context, deps Dependencies, args []string) int {
	app := NewApp(deps)
	root := NewRootCommand(app)
	root.SetArgs(args)

	err := fang.Execute(
		ctx,
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			renderError(w, err, app.Verbose)
		}),
	)

	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

// renderError prints err unless it is an ExitError that was already reported.
func renderError(w io.Writer, err error, verbose bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
}

// formatErrorForDisplay uses ActionableError's suggestions when present.
// In verbose mode the full error chain is shown.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
