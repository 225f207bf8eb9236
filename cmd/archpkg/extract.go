// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/archpkg/archpkg/internal/aurbuild"
	"github.com/archpkg/archpkg/internal/issue"
	"github.com/archpkg/archpkg/internal/pkgarchive"

	"github.com/spf13/cobra"
)

// staleWorkspaceAge is how old a leftover build workspace must be before
// clean removes it.
const staleWorkspaceAge = 24 * time.Hour

func newExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <archive> [dir]",
		Short: "Unpack a package archive (.pkg.tar.zst, .xz, .gz)",
		Long: `Unpack a pacman package archive into dir, by default a directory named
after the archive in the current directory. Nothing is installed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := archiveDirName(args[0])
			if len(args) == 2 {
				dest = args[1]
			}
			files, err := pkgarchive.Extract(cmd.Context(), args[0], dest)
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("extract archive").
					WithResource(args[0]).
					Wrap(err).
					BuildError()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s extracted %d entries to %s\n", SuccessStyle.Render("✓"), len(files), dest)
			return nil
		},
	}
}

// archiveDirName strips the package suffixes: htop-3.3.0-1-x86_64.pkg.tar.zst
// becomes htop-3.3.0-1-x86_64.
func archiveDirName(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, ".pkg.tar"); i > 0 {
		return base[:i]
	}
	if i := strings.Index(base, ".tar"); i > 0 {
		return base[:i]
	}
	return base + ".d"
}

func newCleanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Clean the package cache and leftover build workspaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := aurbuild.SweepStale(app.Config.Build.WorkspaceRoot, staleWorkspaceAge)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("Warning: ")+err.Error())
			}
			if len(removed) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale build workspaces\n", len(removed))
			}
			return passthroughError(app.Pacman.CleanCache(cmd.Context()))
		},
	}
}
