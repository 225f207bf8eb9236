// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/archpkg/archpkg/internal/issue"
	"github.com/archpkg/archpkg/internal/pacman"
	"github.com/archpkg/archpkg/internal/resolver"

	"github.com/spf13/cobra"
)

// reportBatch prints one line per package and turns a failed batch into
// exit status 1. The first failure is explained with suggestions; in
// verbose mode its troubleshooting page is rendered as well.
func (a *App) reportBatch(cmd *cobra.Command, batch *resolver.BatchResult) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	for _, r := range batch.Results {
		switch {
		case !r.Outcome.Failed():
			line := SuccessStyle.Render("✓") + " " + CmdStyle.Render(r.Name) + " " + r.Outcome.String()
			if r.Outcome == resolver.Held {
				line = WarningStyle.Render("-") + " " + CmdStyle.Render(r.Name) + " held, skipped"
			}
			if r.Version != "" {
				line += " " + SubtitleStyle.Render(r.Version)
			}
			fmt.Fprintln(out, line)
		case r.Outcome == resolver.Skipped:
			fmt.Fprintln(errOut, WarningStyle.Render("-")+" "+CmdStyle.Render(r.Name)+" skipped")
		default:
			fmt.Fprintln(errOut, ErrorStyle.Render("✗")+" "+CmdStyle.Render(r.Name)+" "+r.Outcome.String())
		}
	}

	if !batch.Failed() {
		return nil
	}

	failed, _ := batch.FirstFailure()
	id, ae := explain(failed)
	fmt.Fprintln(errOut)
	fmt.Fprintln(errOut, ErrorStyle.Render("Error: ")+ae.Format(a.Verbose))
	if a.Verbose {
		a.renderIssue(cmd, id)
	}
	return silentExit(1)
}

// explain maps a failed result to its catalog entry and an actionable error.
func explain(r resolver.PackageResult) (issue.Id, *issue.ActionableError) {
	ec := issue.NewErrorContext().WithResource(r.Name).Wrap(r.Err)

	switch {
	case errors.Is(r.Err, pacman.ErrManagerMissing):
		ec.WithOperation("run pacman").
			WithSuggestion("Set pacman.binary in the config file if pacman lives elsewhere")
		return issue.PackageManagerMissingId, ec.Build()
	case r.Kind == resolver.KindPrivilege:
		ec.WithOperation("build AUR package").
			WithSuggestion("Run archpkg as a regular user, it escalates only for pacman")
		return issue.AurRootBuildId, ec.Build()
	case r.Kind == resolver.KindOfficialOnlyMiss:
		ec.WithOperation("install from the official repositories").
			WithSuggestion("Use 'archpkg install' to allow the AUR fallback")
		return issue.OfficialOnlyMissId, ec.Build()
	case r.Kind == resolver.KindNotFoundAur:
		ec.WithOperation("find package").
			WithSuggestions("Check the spelling", "Run 'archpkg search -a "+r.Name+"'")
		return issue.PackageNotFoundId, ec.Build()
	case r.Kind == resolver.KindClone:
		ec.WithOperation("clone recipe").
			WithSuggestion("Check your connection to the AUR and try again")
		return issue.RecipeCloneFailedId, ec.Build()
	case r.Kind == resolver.KindBuild:
		ec.WithOperation("build package").
			WithSuggestion("Re-run with --verbose and read the makepkg output")
		return issue.AurBuildFailedId, ec.Build()
	case r.Kind == resolver.KindTransport:
		ec.WithOperation("reach package source").
			WithSuggestion("Check your network connection, the failure was retried")
		return issue.AurUnreachableId, ec.Build()
	case r.Kind == resolver.KindFileMissing:
		ec.WithOperation("install package file").
			WithSuggestion("Check the path, it must be an existing regular file")
		return issue.LocalFileMissingId, ec.Build()
	default:
		ec.WithOperation("install package")
		return 0, ec.Build()
	}
}

// renderIssue prints a catalog page styled for the configured color scheme.
func (a *App) renderIssue(cmd *cobra.Command, id issue.Id) {
	page := issue.Get(id)
	if page == nil {
		return
	}
	style := "auto"
	if a.Config != nil {
		style = a.Config.UI.ColorScheme.GlamourStyle()
	}
	rendered, err := page.Render(style)
	if err != nil {
		return
	}
	fmt.Fprint(cmd.ErrOrStderr(), rendered)
}
