// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/archpkg/archpkg/internal/aur"
	"github.com/archpkg/archpkg/internal/issue"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by search -o.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func newSearchCommand(app *App) *cobra.Command {
	var (
		aurOnly bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "search [-a] <term>",
		Short: "Search the official repositories, or the AUR with -a",
		Long: `Search one source per invocation: the official repositories through
pacman -Ss, or the AUR RPC interface with -a. The two are never both queried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case outputText, outputJSON, outputYAML:
			default:
				return fmt.Errorf("unknown output format %q (valid: text, json, yaml)", output)
			}
			if !aurOnly {
				if output != outputText {
					return errors.New("-o applies to AUR searches, add -a")
				}
				return passthroughError(app.Pacman.Search(cmd.Context(), args[0]))
			}

			pkgs, err := app.AUR.Search(cmd.Context(), args[0])
			if errors.Is(err, aur.ErrNotFound) {
				fmt.Fprintln(cmd.ErrOrStderr(), "no packages found")
				return silentExit(1)
			}
			if err != nil {
				return issue.NewErrorContext().
					WithOperation("search the AUR").
					WithResource(args[0]).
					WithSuggestion("Check your network connection to aur.archlinux.org").
					Wrap(err).
					BuildError()
			}
			return writeSearchResults(cmd.OutOrStdout(), output, pkgs)
		},
	}

	cmd.Flags().BoolVarP(&aurOnly, "aur", "a", false, "search the AUR instead of the official repositories")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "AUR result format: text, json or yaml")
	return cmd
}

func writeSearchResults(w io.Writer, format string, pkgs []aur.Package) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pkgs)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(pkgs); err != nil {
			return err
		}
		return enc.Close()
	default:
		for _, p := range pkgs {
			line := repoStyle.Render("aur/") + CmdStyle.Render(p.Name)
			if p.Version != "" {
				line += " " + p.Version
			}
			if p.OutOfDate != nil {
				line += " " + WarningStyle.Render("(out of date)")
			}
			fmt.Fprintln(w, line)
			if p.Description != "" {
				fmt.Fprintln(w, "    "+p.Description)
			}
		}
		return nil
	}
}
