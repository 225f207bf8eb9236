// SPDX-License-Identifier: MPL-2.0

package aurbuild

import "fmt"

type (
	// CloneError reports that the recipe repository could not be cloned or
	// did not contain a usable PKGBUILD.
	CloneError struct {
		Package string
		URL     string
		Err     error
	}

	// BuildError reports a failed makepkg run.
	BuildError struct {
		Package  string
		ExitCode int
		Err      error
	}
)

func (e *CloneError) Error() string {
	return fmt.Sprintf("clone recipe for %s from %s: %v", e.Package, e.URL, e.Err)
}

func (e *CloneError) Unwrap() error { return e.Err }

func (e *BuildError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("build %s: makepkg exited with status %d", e.Package, e.ExitCode)
	}
	return fmt.Sprintf("build %s: %v", e.Package, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
