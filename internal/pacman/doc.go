// SPDX-License-Identifier: MPL-2.0

// Package pacman drives the official package manager.
//
// Every operation starts exactly one pacman process (two for Info and
// Autoremove), prefixed with the configured escalation command when the
// operation mutates the system and archpkg is not running as root. Failures
// are classified from pacman's stderr: unknown targets become ErrNotFound,
// mirror and DNS trouble becomes a retryable *TransportError, and everything
// else is a *CommandError carrying the exit status.
package pacman
