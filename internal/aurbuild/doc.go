// SPDX-License-Identifier: MPL-2.0

// Package aurbuild installs AUR packages: it confirms the package exists,
// clones its recipe into a private workspace, runs makepkg there, and removes
// the workspace on every exit path.
//
// Workspaces are scoped resources. Installer.BuildAndInstall releases its
// workspace with a deferred Close; ReleaseAll removes any that are still open
// when the process is shutting down after a signal; SweepStale removes
// leftovers from processes that were killed outright.
package aurbuild
