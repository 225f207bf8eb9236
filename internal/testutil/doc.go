// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by archpkg tests: filesystem
// assertions and a recorder that stands in for external tools (pacman,
// makepkg, sudo) by re-executing the test binary.
package testutil
