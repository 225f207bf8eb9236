// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the archpkg command tree. Install-class verbs go
// through the resolver; every other verb delegates to pacman, the hold list
// or the archive extractor.
package cmd
