// SPDX-License-Identifier: MPL-2.0

// Package resolver decides, package by package, which source satisfies an
// install request. It tries the official repositories first and falls back to
// building from the AUR, enforcing the non-root build rule and a per-kind
// batch policy that says which failures stop the remaining packages.
package resolver
