// SPDX-License-Identifier: MPL-2.0

// Package issue holds archpkg's user-facing error vocabulary: ActionableError
// values that carry remediation hints, and a catalog of Markdown troubleshooting
// pages rendered to the terminal with glamour.
package issue
