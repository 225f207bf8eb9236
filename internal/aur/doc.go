// SPDX-License-Identifier: MPL-2.0

// Package aur is a client for the AUR RPC interface (version 5).
//
// It answers two questions: which packages match a search term, and whether a
// package with an exact name exists. Network and server failures surface as
// *TransportError, which is retryable, and are never reported as a missing
// package. An empty answer is ErrNotFound.
package aur
