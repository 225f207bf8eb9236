// SPDX-License-Identifier: MPL-2.0

//go:build unix

package resolver

import "golang.org/x/sys/unix"

// CurrentIdentity reads the process's effective user id.
func CurrentIdentity() Identity {
	return Identity{EUID: unix.Geteuid()}
}
