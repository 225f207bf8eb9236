// SPDX-License-Identifier: MPL-2.0

package resolver

// Identity is the effective user the resolver acts for.
type Identity struct {
	EUID int
}

// IsSuperuser reports whether the identity is root.
func (id Identity) IsSuperuser() bool {
	return id.EUID == 0
}
