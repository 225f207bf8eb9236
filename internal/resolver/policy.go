// SPDX-License-Identifier: MPL-2.0

package resolver

import "maps"

type (
	// Kind classifies a per-package failure for the batch policy.
	Kind int

	// Action is what the batch does after a failure of some Kind.
	Action int

	// Policy maps failure kinds to batch actions. Kinds missing from the
	// table continue.
	Policy map[Kind]Action
)

const (
	// KindNotFoundAur: neither pacman nor the AUR directory knows the name.
	KindNotFoundAur Kind = iota + 1
	// KindTransport: a package source stayed unreachable after retries.
	KindTransport
	// KindClone: the recipe repository could not be cloned or lacked a PKGBUILD.
	KindClone
	// KindBuild: makepkg failed.
	KindBuild
	// KindOfficialFailed: pacman failed for a reason other than a missing target.
	KindOfficialFailed
	// KindHeld: the package is on the hold list.
	KindHeld
	// KindPrivilege: an AUR build was requested by the superuser.
	KindPrivilege
	// KindOfficialOnlyMiss: installarch found no such package.
	KindOfficialOnlyMiss
	// KindFileMissing: a local package path is absent or not a regular file.
	KindFileMissing
	// KindFileInstall: pacman -U rejected a local package file.
	KindFileInstall
)

const (
	// Continue moves on to the next package.
	Continue Action = iota
	// Abort stops the batch; the remaining packages are reported as Skipped.
	Abort
)

var kindNames = map[Kind]string{
	KindNotFoundAur:      "not-found-aur",
	KindTransport:        "transport",
	KindClone:            "clone",
	KindBuild:            "build",
	KindOfficialFailed:   "official-failed",
	KindHeld:             "held",
	KindPrivilege:        "privilege",
	KindOfficialOnlyMiss: "official-only-miss",
	KindFileMissing:      "file-missing",
	KindFileInstall:      "file-install",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "none"
}

func (a Action) String() string {
	if a == Abort {
		return "abort"
	}
	return "continue"
}

// DefaultPolicy keeps going after per-package misses and failures but stops
// on a root AUR build or an official-only miss.
func DefaultPolicy() Policy {
	return Policy{
		KindNotFoundAur:      Continue,
		KindTransport:        Continue,
		KindClone:            Continue,
		KindBuild:            Continue,
		KindOfficialFailed:   Continue,
		KindHeld:             Continue,
		KindPrivilege:        Abort,
		KindOfficialOnlyMiss: Abort,
		KindFileMissing:      Continue,
		KindFileInstall:      Continue,
	}
}

// With returns a copy of p with kind mapped to action.
func (p Policy) With(kind Kind, action Action) Policy {
	out := maps.Clone(p)
	if out == nil {
		out = Policy{}
	}
	out[kind] = action
	return out
}

// Action looks up kind, defaulting to Continue.
func (p Policy) Action(kind Kind) Action {
	return p[kind]
}
