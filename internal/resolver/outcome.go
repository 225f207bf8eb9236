// SPDX-License-Identifier: MPL-2.0

package resolver

import "errors"

// Outcome is the final state of one requested package.
type Outcome int

const (
	InstalledFromOfficial Outcome = iota + 1
	InstalledFromAur
	NotFoundAnywhere
	BuildFailed
	PrivilegeDenied
	InstallFailed
	Unreachable
	Held
	Skipped
	InstalledFromFile
	FileMissing
)

var outcomeNames = map[Outcome]string{
	InstalledFromOfficial: "installed (official)",
	InstalledFromAur:      "installed (aur)",
	NotFoundAnywhere:      "not found",
	BuildFailed:           "build failed",
	PrivilegeDenied:       "privilege denied",
	InstallFailed:         "install failed",
	Unreachable:           "unreachable",
	Held:                  "held",
	Skipped:               "skipped",
	InstalledFromFile:     "installed (file)",
	FileMissing:           "file missing",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// Failed reports whether the outcome should make the invocation exit non-zero.
// A held package is an intentional skip and does not count.
func (o Outcome) Failed() bool {
	switch o {
	case InstalledFromOfficial, InstalledFromAur, InstalledFromFile, Held:
		return false
	default:
		return true
	}
}

var (
	// ErrPrivilege is returned for AUR installs attempted as the superuser.
	ErrPrivilege = errors.New("refusing to build AUR packages as root")
	// ErrFileMissing is returned for local archives that do not exist.
	ErrFileMissing = errors.New("file not found")
	// ErrHeld is returned for packages on the hold list.
	ErrHeld = errors.New("package is held")
	// ErrSkipped marks packages not attempted because the batch stopped.
	ErrSkipped = errors.New("not attempted, batch aborted")
)

type (
	// PackageResult records what happened to one package or file.
	PackageResult struct {
		Name    string
		Outcome Outcome
		// Kind classifies the failure; zero on success.
		Kind Kind
		// Version is the built recipe version for AUR installs.
		Version string
		Err     error
	}

	// BatchResult holds per-package results in request order.
	BatchResult struct {
		Results []PackageResult
		// Aborted is set when an Abort policy stopped the batch.
		Aborted bool
	}
)

// Failed reports whether any package failed.
func (b *BatchResult) Failed() bool {
	for _, r := range b.Results {
		if r.Outcome.Failed() {
			return true
		}
	}
	return false
}

// Outcomes lists the outcomes in request order.
func (b *BatchResult) Outcomes() []Outcome {
	out := make([]Outcome, len(b.Results))
	for i, r := range b.Results {
		out[i] = r.Outcome
	}
	return out
}

// FirstFailure returns the result that aborted the batch, or else the first
// failed one.
func (b *BatchResult) FirstFailure() (PackageResult, bool) {
	if b.Aborted {
		for i := len(b.Results) - 1; i >= 0; i-- {
			if b.Results[i].Outcome != Skipped {
				return b.Results[i], true
			}
		}
	}
	for _, r := range b.Results {
		if r.Outcome.Failed() {
			return r, true
		}
	}
	return PackageResult{}, false
}

// FirstError is the error of FirstFailure.
func (b *BatchResult) FirstError() error {
	r, ok := b.FirstFailure()
	if !ok {
		return nil
	}
	return r.Err
}
