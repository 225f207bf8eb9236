// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/archpkg/archpkg/internal/aur"
	"github.com/archpkg/archpkg/internal/aurbuild"
	"github.com/archpkg/archpkg/internal/pacman"
	"github.com/archpkg/archpkg/internal/retry"
)

// Mode selects which sources an install may use.
type Mode int

const (
	// ModeAuto tries the official repositories, then the AUR.
	ModeAuto Mode = iota
	// ModeAurOnly goes straight to the AUR.
	ModeAurOnly
	// ModeOfficialOnly never falls back; a miss stops the batch.
	ModeOfficialOnly
)

func (m Mode) String() string {
	switch m {
	case ModeAurOnly:
		return "aur-only"
	case ModeOfficialOnly:
		return "official-only"
	default:
		return "auto"
	}
}

type (
	// Official installs from the sync repositories. *pacman.Client satisfies it.
	Official interface {
		Install(ctx context.Context, names ...string) error
		InstallFiles(ctx context.Context, paths ...string) error
	}

	// AurInstaller builds and installs one AUR package. *aurbuild.Installer
	// satisfies it.
	AurInstaller interface {
		BuildAndInstall(ctx context.Context, name string) (*aurbuild.Recipe, error)
	}

	// HoldChecker answers whether a package is held. *holdlist.List satisfies it.
	HoldChecker interface {
		Contains(name string) (bool, error)
	}

	// Resolver runs install batches sequentially, in request order.
	Resolver struct {
		official Official
		aur      AurInstaller
		holds    HoldChecker
		identity Identity
		policy   Policy
		retry    retry.Policy
	}

	// Option configures a Resolver.
	Option func(*Resolver)
)

// WithIdentity overrides the effective user, which defaults to
// CurrentIdentity().
func WithIdentity(id Identity) Option {
	return func(r *Resolver) { r.identity = id }
}

// WithPolicy replaces the batch policy table.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(p retry.Policy) Option {
	return func(r *Resolver) { r.retry = p }
}

// WithHoldList makes held packages resolve to Held without being installed.
func WithHoldList(h HoldChecker) Option {
	return func(r *Resolver) { r.holds = h }
}

// New creates a Resolver acting as the process's effective user unless
// WithIdentity says otherwise.
func New(official Official, aurInstaller AurInstaller, opts ...Option) *Resolver {
	r := &Resolver{
		official: official,
		aur:      aurInstaller,
		identity: CurrentIdentity(),
		policy:   DefaultPolicy(),
		retry:    retry.Policy{Attempts: 1},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Install resolves each name in order. Packages after one whose failure kind
// the policy marks Abort are reported as Skipped. Cancelling ctx stops the
// batch the same way.
func (r *Resolver) Install(ctx context.Context, mode Mode, names []string) *BatchResult {
	batch := &BatchResult{Results: make([]PackageResult, 0, len(names))}
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			batch.skip(names[i:], err)
			batch.Aborted = true
			break
		}

		res := r.resolve(ctx, mode, name)
		slog.Debug("package resolved", "package", name, "outcome", res.Outcome.String(), "kind", res.Kind.String())
		batch.Results = append(batch.Results, res)

		if res.Outcome.Failed() && r.policy.Action(res.Kind) == Abort {
			batch.skip(names[i+1:], ErrSkipped)
			batch.Aborted = true
			break
		}
	}
	return batch
}

func (r *Resolver) resolve(ctx context.Context, mode Mode, name string) PackageResult {
	if held, err := r.isHeld(name); err != nil {
		slog.Warn("hold list unreadable, continuing without it", "error", err)
	} else if held {
		return PackageResult{Name: name, Outcome: Held, Kind: KindHeld, Err: fmt.Errorf("%s: %w", name, ErrHeld)}
	}

	if mode != ModeAurOnly {
		err := retry.Transient(ctx, r.retry, func(ctx context.Context) error {
			return r.official.Install(ctx, name)
		})
		switch {
		case err == nil:
			return PackageResult{Name: name, Outcome: InstalledFromOfficial}
		case errors.Is(err, pacman.ErrNotFound):
			if mode == ModeOfficialOnly {
				return PackageResult{Name: name, Outcome: NotFoundAnywhere, Kind: KindOfficialOnlyMiss, Err: err}
			}
			slog.Debug("not in official repositories, trying the AUR", "package", name)
		case retry.IsTransient(err):
			return PackageResult{Name: name, Outcome: Unreachable, Kind: KindTransport, Err: err}
		default:
			return PackageResult{Name: name, Outcome: InstallFailed, Kind: KindOfficialFailed, Err: err}
		}
	}

	return r.resolveAur(ctx, name)
}

func (r *Resolver) resolveAur(ctx context.Context, name string) PackageResult {
	if r.identity.IsSuperuser() {
		return PackageResult{Name: name, Outcome: PrivilegeDenied, Kind: KindPrivilege, Err: fmt.Errorf("%s: %w", name, ErrPrivilege)}
	}

	var recipe *aurbuild.Recipe
	err := retry.Transient(ctx, r.retry, func(ctx context.Context) error {
		var err error
		recipe, err = r.aur.BuildAndInstall(ctx, name)
		return err
	})

	var (
		cloneErr *aurbuild.CloneError
		buildErr *aurbuild.BuildError
		apiErr   *aur.APIError
	)
	switch {
	case err == nil:
		res := PackageResult{Name: name, Outcome: InstalledFromAur}
		if recipe != nil {
			res.Version = recipe.Version()
		}
		return res
	case errors.Is(err, aur.ErrNotFound):
		return PackageResult{Name: name, Outcome: NotFoundAnywhere, Kind: KindNotFoundAur, Err: err}
	case errors.As(err, &cloneErr):
		return PackageResult{Name: name, Outcome: BuildFailed, Kind: KindClone, Err: err}
	case errors.As(err, &buildErr):
		return PackageResult{Name: name, Outcome: BuildFailed, Kind: KindBuild, Err: err}
	case retry.IsTransient(err), errors.As(err, &apiErr):
		return PackageResult{Name: name, Outcome: Unreachable, Kind: KindTransport, Err: err}
	default:
		return PackageResult{Name: name, Outcome: BuildFailed, Kind: KindBuild, Err: err}
	}
}

// InstallFiles installs local package archives. Each path is checked on its
// own right before its install, and a missing path never reaches pacman.
func (r *Resolver) InstallFiles(ctx context.Context, paths []string) *BatchResult {
	batch := &BatchResult{Results: make([]PackageResult, 0, len(paths))}
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			batch.skip(paths[i:], err)
			batch.Aborted = true
			break
		}

		res := r.installFile(ctx, path)
		batch.Results = append(batch.Results, res)

		if res.Outcome.Failed() && r.policy.Action(res.Kind) == Abort {
			batch.skip(paths[i+1:], ErrSkipped)
			batch.Aborted = true
			break
		}
	}
	return batch
}

func (r *Resolver) installFile(ctx context.Context, path string) PackageResult {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return PackageResult{Name: path, Outcome: FileMissing, Kind: KindFileMissing, Err: fmt.Errorf("%w: %s", ErrFileMissing, path)}
	}
	if err := r.official.InstallFiles(ctx, path); err != nil {
		return PackageResult{Name: path, Outcome: InstallFailed, Kind: KindFileInstall, Err: err}
	}
	return PackageResult{Name: path, Outcome: InstalledFromFile}
}

func (r *Resolver) isHeld(name string) (bool, error) {
	if r.holds == nil {
		return false, nil
	}
	return r.holds.Contains(name)
}

func (b *BatchResult) skip(names []string, cause error) {
	for _, n := range names {
		b.Results = append(b.Results, PackageResult{Name: n, Outcome: Skipped, Err: cause})
	}
}
