// SPDX-License-Identifier: MPL-2.0

package aurbuild

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archpkg/archpkg/internal/aur"
)

type (
	// Directory answers whether a package exists in the AUR and where its
	// recipe lives. *aur.Client satisfies it. Lookup is the existence gate:
	// it fails with aur.ErrNotFound when the info query reports no results,
	// and otherwise returns the record whose PackageBase names the recipe.
	Directory interface {
		Lookup(ctx context.Context, name string) (*aur.Package, error)
		RecipeURL(pkgBase string) string
	}

	// Installer fetches, builds and installs AUR packages, one throwaway
	// workspace per package.
	Installer struct {
		dir     Directory
		cloner  Cloner
		builder Builder
		root    string
	}

	// InstallerOption configures an Installer.
	InstallerOption func(*Installer)
)

// WithWorkspaceRoot sets the parent directory of build workspaces. Empty
// means the system temporary directory.
func WithWorkspaceRoot(root string) InstallerOption {
	return func(i *Installer) { i.root = root }
}

// NewInstaller composes an Installer.
func NewInstaller(dir Directory, cloner Cloner, builder Builder, opts ...InstallerOption) *Installer {
	i := &Installer{dir: dir, cloner: cloner, builder: builder}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// BuildAndInstall installs name from the AUR. A package the directory does
// not know yields aur.ErrNotFound before any workspace exists. The workspace
// is removed on every return path, including cancellation.
func (i *Installer) BuildAndInstall(ctx context.Context, name string) (*Recipe, error) {
	pkg, err := i.dir.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}

	ws, err := NewWorkspace(i.root, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			slog.Warn("workspace cleanup failed", "package", name, "error", cerr)
		}
	}()

	base := pkg.PackageBase
	if base == "" {
		base = pkg.Name
	}
	url := i.dir.RecipeURL(base)

	slog.Debug("cloning recipe", "package", name, "url", url)
	if err := i.cloner.Clone(ctx, url, ws.Dir()); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("clone %s: %w", name, ctx.Err())
		}
		return nil, &CloneError{Package: name, URL: url, Err: err}
	}

	recipe, err := ParseRecipe(ws.Dir())
	if err != nil {
		return nil, &CloneError{Package: name, URL: url, Err: err}
	}
	slog.Debug("recipe parsed", "package", name, "pkgbase", recipe.PkgBase, "version", recipe.Version())

	if err := i.builder.Build(ctx, name, ws.Dir()); err != nil {
		return recipe, err
	}
	return recipe, nil
}
