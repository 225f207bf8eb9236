// SPDX-License-Identifier: MPL-2.0

package aurbuild

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/archpkg/archpkg/internal/aur"
	"github.com/archpkg/archpkg/internal/testutil"
)

type (
	fakeDirectory struct {
		pkgs    map[string]aur.Package
		err     error
		lookups int
	}

	fakeCloner struct {
		pkgbuild string
		err      error
		urls     []string
		dirs     []string
	}

	fakeBuilder struct {
		err    error
		builds []string
		// seen records whether the recipe was present when the build ran.
		seen bool
	}
)

func (d *fakeDirectory) Lookup(_ context.Context, name string) (*aur.Package, error) {
	d.lookups++
	if d.err != nil {
		return nil, d.err
	}
	p, ok := d.pkgs[name]
	if !ok {
		return nil, aur.ErrNotFound
	}
	return &p, nil
}

func (d *fakeDirectory) RecipeURL(base string) string {
	return "https://aur.example/" + base + ".git"
}

func (c *fakeCloner) Clone(_ context.Context, url, dir string) error {
	c.urls = append(c.urls, url)
	c.dirs = append(c.dirs, dir)
	if c.err != nil {
		return c.err
	}
	if c.pkgbuild != "" {
		return os.WriteFile(filepath.Join(dir, RecipeFile), []byte(c.pkgbuild), 0o644)
	}
	return nil
}

func (b *fakeBuilder) Build(_ context.Context, pkg, dir string) error {
	b.builds = append(b.builds, pkg)
	_, err := os.Stat(filepath.Join(dir, RecipeFile))
	b.seen = err == nil
	return b.err
}

const yayRecipe = "pkgname=yay\npkgver=12.4.2\npkgrel=1\n"

func TestBuildAndInstall_Success(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := &fakeDirectory{pkgs: map[string]aur.Package{"yay": {Name: "yay", PackageBase: "yay"}}}
	cloner := &fakeCloner{pkgbuild: yayRecipe}
	builder := &fakeBuilder{}

	in := NewInstaller(dir, cloner, builder, WithWorkspaceRoot(root))
	recipe, err := in.BuildAndInstall(context.Background(), "yay")
	if err != nil {
		t.Fatalf("BuildAndInstall() error = %v", err)
	}
	if recipe.Version() != "12.4.2-1" {
		t.Errorf("Version() = %q", recipe.Version())
	}
	if len(cloner.urls) != 1 || cloner.urls[0] != "https://aur.example/yay.git" {
		t.Errorf("cloned %v", cloner.urls)
	}
	if !builder.seen {
		t.Error("builder ran without the recipe in place")
	}
	testutil.AssertNoMatches(t, root, WorkspacePrefix+"*")
}

func TestBuildAndInstall_SplitPackageClonesBase(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := &fakeDirectory{pkgs: map[string]aur.Package{"foo-docs": {Name: "foo-docs", PackageBase: "foo"}}}
	cloner := &fakeCloner{pkgbuild: "pkgbase=foo\npkgname=(foo foo-docs)\npkgver=1\npkgrel=1\n"}

	in := NewInstaller(dir, cloner, &fakeBuilder{}, WithWorkspaceRoot(root))
	if _, err := in.BuildAndInstall(context.Background(), "foo-docs"); err != nil {
		t.Fatal(err)
	}
	if cloner.urls[0] != "https://aur.example/foo.git" {
		t.Errorf("cloned %s, want the package base", cloner.urls[0])
	}
}

func TestBuildAndInstall_NotFoundCreatesNoWorkspace(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cloner := &fakeCloner{}
	builder := &fakeBuilder{}
	in := NewInstaller(&fakeDirectory{}, cloner, builder, WithWorkspaceRoot(root))

	_, err := in.BuildAndInstall(context.Background(), "nothing-here")
	if !errors.Is(err, aur.ErrNotFound) {
		t.Fatalf("error = %v, want aur.ErrNotFound", err)
	}
	if len(cloner.urls) != 0 || len(builder.builds) != 0 {
		t.Error("clone or build ran for a missing package")
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("workspace root not empty: %v", entries)
	}
}

func TestBuildAndInstall_TransportErrorPropagates(t *testing.T) {
	t.Parallel()

	transport := &aur.TransportError{Op: "info", Err: errors.New("connection refused")}
	in := NewInstaller(&fakeDirectory{err: transport}, &fakeCloner{}, &fakeBuilder{}, WithWorkspaceRoot(t.TempDir()))

	_, err := in.BuildAndInstall(context.Background(), "yay")
	var te *aur.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *aur.TransportError", err)
	}
}

func TestBuildAndInstall_FailuresReleaseWorkspace(t *testing.T) {
	t.Parallel()

	pkgs := map[string]aur.Package{"yay": {Name: "yay"}}
	tests := []struct {
		name      string
		cloner    *fakeCloner
		builder   *fakeBuilder
		wantClone bool
		wantBuild bool
	}{
		{
			name:      "clone fails",
			cloner:    &fakeCloner{err: errors.New("remote hung up")},
			builder:   &fakeBuilder{},
			wantClone: true,
		},
		{
			name:      "no PKGBUILD",
			cloner:    &fakeCloner{},
			builder:   &fakeBuilder{},
			wantClone: true,
		},
		{
			name:      "build fails",
			cloner:    &fakeCloner{pkgbuild: yayRecipe},
			builder:   &fakeBuilder{err: &BuildError{Package: "yay", ExitCode: 4}},
			wantBuild: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := t.TempDir()
			in := NewInstaller(&fakeDirectory{pkgs: pkgs}, tt.cloner, tt.builder, WithWorkspaceRoot(root))

			_, err := in.BuildAndInstall(context.Background(), "yay")
			var ce *CloneError
			var be *BuildError
			if got := errors.As(err, &ce); got != tt.wantClone {
				t.Errorf("CloneError = %v, want %v (err: %v)", got, tt.wantClone, err)
			}
			if got := errors.As(err, &be); got != tt.wantBuild {
				t.Errorf("BuildError = %v, want %v (err: %v)", got, tt.wantBuild, err)
			}
			if tt.wantClone && len(tt.builder.builds) != 0 {
				t.Error("build ran after a clone failure")
			}
			testutil.AssertNoMatches(t, root, WorkspacePrefix+"*")
		})
	}
}
