// SPDX-License-Identifier: MPL-2.0

package pkgarchive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type entry struct {
	name     string
	body     string
	linkname string
	typeflag byte
}

func buildTar(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Typeflag: e.typeflag, Linkname: e.linkname}
		switch e.typeflag {
		case tar.TypeDir:
			hdr.Mode = 0o755
		case tar.TypeReg:
			hdr.Size = int64(len(e.body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if e.typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func compress(t *testing.T, c Compression, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch c {
	case Zstd:
		w, err = zstd.NewWriter(&buf)
	case XZ:
		w, err = xz.NewWriter(&buf)
	case Gzip:
		w = gzip.NewWriter(&buf)
	default:
		return data
	}
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func writeArchive(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var htopEntries = []entry{
	{name: ".PKGINFO", body: "pkgname = htop\npkgver = 3.3.0-1\n", typeflag: tar.TypeReg},
	{name: "usr/", typeflag: tar.TypeDir},
	{name: "usr/bin/", typeflag: tar.TypeDir},
	{name: "usr/bin/htop", body: "\x7fELF", typeflag: tar.TypeReg},
	{name: "usr/bin/top-alias", linkname: "htop", typeflag: tar.TypeSymlink},
}

func TestExtract_Formats(t *testing.T) {
	t.Parallel()

	for _, c := range []Compression{Zstd, XZ, Gzip, None} {
		t.Run(string(c), func(t *testing.T) {
			t.Parallel()
			data := compress(t, c, buildTar(t, htopEntries))
			if got := Detect(data); got != c {
				t.Fatalf("Detect() = %s, want %s", got, c)
			}

			dest := filepath.Join(t.TempDir(), "out")
			files, err := Extract(context.Background(), writeArchive(t, "htop.pkg.tar", data), dest)
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}

			want := []string{".PKGINFO", "usr/", "usr/bin/", "usr/bin/htop", "usr/bin/top-alias"}
			if !slices.Equal(files, want) {
				t.Errorf("files = %v, want %v", files, want)
			}
			body, err := os.ReadFile(filepath.Join(dest, "usr", "bin", "htop"))
			if err != nil || string(body) != "\x7fELF" {
				t.Errorf("usr/bin/htop = %q, %v", body, err)
			}
			if link, err := os.Readlink(filepath.Join(dest, "usr", "bin", "top-alias")); err != nil || link != "htop" {
				t.Errorf("symlink = %q, %v", link, err)
			}
		})
	}
}

func TestExtract_RejectsTraversal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		entries []entry
	}{
		{"parent path", []entry{{name: "../evil", body: "x", typeflag: tar.TypeReg}}},
		{"nested parent path", []entry{{name: "usr/../../evil", body: "x", typeflag: tar.TypeReg}}},
		{"through symlink", []entry{
			{name: "usr/lib", linkname: "/tmp", typeflag: tar.TypeSymlink},
			{name: "usr/lib/evil", body: "x", typeflag: tar.TypeReg},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dest := t.TempDir()
			archive := writeArchive(t, "evil.pkg.tar.zst", compress(t, Zstd, buildTar(t, tt.entries)))

			_, err := Extract(context.Background(), archive, dest)
			if !errors.Is(err, ErrUnsafePath) {
				t.Errorf("error = %v, want ErrUnsafePath", err)
			}
		})
	}
}

func TestExtract_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	archive := writeArchive(t, "htop.pkg.tar", buildTar(t, htopEntries))
	if _, err := Extract(ctx, archive, t.TempDir()); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestExtract_MissingArchive(t *testing.T) {
	t.Parallel()

	if _, err := Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pkg.tar.zst"), t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestExtract_ReplacesSymlinkInsteadOfFollowing(t *testing.T) {
	t.Parallel()

	outside := t.TempDir()
	victim := filepath.Join(outside, "victim.txt")
	if err := os.WriteFile(victim, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}
	victimDir := filepath.Join(outside, "share")
	if err := os.Mkdir(victimDir, 0o755); err != nil {
		t.Fatal(err)
	}

	entries := []entry{
		{name: "usr/lib/libx.so", linkname: victim, typeflag: tar.TypeSymlink},
		{name: "usr/lib/libx.so", body: "replaced", typeflag: tar.TypeReg},
		{name: "usr/share", linkname: victimDir, typeflag: tar.TypeSymlink},
		{name: "usr/share/", typeflag: tar.TypeDir},
		{name: "usr/share/doc", body: "doc", typeflag: tar.TypeReg},
	}
	dest := t.TempDir()
	if _, err := Extract(context.Background(), writeArchive(t, "x.pkg.tar", buildTar(t, entries)), dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if body, _ := os.ReadFile(victim); string(body) != "original" {
		t.Errorf("file outside destination changed to %q", body)
	}
	if _, err := os.Stat(filepath.Join(victimDir, "doc")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("file written into directory outside destination: %v", err)
	}

	lib := filepath.Join(dest, "usr", "lib", "libx.so")
	if fi, err := os.Lstat(lib); err != nil || !fi.Mode().IsRegular() {
		t.Fatalf("usr/lib/libx.so is not a regular file: %v", err)
	}
	if body, _ := os.ReadFile(lib); string(body) != "replaced" {
		t.Errorf("usr/lib/libx.so = %q", body)
	}
	if fi, err := os.Lstat(filepath.Join(dest, "usr", "share")); err != nil || !fi.IsDir() {
		t.Errorf("usr/share is not a directory: %v", err)
	}
}
