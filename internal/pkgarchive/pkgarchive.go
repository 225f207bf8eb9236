// SPDX-License-Identifier: MPL-2.0

// Package pkgarchive unpacks pacman package archives (.pkg.tar.zst,
// .pkg.tar.xz, .pkg.tar.gz and plain tar) into a directory.
package pkgarchive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// MaxFileSize caps a single extracted file.
const MaxFileSize = 2 << 30

var (
	// ErrUnsafePath is returned for entries that would land outside the
	// destination directory.
	ErrUnsafePath = errors.New("archive entry escapes destination")
	// ErrTooLarge is returned for entries over MaxFileSize.
	ErrTooLarge = errors.New("archive entry too large")

	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	gzipMagic = []byte{0x1f, 0x8b}
)

// Compression names the detected outer format.
type Compression string

const (
	None Compression = "none"
	Zstd Compression = "zstd"
	XZ   Compression = "xz"
	Gzip Compression = "gzip"
)

// Detect sniffs the compression from the leading bytes.
func Detect(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		return Zstd
	case bytes.HasPrefix(head, xzMagic):
		return XZ
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	default:
		return None
	}
}

// Extract unpacks archive into destDir and returns the extracted paths,
// relative to destDir. pacman metadata files (.PKGINFO, .MTREE, ...) are
// extracted like any other entry.
func Extract(ctx context.Context, archive, destDir string) ([]string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }() // read-only

	br := bufio.NewReader(f)
	head, _ := br.Peek(6) //nolint:errcheck // short files are detected as plain tar

	stream, closeStream, err := decompress(Detect(head), br)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(archive), err)
	}
	defer closeStream()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}
	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, err
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return nil, err
	}

	var extracted []string
	tr := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return extracted, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return extracted, fmt.Errorf("read archive: %w", err)
		}

		target, err := safeJoin(root, hdr.Name)
		if err != nil {
			return extracted, err
		}
		if err := writeEntry(tr, hdr, root, target); err != nil {
			return extracted, err
		}
		if hdr.Typeflag == tar.TypeReg || hdr.Typeflag == tar.TypeDir || hdr.Typeflag == tar.TypeSymlink {
			extracted = append(extracted, strings.TrimPrefix(filepath.ToSlash(hdr.Name), "./"))
		}
	}

	slog.Debug("archive extracted", "archive", archive, "entries", len(extracted))
	return extracted, nil
}

func decompress(c Compression, r io.Reader) (io.Reader, func(), error) {
	switch c {
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, func() {}, nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gr, func() { _ = gr.Close() }, nil
	default:
		return r, func() {}, nil
	}
}

// safeJoin resolves name under root, rejecting absolute paths and parent
// traversal.
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, clean)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

// insideRoot rejects targets whose nearest existing ancestor resolves,
// through a symlink extracted earlier, to somewhere outside root.
func insideRoot(root, target string) error {
	dir := filepath.Dir(target)
	for dir != root && len(dir) > len(root) {
		if _, err := os.Lstat(dir); err == nil {
			break
		}
		dir = filepath.Dir(dir)
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrUnsafePath, target)
	}
	return nil
}

// clearNonDir removes whatever non-directory entry already sits at target, so
// a later entry never writes through a symlink extracted earlier.
func clearNonDir(target string) error {
	fi, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.IsDir() {
		return nil
	}
	return os.Remove(target)
}

func writeEntry(tr *tar.Reader, hdr *tar.Header, root, target string) error {
	mode := os.FileMode(hdr.Mode).Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := insideRoot(root, target); err != nil {
			return err
		}
		if err := clearNonDir(target); err != nil {
			return err
		}
		return os.MkdirAll(target, mode|0o700)
	case tar.TypeReg:
		if hdr.Size > MaxFileSize {
			return fmt.Errorf("%w: %s (%d bytes)", ErrTooLarge, hdr.Name, hdr.Size)
		}
		if err := insideRoot(root, target); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := clearNonDir(target); err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0o600)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, io.LimitReader(tr, MaxFileSize)); err != nil {
			_ = out.Close()
			return fmt.Errorf("extract %s: %w", hdr.Name, err)
		}
		return out.Close()
	case tar.TypeSymlink:
		// Absolute links are normal in packages (usr/lib/libfoo.so -> libfoo.so.1)
		// and are only written, never followed.
		if err := insideRoot(root, target); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		_ = os.Remove(target)
		return os.Symlink(hdr.Linkname, target)
	default:
		slog.Debug("skipping archive entry", "name", hdr.Name, "type", string(hdr.Typeflag))
		return nil
	}
}
