// SPDX-License-Identifier: MPL-2.0

// Package holdlist persists the set of packages excluded from upgrades and
// installs. The file is plain text, one package name per line; blank lines
// and lines starting with '#' are ignored.
package holdlist

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrInvalidName is returned for empty names or names containing whitespace.
var ErrInvalidName = errors.New("invalid package name")

// List is a hold-list file. The zero value is not usable; call Open.
type List struct {
	path string
}

// Open returns the list stored at path. The file need not exist yet.
func Open(path string) *List {
	return &List{path: path}
}

// Path returns the backing file.
func (l *List) Path() string {
	return l.path
}

// Names returns held packages in file order. A missing file is an empty list.
func (l *List) Names() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read hold list: %w", err)
	}
	return parse(data), nil
}

// Contains reports whether name is held.
func (l *List) Contains(name string) (bool, error) {
	names, err := l.Names()
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}

// Add appends names not already held and returns those actually added.
func (l *List) Add(names ...string) ([]string, error) {
	if err := validate(names); err != nil {
		return nil, err
	}
	var added []string
	err := l.update(func(current []string) []string {
		for _, n := range names {
			if !slices.Contains(current, n) {
				current = append(current, n)
				added = append(added, n)
			}
		}
		return current
	})
	return added, err
}

// Remove drops names from the list and returns those that were held.
func (l *List) Remove(names ...string) ([]string, error) {
	if err := validate(names); err != nil {
		return nil, err
	}
	var removed []string
	err := l.update(func(current []string) []string {
		return slices.DeleteFunc(current, func(n string) bool {
			if slices.Contains(names, n) {
				removed = append(removed, n)
				return true
			}
			return false
		})
	})
	return removed, err
}

// update runs a read-modify-write cycle under an exclusive file lock and
// replaces the file atomically.
func (l *List) update(fn func([]string) []string) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create hold list directory: %w", err)
	}

	lock, err := acquireLock(l.path + ".lock")
	if err != nil {
		return err
	}
	defer lock.Release()

	current, err := l.Names()
	if err != nil {
		return err
	}
	next := fn(current)

	var buf bytes.Buffer
	for _, n := range next {
		buf.WriteString(n)
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(dir, ".holdlist-*")
	if err != nil {
		return fmt.Errorf("write hold list: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after a successful rename

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write hold list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write hold list: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write hold list: %w", err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("replace hold list: %w", err)
	}
	return nil
}

func parse(data []byte) []string {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !slices.Contains(names, line) {
			names = append(names, line)
		}
	}
	return names
}

func validate(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: no package given", ErrInvalidName)
	}
	for _, n := range names {
		if n == "" || strings.ContainsFunc(n, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }) {
			return fmt.Errorf("%w: %q", ErrInvalidName, n)
		}
	}
	return nil
}
