// SPDX-License-Identifier: MPL-2.0

package aurbuild

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkspacePrefix starts the name of every build workspace directory.
const WorkspacePrefix = "archpkg-"

// Workspace is an exclusively owned build directory. It is removed by Close.
type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// registry tracks open workspaces so shutdown paths can release them.
var registry = struct {
	sync.Mutex
	open map[*Workspace]struct{}
}{open: make(map[*Workspace]struct{})}

// NewWorkspace creates <root>/archpkg-<pkg>-<uuid>. An empty root means the
// system temporary directory.
func NewWorkspace(root, pkg string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	dir := filepath.Join(root, WorkspacePrefix+safeName(pkg)+"-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	ws := &Workspace{dir: dir}
	registry.Lock()
	registry.open[ws] = struct{}{}
	registry.Unlock()

	slog.Debug("workspace created", "dir", dir)
	return ws, nil
}

// Dir returns the workspace path.
func (w *Workspace) Dir() string {
	return w.dir
}

// Close removes the workspace. Only the first call does any work; later
// calls return the same result.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		registry.Lock()
		delete(registry.open, w)
		registry.Unlock()

		if err := os.RemoveAll(w.dir); err != nil {
			w.err = fmt.Errorf("remove workspace %s: %w", w.dir, err)
			return
		}
		slog.Debug("workspace removed", "dir", w.dir)
	})
	return w.err
}

// ReleaseAll closes every workspace still open in this process.
func ReleaseAll() error {
	registry.Lock()
	open := make([]*Workspace, 0, len(registry.open))
	for ws := range registry.open {
		open = append(open, ws)
	}
	registry.Unlock()

	var errs []error
	for _, ws := range open {
		errs = append(errs, ws.Close())
	}
	return errors.Join(errs...)
}

// SweepStale removes workspace directories under root that were last
// modified more than minAge ago, returning the removed paths. Workspaces
// open in this process are never touched.
func SweepStale(root string, minAge time.Duration) ([]string, error) {
	if root == "" {
		root = os.TempDir()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan workspace root: %w", err)
	}

	registry.Lock()
	live := make(map[string]bool, len(registry.open))
	for ws := range registry.open {
		live[ws.dir] = true
	}
	registry.Unlock()

	cutoff := time.Now().Add(-minAge)
	var removed []string
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), WorkspacePrefix) {
			continue
		}
		path := filepath.Join(root, e.Name())
		if live[path] {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

// safeName keeps the characters AUR allows in package names.
func safeName(pkg string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '@', r == '.', r == '_', r == '+', r == '-':
			return r
		default:
			return '_'
		}
	}, pkg)
}
