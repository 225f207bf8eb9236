// SPDX-License-Identifier: MPL-2.0

package aurbuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/schollz/progressbar/v3"
)

type (
	// Cloner fetches a recipe repository into an existing empty directory.
	Cloner interface {
		Clone(ctx context.Context, url, dir string) error
	}

	// GitCloner clones with go-git; no git binary is needed.
	GitCloner struct {
		// Progress receives a spinner while cloning. Nil disables it.
		Progress io.Writer
	}
)

// Clone makes a shallow, single-branch clone of url into dir.
func (g *GitCloner) Clone(ctx context.Context, url, dir string) error {
	opts := &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
	}

	if g.Progress != nil {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(g.Progress),
			progressbar.OptionSetDescription("cloning "+url),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
		opts.Progress = bar
	}

	_, err := git.PlainCloneContext(ctx, dir, false, opts)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		// The AUR answers unknown package bases with an empty repository.
		return fmt.Errorf("recipe repository is empty: %w", err)
	default:
		return err
	}
}
