// SPDX-License-Identifier: MPL-2.0

package pacman

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Client runs pacman.
	Client struct {
		binary      string
		escalation  string
		root        bool
		execCommand ExecCommandFunc
		stdin       io.Reader
		stdout      io.Writer
		stderr      io.Writer
	}

	// Option configures a Client.
	Option func(*Client)
)

var (
	targetNotFoundRe = regexp.MustCompile(`(?m)^error: target not found: (\S+)`)
	pkgNotFoundRe    = regexp.MustCompile(`(?m)^error: package '([^']+)' was not found`)

	transportMarkers = []string{
		"failed retrieving file",
		"could not resolve host",
		"temporary failure in name resolution",
		"connection timed out",
		"connection refused",
		"operation too slow",
		"failed to synchronize all databases",
	}
)

// WithBinary sets the pacman executable.
func WithBinary(path string) Option {
	return func(c *Client) { c.binary = path }
}

// WithEscalation sets the command prefixed to mutating operations ("sudo",
// "doas"). Empty disables escalation.
func WithEscalation(cmd string) Option {
	return func(c *Client) { c.escalation = cmd }
}

// WithRoot tells the client it already runs as the superuser, so no
// escalation prefix is needed.
func WithRoot(root bool) Option {
	return func(c *Client) { c.root = root }
}

// WithExecCommand replaces exec.CommandContext, for tests.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(c *Client) { c.execCommand = fn }
}

// WithIO sets the streams pacman output is relayed to. Nil keeps the default.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(c *Client) {
		if stdin != nil {
			c.stdin = stdin
		}
		if stdout != nil {
			c.stdout = stdout
		}
		if stderr != nil {
			c.stderr = stderr
		}
	}
}

// NewClient creates a Client with defaults: "pacman" from PATH, "sudo"
// escalation and the process's standard streams.
func NewClient(opts ...Option) *Client {
	c := &Client{
		binary:      "pacman",
		escalation:  "sudo",
		execCommand: exec.CommandContext,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// command builds the exec.Cmd, prefixing the escalation command for
// privileged operations.
func (c *Client) command(ctx context.Context, privileged bool, args ...string) *exec.Cmd {
	if privileged && !c.root && c.escalation != "" {
		return c.execCommand(ctx, c.escalation, append([]string{c.binary}, args...)...)
	}
	return c.execCommand(ctx, c.binary, args...)
}

// run streams pacman's output to the user while keeping a copy of stderr
// for classification.
func (c *Client) run(ctx context.Context, privileged bool, args ...string) error {
	slog.Debug("running pacman", "args", args, "privileged", privileged)

	var errBuf bytes.Buffer
	cmd := c.command(ctx, privileged, args...)
	cmd.Stdin = c.stdin
	cmd.Stdout = c.stdout
	cmd.Stderr = io.MultiWriter(c.stderr, &errBuf)

	if err := cmd.Run(); err != nil {
		return c.classify(ctx, cmd, args, err, errBuf.String())
	}
	return nil
}

// output captures stdout instead of relaying it.
func (c *Client) output(ctx context.Context, args ...string) (string, error) {
	slog.Debug("querying pacman", "args", args)

	var outBuf, errBuf bytes.Buffer
	cmd := c.command(ctx, false, args...)
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	if err := cmd.Run(); err != nil {
		return outBuf.String(), c.classify(ctx, cmd, args, err, errBuf.String())
	}
	return outBuf.String(), nil
}

func (c *Client) classify(ctx context.Context, cmd *exec.Cmd, args []string, err error, stderr string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("pacman %s: %w", strings.Join(args, " "), ctxErr)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		started := cmd.Args[0]
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			if started != c.binary {
				return fmt.Errorf("%w: %s: %w", ErrEscalationMissing, started, err)
			}
			return fmt.Errorf("%w: %s: %w", ErrManagerMissing, started, err)
		}
		return fmt.Errorf("start %s: %w", started, err)
	}

	if targets := notFoundTargets(stderr); len(targets) > 0 {
		return &NotFoundError{Targets: targets}
	}

	lower := strings.ToLower(stderr)
	for _, marker := range transportMarkers {
		if strings.Contains(lower, marker) {
			return &TransportError{Args: args, ExitCode: exitErr.ExitCode(), Stderr: stderr}
		}
	}

	return &CommandError{
		Args:     args,
		ExitCode: exitErr.ExitCode(),
		Stderr:   stderr,
		Locked:   strings.Contains(lower, "unable to lock database"),
	}
}

func notFoundTargets(stderr string) []string {
	var targets []string
	for _, re := range []*regexp.Regexp{targetNotFoundRe, pkgNotFoundRe} {
		for _, m := range re.FindAllStringSubmatch(stderr, -1) {
			targets = append(targets, m[1])
		}
	}
	return targets
}

// Install installs packages from the sync repositories without prompting.
// Already up-to-date packages are skipped.
func (c *Client) Install(ctx context.Context, names ...string) error {
	return c.run(ctx, true, append([]string{"-S", "--noconfirm", "--needed"}, names...)...)
}

// InstallFiles installs pre-built package archives.
func (c *Client) InstallFiles(ctx context.Context, paths ...string) error {
	return c.run(ctx, true, append([]string{"-U", "--noconfirm"}, paths...)...)
}

// Reinstall installs packages again even when they are current.
func (c *Client) Reinstall(ctx context.Context, names ...string) error {
	return c.run(ctx, true, append([]string{"-S", "--noconfirm"}, names...)...)
}

// Remove uninstalls packages, prompting for confirmation.
func (c *Client) Remove(ctx context.Context, names ...string) error {
	return c.run(ctx, true, append([]string{"-R"}, names...)...)
}

// Exists reports whether a sync repository carries name.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	_, err := c.output(ctx, "-Si", name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Search searches the sync databases. pacman exits 1 when nothing matches.
func (c *Client) Search(ctx context.Context, term string) error {
	return c.run(ctx, false, "-Ss", term)
}

// Upgrade refreshes the databases and upgrades the system, skipping every
// package in ignore.
func (c *Client) Upgrade(ctx context.Context, ignore []string) error {
	args := []string{"-Syu"}
	if len(ignore) > 0 {
		args = append(args, "--ignore", strings.Join(ignore, ","))
	}
	return c.run(ctx, true, args...)
}

// Refresh synchronizes the package databases.
func (c *Client) Refresh(ctx context.Context) error {
	return c.run(ctx, true, "-Sy")
}

// Info prints sync-repository information for name, falling back to the
// local database for packages that are installed but not in any repository.
func (c *Client) Info(ctx context.Context, name string) error {
	out, err := c.output(ctx, "-Si", name)
	if errors.Is(err, ErrNotFound) {
		out, err = c.output(ctx, "-Qi", name)
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(c.stdout, out)
	return err
}

// Query lists installed packages, or the given ones.
func (c *Client) Query(ctx context.Context, names ...string) error {
	return c.run(ctx, false, append([]string{"-Q"}, names...)...)
}

// Version prints pacman's version banner.
func (c *Client) Version(ctx context.Context) error {
	return c.run(ctx, false, "-V")
}

// CleanCache removes uninstalled packages from the package cache.
func (c *Client) CleanCache(ctx context.Context) error {
	return c.run(ctx, true, "-Sc", "--noconfirm")
}

// CheckDatabase checks the local database for consistency.
func (c *Client) CheckDatabase(ctx context.Context) error {
	return c.run(ctx, false, "-Dk")
}

// Owns prints the package owning path.
func (c *Client) Owns(ctx context.Context, path string) error {
	return c.run(ctx, false, "-Qo", path)
}

// Files lists the files installed by name.
func (c *Client) Files(ctx context.Context, name string) error {
	return c.run(ctx, false, "-Ql", name)
}

// Changelog prints the changelog shipped with name, if any.
func (c *Client) Changelog(ctx context.Context, name string) error {
	return c.run(ctx, false, "-Qc", name)
}

// Verify checks installed files of the given packages (all when empty)
// against the recorded metadata.
func (c *Client) Verify(ctx context.Context, names ...string) error {
	return c.run(ctx, false, append([]string{"-Qkk"}, names...)...)
}

// Orphans lists packages installed as dependencies that nothing requires.
func (c *Client) Orphans(ctx context.Context) ([]string, error) {
	return c.list(ctx, "-Qdtq")
}

// Autoremove removes orphans recursively. It reports the removed names;
// none is not an error.
func (c *Client) Autoremove(ctx context.Context) ([]string, error) {
	orphans, err := c.Orphans(ctx)
	if err != nil || len(orphans) == 0 {
		return nil, err
	}
	if err := c.run(ctx, true, append([]string{"-Rns"}, orphans...)...); err != nil {
		return nil, err
	}
	return orphans, nil
}

// list returns one name per output line. pacman exits 1 with no output
// when a query matches nothing, which is an empty list here.
func (c *Client) list(ctx context.Context, args ...string) ([]string, error) {
	out, err := c.output(ctx, args...)
	if err != nil {
		var ce *CommandError
		if errors.As(err, &ce) && ce.ExitCode == 1 && strings.TrimSpace(out) == "" && strings.TrimSpace(ce.Stderr) == "" {
			return nil, nil
		}
		return nil, err
	}
	return strings.Fields(out), nil
}
