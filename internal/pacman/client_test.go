// SPDX-License-Identifier: MPL-2.0

package pacman

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/archpkg/archpkg/internal/retry"
	"github.com/archpkg/archpkg/internal/testutil"
)

func TestHelperProcess(t *testing.T) { testutil.HelperProcess() }

func newTestClient(t *testing.T, rec *testutil.CommandRecorder, opts ...Option) (*Client, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	base := []Option{
		WithExecCommand(rec.CommandFunc(t)),
		WithIO(bytes.NewReader(nil), &out, &bytes.Buffer{}),
	}
	return NewClient(append(base, opts...)...), &out
}

func TestInstall_Escalation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		opts     []Option
		wantLine string
	}{
		{"sudo for regular user", nil, "sudo pacman -S --noconfirm --needed htop"},
		{"no prefix as root", []Option{WithRoot(true)}, "pacman -S --noconfirm --needed htop"},
		{"custom escalation", []Option{WithEscalation("doas")}, "doas pacman -S --noconfirm --needed htop"},
		{"escalation disabled", []Option{WithEscalation("")}, "pacman -S --noconfirm --needed htop"},
		{"custom binary", []Option{WithBinary("/opt/bin/pacman"), WithRoot(true)}, "/opt/bin/pacman -S --noconfirm --needed htop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := testutil.NewCommandRecorder()
			c, _ := newTestClient(t, rec, tt.opts...)

			if err := c.Install(context.Background(), "htop"); err != nil {
				t.Fatalf("Install() error = %v", err)
			}
			rec.AssertCommandLines(t, tt.wantLine)
		})
	}
}

func TestInstall_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		resp          testutil.MockResponse
		wantNotFound  bool
		wantTransient bool
		wantCode      int
	}{
		{
			name:         "unknown target",
			resp:         testutil.MockResponse{ExitCode: 1, Stderr: "error: target not found: some-aur-only-tool\n"},
			wantNotFound: true,
			wantCode:     1,
		},
		{
			name:          "mirror unreachable",
			resp:          testutil.MockResponse{ExitCode: 1, Stderr: "error: failed retrieving file 'htop-3.3.0-1-x86_64.pkg.tar.zst' from mirror : Could not resolve host: mirror\n"},
			wantTransient: true,
			wantCode:      1,
		},
		{
			name:          "database locked",
			resp:          testutil.MockResponse{ExitCode: 1, Stderr: "error: failed to init transaction (unable to lock database)\n"},
			wantTransient: true,
			wantCode:      1,
		},
		{
			name:     "conflict",
			resp:     testutil.MockResponse{ExitCode: 1, Stderr: "error: failed to prepare transaction (conflicting dependencies)\n"},
			wantCode: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := testutil.NewCommandRecorder()
			rec.Default = tt.resp
			c, _ := newTestClient(t, rec, WithRoot(true))

			err := c.Install(context.Background(), "htop")
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, ErrNotFound); got != tt.wantNotFound {
				t.Errorf("errors.Is(ErrNotFound) = %v, want %v (err: %v)", got, tt.wantNotFound, err)
			}
			if got := retry.IsTransient(err); got != tt.wantTransient {
				t.Errorf("IsTransient = %v, want %v (err: %v)", got, tt.wantTransient, err)
			}
			if got := ExitCode(err); got != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestNotFoundError_Targets(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	rec.Default = testutil.MockResponse{
		ExitCode: 1,
		Stderr:   "error: target not found: foo\nerror: target not found: bar\n",
	}
	c, _ := newTestClient(t, rec, WithRoot(true))

	err := c.Install(context.Background(), "foo", "bar")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
	if !slices.Equal(nf.Targets, []string{"foo", "bar"}) {
		t.Errorf("Targets = %v, want [foo bar]", nf.Targets)
	}
}

func TestManagerMissing(t *testing.T) {
	t.Parallel()

	c := NewClient(WithBinary("/nonexistent/pacman-for-tests"), WithRoot(true), WithIO(nil, &bytes.Buffer{}, &bytes.Buffer{}))
	err := c.Version(context.Background())
	if !errors.Is(err, ErrManagerMissing) {
		t.Errorf("Version() error = %v, want ErrManagerMissing", err)
	}
}

func TestEscalationMissing(t *testing.T) {
	t.Parallel()

	c := NewClient(
		WithEscalation("/nonexistent/sudo-for-tests"),
		WithRoot(false),
		WithIO(nil, &bytes.Buffer{}, &bytes.Buffer{}),
	)
	err := c.Install(context.Background(), "htop")
	if !errors.Is(err, ErrEscalationMissing) {
		t.Fatalf("Install() error = %v, want ErrEscalationMissing", err)
	}
	if errors.Is(err, ErrManagerMissing) {
		t.Error("a missing escalation command must not be reported as a missing pacman")
	}
	if !strings.Contains(err.Error(), "/nonexistent/sudo-for-tests") {
		t.Errorf("error = %q, want it to name the escalation command", err.Error())
	}
}

func TestExists(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	rec.Respond = func(inv testutil.MockInvocation) (testutil.MockResponse, bool) {
		switch inv.Args[len(inv.Args)-1] {
		case "ghost":
			return testutil.MockResponse{ExitCode: 1, Stderr: "error: package 'ghost' was not found\n"}, true
		case "offline":
			return testutil.MockResponse{ExitCode: 1, Stderr: "error: failed to synchronize all databases\n"}, true
		}
		return testutil.MockResponse{Stdout: "Name : htop\n"}, true
	}
	c, _ := newTestClient(t, rec)

	if ok, err := c.Exists(context.Background(), "htop"); err != nil || !ok {
		t.Errorf("Exists(htop) = %v, %v; want true, nil", ok, err)
	}
	if ok, err := c.Exists(context.Background(), "ghost"); err != nil || ok {
		t.Errorf("Exists(ghost) = %v, %v; want false, nil", ok, err)
	}
	if _, err := c.Exists(context.Background(), "offline"); !retry.IsTransient(err) {
		t.Errorf("Exists(offline) error = %v, want transient", err)
	}
	// -Si is a read-only query: never escalated.
	for _, inv := range rec.Invocations() {
		if inv.Name != "pacman" {
			t.Errorf("query escalated: %s", inv.Name)
		}
	}
}

func TestPassthroughArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		call func(ctx context.Context, c *Client) error
		want string
	}{
		{"install files", func(ctx context.Context, c *Client) error {
			return c.InstallFiles(ctx, "a.pkg.tar.zst", "b.pkg.tar.zst")
		}, "pacman -U --noconfirm a.pkg.tar.zst b.pkg.tar.zst"},
		{"reinstall", func(ctx context.Context, c *Client) error { return c.Reinstall(ctx, "htop") }, "pacman -S --noconfirm htop"},
		{"remove", func(ctx context.Context, c *Client) error { return c.Remove(ctx, "htop", "vim") }, "pacman -R htop vim"},
		{"search", func(ctx context.Context, c *Client) error { return c.Search(ctx, "editor") }, "pacman -Ss editor"},
		{"upgrade", func(ctx context.Context, c *Client) error { return c.Upgrade(ctx, nil) }, "pacman -Syu"},
		{"upgrade with holds", func(ctx context.Context, c *Client) error { return c.Upgrade(ctx, []string{"linux", "mesa"}) }, "pacman -Syu --ignore linux,mesa"},
		{"refresh", func(ctx context.Context, c *Client) error { return c.Refresh(ctx) }, "pacman -Sy"},
		{"query all", func(ctx context.Context, c *Client) error { return c.Query(ctx) }, "pacman -Q"},
		{"query some", func(ctx context.Context, c *Client) error { return c.Query(ctx, "htop") }, "pacman -Q htop"},
		{"version", func(ctx context.Context, c *Client) error { return c.Version(ctx) }, "pacman -V"},
		{"clean", func(ctx context.Context, c *Client) error { return c.CleanCache(ctx) }, "pacman -Sc --noconfirm"},
		{"check", func(ctx context.Context, c *Client) error { return c.CheckDatabase(ctx) }, "pacman -Dk"},
		{"owns", func(ctx context.Context, c *Client) error { return c.Owns(ctx, "/usr/bin/htop") }, "pacman -Qo /usr/bin/htop"},
		{"files", func(ctx context.Context, c *Client) error { return c.Files(ctx, "htop") }, "pacman -Ql htop"},
		{"changelog", func(ctx context.Context, c *Client) error { return c.Changelog(ctx, "htop") }, "pacman -Qc htop"},
		{"verify", func(ctx context.Context, c *Client) error { return c.Verify(ctx, "htop") }, "pacman -Qkk htop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := testutil.NewCommandRecorder()
			c, _ := newTestClient(t, rec, WithRoot(true))

			if err := tt.call(context.Background(), c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			rec.AssertCommandLines(t, tt.want)
		})
	}
}

func TestPassthrough_ForwardsExitStatus(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	rec.Default = testutil.MockResponse{ExitCode: 1}
	c, _ := newTestClient(t, rec)

	err := c.Search(context.Background(), "nothing-matches-this")
	if got := ExitCode(err); got != 1 {
		t.Errorf("ExitCode(%v) = %d, want 1", err, got)
	}
}

func TestInfo_FallsBackToLocalDatabase(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	rec.Respond = func(inv testutil.MockInvocation) (testutil.MockResponse, bool) {
		if inv.Args[0] == "-Si" {
			return testutil.MockResponse{ExitCode: 1, Stderr: "error: package 'yay' was not found\n"}, true
		}
		return testutil.MockResponse{Stdout: "Name            : yay\n"}, true
	}
	c, out := newTestClient(t, rec)

	if err := c.Info(context.Background(), "yay"); err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	rec.AssertCommandLines(t, "pacman -Si yay", "pacman -Qi yay")
	if out.String() != "Name            : yay\n" {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestAutoremove(t *testing.T) {
	t.Parallel()

	t.Run("removes orphans", func(t *testing.T) {
		t.Parallel()
		rec := testutil.NewCommandRecorder()
		rec.Respond = func(inv testutil.MockInvocation) (testutil.MockResponse, bool) {
			if inv.Args[0] == "-Qdtq" {
				return testutil.MockResponse{Stdout: "libfoo\nlibbar\n"}, true
			}
			return testutil.MockResponse{}, false
		}
		c, _ := newTestClient(t, rec)

		removed, err := c.Autoremove(context.Background())
		if err != nil {
			t.Fatalf("Autoremove() error = %v", err)
		}
		if !slices.Equal(removed, []string{"libfoo", "libbar"}) {
			t.Errorf("removed = %v", removed)
		}
		rec.AssertCommandLines(t, "pacman -Qdtq", "sudo pacman -Rns libfoo libbar")
	})

	t.Run("nothing to do", func(t *testing.T) {
		t.Parallel()
		rec := testutil.NewCommandRecorder()
		rec.Default = testutil.MockResponse{ExitCode: 1}
		c, _ := newTestClient(t, rec)

		removed, err := c.Autoremove(context.Background())
		if err != nil || removed != nil {
			t.Fatalf("Autoremove() = %v, %v; want nil, nil", removed, err)
		}
		rec.AssertInvocationCount(t, 1)
	})
}

func TestStats(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	rec.Respond = func(inv testutil.MockInvocation) (testutil.MockResponse, bool) {
		switch inv.Args[0] {
		case "-Qq":
			return testutil.MockResponse{Stdout: "a\nb\nc\nd\n"}, true
		case "-Qeq":
			return testutil.MockResponse{Stdout: "a\nb\n"}, true
		case "-Qmq":
			return testutil.MockResponse{Stdout: "d\n"}, true
		}
		return testutil.MockResponse{ExitCode: 1}, true
	}
	c, _ := newTestClient(t, rec)

	got, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := Stats{Installed: 4, Explicit: 2, Foreign: 1, Orphans: 0}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	c, _ := newTestClient(t, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Install(ctx, "htop")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Install() error = %v, want context.Canceled", err)
	}
	if retry.IsTransient(err) {
		t.Error("canceled install must not be retried")
	}
}
