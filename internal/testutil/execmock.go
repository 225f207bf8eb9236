// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const helperEnv = "GO_WANT_HELPER_PROCESS"

type (
	// MockResponse is what a faked process prints and returns.
	MockResponse struct {
		ExitCode int
		Stdout   string
		Stderr   string
	}

	// MockInvocation records one faked process start.
	MockInvocation struct {
		Name string
		Args []string
	}

	// CommandRecorder replaces exec.CommandContext in tests using the
	// TestHelperProcess pattern. Each package using it must declare:
	//
	//	func TestHelperProcess(t *testing.T) { testutil.HelperProcess() }
	CommandRecorder struct {
		mu          sync.Mutex
		invocations []MockInvocation

		// Respond picks the response for an invocation. When nil, or when it
		// returns false, Default is used.
		Respond func(inv MockInvocation) (MockResponse, bool)
		// Default is the fallback response (success, no output).
		Default MockResponse
	}
)

// NewCommandRecorder returns a recorder whose processes succeed silently.
func NewCommandRecorder() *CommandRecorder {
	return &CommandRecorder{}
}

// CommandFunc returns a drop-in replacement for exec.CommandContext.
func (m *CommandRecorder) CommandFunc(t testing.TB) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	t.Helper()
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		inv := MockInvocation{Name: name, Args: slices.Clone(args)}

		m.mu.Lock()
		m.invocations = append(m.invocations, inv)
		m.mu.Unlock()

		resp := m.Default
		if m.Respond != nil {
			if r, ok := m.Respond(inv); ok {
				resp = r
			}
		}

		cs := append([]string{"-test.run=^TestHelperProcess$", "--", name}, args...)
		//nolint:gosec // re-executes the test binary
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = []string{
			helperEnv + "=1",
			"GO_HELPER_EXIT_CODE=" + strconv.Itoa(resp.ExitCode),
			"GO_HELPER_STDOUT=" + resp.Stdout,
			"GO_HELPER_STDERR=" + resp.Stderr,
		}
		return cmd
	}
}

// Invocations returns a copy of every recorded invocation.
func (m *CommandRecorder) Invocations() []MockInvocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.invocations)
}

// CommandLines renders each invocation as "name arg arg ...".
func (m *CommandRecorder) CommandLines() []string {
	invs := m.Invocations()
	lines := make([]string, len(invs))
	for i, inv := range invs {
		lines[i] = strings.Join(append([]string{inv.Name}, inv.Args...), " ")
	}
	return lines
}

// AssertInvocationCount verifies the number of processes started.
func (m *CommandRecorder) AssertInvocationCount(t testing.TB, expected int) {
	t.Helper()
	if got := len(m.Invocations()); got != expected {
		t.Errorf("expected %d invocations, got %d: %v", expected, got, m.CommandLines())
	}
}

// AssertCommandLines verifies the exact sequence of processes started.
func (m *CommandRecorder) AssertCommandLines(t testing.TB, expected ...string) {
	t.Helper()
	got := m.CommandLines()
	if !slices.Equal(got, expected) {
		t.Errorf("command lines mismatch\n got: %q\nwant: %q", got, expected)
	}
}

// HelperProcess is the body of TestHelperProcess. It does nothing unless
// the process was started by a CommandRecorder.
func HelperProcess() {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	if stderr := os.Getenv("GO_HELPER_STDERR"); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}

	code, _ := strconv.Atoi(os.Getenv("GO_HELPER_EXIT_CODE")) //nolint:errcheck // empty means success
	os.Exit(code)
}
