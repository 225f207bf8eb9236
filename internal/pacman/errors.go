// SPDX-License-Identifier: MPL-2.0

package pacman

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when pacman reports an unknown target.
	ErrNotFound = errors.New("target not found")
	// ErrManagerMissing is returned when the pacman binary cannot be started.
	ErrManagerMissing = errors.New("package manager not found")
	// ErrEscalationMissing is returned when the escalation command (sudo,
	// doas) cannot be started.
	ErrEscalationMissing = errors.New("escalation command not found")
)

type (
	// CommandError is a pacman run that exited non-zero for a reason other
	// than an unknown target or a network problem.
	CommandError struct {
		Args     []string
		ExitCode int
		Stderr   string
		// Locked is set when the sync database lock was held by another process.
		Locked bool
	}

	// TransportError is a pacman run that failed to reach a mirror.
	TransportError struct {
		Args     []string
		ExitCode int
		Stderr   string
	}

	// NotFoundError names the targets pacman did not know. It matches ErrNotFound.
	NotFoundError struct {
		Targets []string
	}
)

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("pacman %s exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

// Transient is true only for database lock contention.
func (e *CommandError) Transient() bool { return e.Locked }

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("pacman %s could not reach a mirror", strings.Join(e.Args, " "))
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *TransportError) Transient() bool { return true }

func (e *NotFoundError) Error() string {
	if len(e.Targets) == 0 {
		return ErrNotFound.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNotFound, strings.Join(e.Targets, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ExitCode returns the process exit status carried by err, or -1.
func ExitCode(err error) int {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.ExitCode
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.ExitCode
	}
	if errors.Is(err, ErrNotFound) {
		return 1
	}
	return -1
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
