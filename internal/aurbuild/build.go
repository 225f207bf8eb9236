// SPDX-License-Identifier: MPL-2.0

package aurbuild

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Builder turns a recipe directory into an installed package.
	Builder interface {
		Build(ctx context.Context, pkg, dir string) error
	}

	// MakepkgBuilder runs makepkg inside the recipe directory. makepkg itself
	// asks for elevation when it installs the result.
	MakepkgBuilder struct {
		Command     string
		Flags       []string
		ExecCommand ExecCommandFunc
		Stdin       io.Reader
		Stdout      io.Writer
		Stderr      io.Writer
	}
)

// NewMakepkgBuilder returns a builder for command with flags, wired to the
// process's standard streams.
func NewMakepkgBuilder(command string, flags []string) *MakepkgBuilder {
	if command == "" {
		command = "makepkg"
	}
	return &MakepkgBuilder{
		Command:     command,
		Flags:       flags,
		ExecCommand: exec.CommandContext,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// Build runs the configured command in dir.
func (b *MakepkgBuilder) Build(ctx context.Context, pkg, dir string) error {
	slog.Debug("building package", "package", pkg, "dir", dir, "flags", b.Flags)

	cmd := b.ExecCommand(ctx, b.Command, b.Flags...)
	cmd.Dir = dir
	cmd.Stdin = b.Stdin
	cmd.Stdout = b.Stdout
	cmd.Stderr = b.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return &BuildError{Package: pkg, Err: ctx.Err()}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &BuildError{Package: pkg, ExitCode: exitErr.ExitCode(), Err: err}
	}
	return &BuildError{Package: pkg, Err: err}
}
