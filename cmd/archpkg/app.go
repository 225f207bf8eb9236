// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/archpkg/archpkg/internal/aur"
	"github.com/archpkg/archpkg/internal/aurbuild"
	"github.com/archpkg/archpkg/internal/config"
	"github.com/archpkg/archpkg/internal/holdlist"
	"github.com/archpkg/archpkg/internal/pacman"
	"github.com/archpkg/archpkg/internal/resolver"
	"github.com/archpkg/archpkg/internal/retry"
)

type (
	// App is the composition root for the CLI layer. Services are built by
	// load once configuration is known; command handlers only read them.
	App struct {
		deps Dependencies

		Config   *config.Config
		LoadOpts config.LoadOptions
		Verbose  bool

		Pacman    *pacman.Client
		AUR       *aur.Client
		Installer *aurbuild.Installer
		Holds     *holdlist.List
		Resolver  *resolver.Resolver

		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config      config.Provider
		ExecCommand pacman.ExecCommandFunc
		HTTPClient  *http.Client
		Cloner      aurbuild.Cloner
		// Identity overrides the effective user; nil reads the process's.
		Identity *resolver.Identity
		Stdin    io.Reader
		Stdout   io.Writer
		Stderr   io.Writer
	}
)

// NewApp fills in production defaults for nil dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return &App{
		deps:   deps,
		stdin:  deps.Stdin,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// load reads configuration and builds every service from it.
func (a *App) load(ctx context.Context, opts config.LoadOptions, verboseFlag bool) error {
	cfg, err := a.deps.Config.Load(ctx, opts)
	if err != nil {
		setupLogging(a.stderr, verboseFlag)
		return err
	}
	a.Config = cfg
	a.LoadOpts = opts
	a.Verbose = verboseFlag || cfg.UI.Verbose
	setupLogging(a.stderr, a.Verbose)

	identity := resolver.CurrentIdentity()
	if a.deps.Identity != nil {
		identity = *a.deps.Identity
	}

	pacmanOpts := []pacman.Option{
		pacman.WithBinary(cfg.Pacman.Binary),
		pacman.WithEscalation(cfg.Pacman.Escalation),
		pacman.WithRoot(identity.IsSuperuser()),
		pacman.WithIO(a.stdin, a.stdout, a.stderr),
	}
	if a.deps.ExecCommand != nil {
		pacmanOpts = append(pacmanOpts, pacman.WithExecCommand(a.deps.ExecCommand))
	}
	a.Pacman = pacman.NewClient(pacmanOpts...)

	aurOpts := []aur.ClientOption{
		aur.WithBaseURL(cfg.AUR.RPCURL),
		aur.WithCloneURL(cfg.AUR.CloneURL),
		aur.WithTimeout(cfg.AUR.Timeout),
		aur.WithUserAgent("archpkg/" + Version),
	}
	if a.deps.HTTPClient != nil {
		aurOpts = append(aurOpts, aur.WithHTTPClient(a.deps.HTTPClient))
	}
	a.AUR = aur.NewClient(aurOpts...)

	cloner := a.deps.Cloner
	if cloner == nil {
		cloner = &aurbuild.GitCloner{Progress: a.stderr}
	}
	builder := aurbuild.NewMakepkgBuilder(cfg.Build.Command, cfg.Build.Flags)
	builder.Stdin, builder.Stdout, builder.Stderr = a.stdin, a.stdout, a.stderr
	if a.deps.ExecCommand != nil {
		builder.ExecCommand = aurbuild.ExecCommandFunc(a.deps.ExecCommand)
	}
	a.Installer = aurbuild.NewInstaller(a.AUR, cloner, builder,
		aurbuild.WithWorkspaceRoot(cfg.Build.WorkspaceRoot))

	holdPath, err := cfg.HoldListPath(opts)
	if err != nil {
		return err
	}
	a.Holds = holdlist.Open(holdPath)

	a.Resolver = resolver.New(a.Pacman, a.Installer,
		resolver.WithIdentity(identity),
		resolver.WithHoldList(a.Holds),
		resolver.WithRetry(retry.Policy{
			Attempts: cfg.AUR.Retry.Attempts,
			Backoff:  cfg.AUR.Retry.Backoff,
		}),
	)
	return nil
}
