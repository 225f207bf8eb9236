// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/archpkg/archpkg/internal/issue"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "archpkg"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// HoldListFileName is the default hold-list file inside ConfigDir.
	HoldListFileName = "holdlist"
	// EnvPrefix prefixes every environment override (ARCHPKG_AUR_TIMEOUT=...).
	EnvPrefix = "ARCHPKG"

	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns $XDG_CONFIG_HOME/archpkg, falling back to ~/.config/archpkg.
//
//nolint:revive // ConfigDir reads better than Dir at call sites
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// FilePath returns the config file Load would read for opts, whether or not
// it exists.
func FilePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		return opts.ConfigFilePath, nil
	}
	dir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

// HoldListPath resolves the hold-list location: the configured path when set,
// otherwise HoldListFileName inside the config directory.
func (c *Config) HoldListPath(opts LoadOptions) (string, error) {
	if c.HoldList.Path != "" {
		return expandHome(c.HoldList.Path)
	}
	dir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HoldListFileName), nil
}

// loadWithOptions builds a fresh viper instance, layers defaults, the CUE
// file and ARCHPKG_* environment variables, and decodes the result.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := FilePath(opts)
	if err != nil {
		return nil, "", err
	}

	resolvedPath := ""
	switch {
	case fileExists(path):
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Run 'archpkg config dump' to compare with the defaults").
				Wrap(err).
				BuildError()
		}
		resolvedPath = path
	case opts.ConfigFilePath != "":
		// An explicit --config must exist; the default location may not.
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Run 'archpkg config init' to create a default file").
			Wrap(fmt.Errorf("config file not found: %s", path)).
			BuildError()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check ARCHPKG_* environment variables for empty or malformed values").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("pacman.binary", d.Pacman.Binary)
	v.SetDefault("pacman.escalation", d.Pacman.Escalation)
	v.SetDefault("aur.rpc_url", d.AUR.RPCURL)
	v.SetDefault("aur.clone_url", d.AUR.CloneURL)
	v.SetDefault("aur.timeout", d.AUR.Timeout)
	v.SetDefault("aur.retry.attempts", d.AUR.Retry.Attempts)
	v.SetDefault("aur.retry.backoff", d.AUR.Retry.Backoff)
	v.SetDefault("build.command", d.Build.Command)
	v.SetDefault("build.flags", d.Build.Flags)
	v.SetDefault("build.workspace_root", d.Build.WorkspaceRoot)
	v.SetDefault("hold_list.path", d.HoldList.Path)
	v.SetDefault("ui.color_scheme", string(d.UI.ColorScheme))
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper validates the file against #Config and merges it over the
// defaults. Fields are optional, hence Concrete(false).
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d exceeds limit of %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to the resolved path.
// An existing file is left untouched unless force is set. It returns the
// path written (or found).
func CreateDefaultConfig(opts LoadOptions, force bool) (string, bool, error) {
	path, err := FilePath(opts)
	if err != nil {
		return "", false, err
	}
	if fileExists(path) && !force {
		return path, false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}
	return path, true, nil
}

// GenerateCUE renders cfg as a config file that validates against #Config.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// archpkg configuration file\n")
	sb.WriteString("// Environment variables override any value: ARCHPKG_AUR_TIMEOUT=1m\n\n")

	sb.WriteString("pacman: {\n")
	fmt.Fprintf(&sb, "\tbinary:     %q\n", cfg.Pacman.Binary)
	fmt.Fprintf(&sb, "\tescalation: %q\n", cfg.Pacman.Escalation)
	sb.WriteString("}\n")

	sb.WriteString("\naur: {\n")
	fmt.Fprintf(&sb, "\trpc_url:   %q\n", cfg.AUR.RPCURL)
	fmt.Fprintf(&sb, "\tclone_url: %q\n", cfg.AUR.CloneURL)
	fmt.Fprintf(&sb, "\ttimeout:   %q\n", cfg.AUR.Timeout.String())
	sb.WriteString("\tretry: {\n")
	fmt.Fprintf(&sb, "\t\tattempts: %d\n", cfg.AUR.Retry.Attempts)
	fmt.Fprintf(&sb, "\t\tbackoff:  %q\n", cfg.AUR.Retry.Backoff.String())
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")

	sb.WriteString("\nbuild: {\n")
	fmt.Fprintf(&sb, "\tcommand: %q\n", cfg.Build.Command)
	quoted := make([]string, len(cfg.Build.Flags))
	for i, f := range cfg.Build.Flags {
		quoted[i] = fmt.Sprintf("%q", f)
	}
	fmt.Fprintf(&sb, "\tflags: [%s]\n", strings.Join(quoted, ", "))
	if cfg.Build.WorkspaceRoot != "" {
		fmt.Fprintf(&sb, "\tworkspace_root: %q\n", cfg.Build.WorkspaceRoot)
	}
	sb.WriteString("}\n")

	if cfg.HoldList.Path != "" {
		sb.WriteString("\nhold_list: {\n")
		fmt.Fprintf(&sb, "\tpath: %q\n", cfg.HoldList.Path)
		sb.WriteString("}\n")
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tcolor_scheme: %q\n", cfg.UI.ColorScheme)
	fmt.Fprintf(&sb, "\tverbose:      %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}
