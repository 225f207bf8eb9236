// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/archpkg/archpkg/internal/retry"
)

const (
	// ColorSchemeAuto detects the terminal background.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces the dark palette.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces the light palette.
	ColorSchemeLight ColorScheme = "light"

	// DefaultRPCURL is the AUR RPC v5 endpoint.
	DefaultRPCURL = "https://aur.archlinux.org/rpc/"
	// DefaultCloneURL is the base of every AUR recipe repository.
	DefaultCloneURL = "https://aur.archlinux.org"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme selects the glamour style used for issue pages.
	ColorScheme string

	// InvalidConfigError lists every field that failed validation.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config is the root of the archpkg configuration.
	Config struct {
		Pacman   PacmanConfig   `json:"pacman" mapstructure:"pacman"`
		AUR      AURConfig      `json:"aur" mapstructure:"aur"`
		Build    BuildConfig    `json:"build" mapstructure:"build"`
		HoldList HoldListConfig `json:"hold_list" mapstructure:"hold_list"`
		UI       UIConfig       `json:"ui" mapstructure:"ui"`
	}

	// PacmanConfig controls how the official package manager is invoked.
	PacmanConfig struct {
		Binary     string `json:"binary" mapstructure:"binary"`
		Escalation string `json:"escalation" mapstructure:"escalation"`
	}

	// AURConfig points at the AUR RPC interface and recipe repositories.
	AURConfig struct {
		RPCURL   string        `json:"rpc_url" mapstructure:"rpc_url"`
		CloneURL string        `json:"clone_url" mapstructure:"clone_url"`
		Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
		Retry    RetryConfig   `json:"retry" mapstructure:"retry"`
	}

	// RetryConfig bounds retries of transient failures.
	RetryConfig struct {
		Attempts int           `json:"attempts" mapstructure:"attempts"`
		Backoff  time.Duration `json:"backoff" mapstructure:"backoff"`
	}

	// BuildConfig controls the makepkg step of AUR installs.
	BuildConfig struct {
		Command       string   `json:"command" mapstructure:"command"`
		Flags         []string `json:"flags" mapstructure:"flags"`
		WorkspaceRoot string   `json:"workspace_root" mapstructure:"workspace_root"`
	}

	// HoldListConfig locates the hold-list file.
	HoldListConfig struct {
		Path string `json:"path" mapstructure:"path"`
	}

	// UIConfig holds presentation settings.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		Verbose     bool        `json:"verbose" mapstructure:"verbose"`
	}
)

// Validate returns nil for the three known schemes.
func (c ColorScheme) Validate() error {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return nil
	default:
		return fmt.Errorf("%w: %q (valid: auto, dark, light)", ErrInvalidColorScheme, string(c))
	}
}

// GlamourStyle maps the scheme to a glamour standard style name.
func (c ColorScheme) GlamourStyle() string {
	switch c {
	case ColorSchemeDark:
		return "dark"
	case ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, fe := range e.FieldErrors {
		msgs[i] = fe.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks the constraints the CUE schema cannot see once env
// overrides have been applied.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Pacman.Binary) == "" {
		errs = append(errs, errors.New("pacman.binary must not be empty"))
	}
	if c.AUR.RPCURL == "" {
		errs = append(errs, errors.New("aur.rpc_url must not be empty"))
	}
	if c.AUR.CloneURL == "" {
		errs = append(errs, errors.New("aur.clone_url must not be empty"))
	}
	if c.AUR.Retry.Attempts < 1 || c.AUR.Retry.Attempts > retry.MaxAttempts {
		errs = append(errs, fmt.Errorf("aur.retry.attempts must be between 1 and %d, got %d", retry.MaxAttempts, c.AUR.Retry.Attempts))
	}
	if c.AUR.Retry.Backoff < 0 || c.AUR.Timeout < 0 {
		errs = append(errs, errors.New("aur durations must not be negative"))
	}
	if strings.TrimSpace(c.Build.Command) == "" {
		errs = append(errs, errors.New("build.command must not be empty"))
	}
	if err := c.UI.ColorScheme.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Pacman: PacmanConfig{
			Binary:     "pacman",
			Escalation: "sudo",
		},
		AUR: AURConfig{
			RPCURL:   DefaultRPCURL,
			CloneURL: DefaultCloneURL,
			Timeout:  30 * time.Second,
			Retry: RetryConfig{
				Attempts: 3,
				Backoff:  500 * time.Millisecond,
			},
		},
		Build: BuildConfig{
			Command:       "makepkg",
			Flags:         []string{"-si", "--noconfirm"},
			WorkspaceRoot: "", // os.TempDir()
		},
		HoldList: HoldListConfig{
			Path: "", // <ConfigDir>/holdlist
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}
