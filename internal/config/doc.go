// SPDX-License-Identifier: MPL-2.0

// Package config loads archpkg settings with Viper, using CUE as the file format.
//
// The file lives at $XDG_CONFIG_HOME/archpkg/config.cue (~/.config/archpkg/config.cue
// when XDG_CONFIG_HOME is unset) and is validated against the embedded
// config_schema.cue before being merged over the built-in defaults. Every key can
// be overridden from the environment with the ARCHPKG_ prefix, dots replaced by
// underscores (ARCHPKG_AUR_RETRY_ATTEMPTS=5).
package config
