// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for powerlog.
//
// Configuration is loaded from a single file specified by either the
// POWERLOG_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search. A daemon started without a config file runs on [Default].
//
// Files ending in .json or .jsonc are read as JSON with comments and
// trailing commas allowed; anything else is YAML. Both produce the
// same [Config].
//
// The file may contain environment-specific sections (development,
// production) that override base values when [Config].Environment
// matches. Production enables activity logging from startup and turns
// the debug switches off.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${XDG_RUNTIME_DIR}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// This package depends on no other powerlog packages. Assertion kind
// names and compression names are checked by the daemon when it
// builds its policy from the loaded values.
package config
