// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the powerlog
// binary: a tree of [Command] values with pflag flag sets, typo
// suggestions for unknown commands and flags, terminal-aware output
// helpers, and [ExitError] for commands whose non-zero exit is an
// expected result.
package cli
