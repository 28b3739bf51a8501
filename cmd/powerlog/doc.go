// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Powerlog is the command-line client for powerlogd.
//
// The activity command is the privileged reader: it drains the
// daemon's activity log past a cursor kept in a small YAML state file,
// optionally following the log as it grows. The remaining commands
// toggle logging and aggregation, show daemon status and per-process
// aggregates, and inject producer events for testing.
package main
