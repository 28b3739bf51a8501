// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package procstats reports how long each process has held assertions
// of each effect since the previous report.
//
// Every [assertion.Process] carries, per effect, a live count of
// assertions and the start of the current accounting window. A
// [Aggregator.Snapshot] closes every open window at the snapshot time,
// folds it into the process's report buffer, and reopens the window at
// the same instant, so consecutive snapshots partition time without
// gaps or overlap.
package procstats
