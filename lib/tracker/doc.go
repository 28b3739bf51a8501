// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracker owns powerlogd's view of live assertions and runs
// every transition through the logging pipeline.
//
// Producers report transitions as [Event]s. For each one the tracker
// updates its registry (processes, assertions, retain counts, per
// process effect accounting), then asks the admission policy about
// each destination in turn:
//
//  1. The text log, a dedicated slog.Logger. Admitting a creation
//     event here marks the assertion Logged, which guarantees its
//     release is text-logged too.
//  2. The activity ring buffer (lib/activitylog).
//
// Finally the system-wide summary line is refreshed if the set of
// active kinds changed.
//
// Processes that die or release their last assertion are kept until
// the next per-process aggregate so their accumulated time is
// reported once.
package tracker
