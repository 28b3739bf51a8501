// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package assertion defines the metadata powerlogd keeps about power
// assertions and the processes that own them.
//
// An assertion is a named, retain-counted request to hold the system
// in some power-relevant state (keep the display on, prevent idle
// sleep, and so on). Its lifecycle is a sequence of [Action]s: it is
// created, possibly retained or toggled, and finally released, timed
// out, or dropped when its owning process dies.
//
// The per-assertion [State] carries the sticky Logged bit that ties a
// creation event to its later release: once a creation was written to
// the text log, the matching release always is too, regardless of how
// short-lived the assertion was. The bit lives on the assertion rather
// than in any log so that it survives exactly as long as the assertion
// does.
package assertion
