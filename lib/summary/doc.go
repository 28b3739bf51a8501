// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package summary writes the system-wide assertion summary line to the
// text log.
//
// A summary line names every assertion kind currently in effect and
// the power source:
//
//	Summary- [System: PrevIdle DeclUser kCPU] Using Batt(Charge: 83)
//
// [Emitter] suppresses repeats: a line is written only when the power
// source or the set of active kinds differs from the previous call.
// Battery charge alone never triggers a line. [Run] drives a separate
// periodic callback that the daemon uses to re-log every live
// assertion.
package summary
