// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package admission decides which assertion transitions are worth
// recording.
//
// There are two destinations with separate rules. The activity ring
// buffer (lib/activitylog) takes every lifecycle transition except
// summaries, cap expiries, and name changes (the last only under a
// debug flag). The text log is stricter: it exists for humans, so it
// filters out short-lived assertions that would flood it.
//
// Text-log rules for an assertion that is not excluded outright:
//
//   - Creation class (Create, Retain, TurnOn): admitted only if the
//     assertion's kind is configured LogOnCreate. Admission marks the
//     assertion Logged.
//   - Release class (Release, ClientDeath, Timeout, TurnOff): admitted
//     if the assertion is marked Logged, or if it has existed for at
//     least the release delay: 10 seconds while the display is asleep
//     and 60 seconds while it is on.
//
// A Logged assertion therefore always produces a matching release
// line, and an assertion that was never interesting enough to log on
// creation only appears once it has held the system long enough to
// matter.
package admission
