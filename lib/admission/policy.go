// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"time"

	"github.com/bureau-foundation/powerlog/lib/assertion"
)

const (
	// DefaultDisplayOnDelay is the minimum age for a release to reach
	// the text log while the display is on.
	DefaultDisplayOnDelay = 60 * time.Second

	// DefaultDisplayOffDelay is the same threshold while the display
	// is asleep, when even brief holds are worth surfacing.
	DefaultDisplayOffDelay = 10 * time.Second
)

// Policy holds the static admission configuration. The zero value is
// not useful; start from Default.
type Policy struct {
	// LogNameChanges admits NameChange events to both destinations.
	LogNameChanges bool

	// Synchronous bypasses the text-log timing rules so that every
	// non-excluded event is written as it happens.
	Synchronous bool

	DisplayOnDelay  time.Duration
	DisplayOffDelay time.Duration

	// TypeFlags is indexed by assertion kind. Kinds missing from the
	// map have no flags.
	TypeFlags map[assertion.Kind]assertion.TypeFlags
}

// Default returns the production policy.
func Default() Policy {
	return Policy{
		DisplayOnDelay:  DefaultDisplayOnDelay,
		DisplayOffDelay: DefaultDisplayOffDelay,
		TypeFlags:       assertion.DefaultTypeFlags(),
	}
}

// Delay returns the release delay for the current display state.
func (p Policy) Delay(displayAsleep bool) time.Duration {
	if displayAsleep {
		return p.DisplayOffDelay
	}
	return p.DisplayOnDelay
}

// ShouldRecordToRingBuffer reports whether a transition is eligible
// for the activity log. It does not consult timing: the ring buffer
// records every lifecycle step so a reader can reconstruct it.
func (p Policy) ShouldRecordToRingBuffer(action assertion.Action, subject *assertion.Assertion) bool {
	if subject.SkipsLogging() {
		return false
	}
	switch action {
	case assertion.Summary, assertion.CapExpiry:
		return false
	case assertion.NameChange:
		return p.LogNameChanges
	}
	return action.IsCreation() || action.IsRelease()
}

// ShouldRecordToTextLog reports whether a transition should be written
// to the human-readable log. Admitting a creation-class event marks
// subject Logged as a side effect.
func (p Policy) ShouldRecordToTextLog(action assertion.Action, subject *assertion.Assertion, now time.Time, displayAsleep bool) bool {
	if subject.SkipsLogging() {
		return false
	}
	if action == assertion.NameChange {
		return p.LogNameChanges
	}
	if p.Synchronous {
		return true
	}

	switch {
	case action.IsCreation():
		if p.TypeFlags[subject.Kind]&assertion.LogOnCreate == 0 {
			return false
		}
		subject.MarkLogged()
		return true

	case action.IsRelease():
		if subject.WasLogged() {
			return true
		}
		return subject.Age(now) >= p.Delay(displayAsleep)
	}

	// Summary and CapExpiry lines are always written.
	return true
}
