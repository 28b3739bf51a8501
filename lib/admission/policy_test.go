// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package admission

import (
	"testing"
	"time"

	"github.com/bureau-foundation/powerlog/lib/assertion"
)

var createdAt = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func newAssertion(kind assertion.Kind) *assertion.Assertion {
	return &assertion.Assertion{
		ID:        1,
		Kind:      kind,
		Name:      "com.example.download",
		CreatedAt: createdAt,
		Process:   &assertion.Process{PID: 300},
	}
}

func TestRingBufferAdmission(t *testing.T) {
	t.Parallel()
	policy := Default()
	subject := newAssertion(assertion.BackgroundTask)

	for _, action := range []assertion.Action{
		assertion.Create, assertion.Retain, assertion.TurnOn,
		assertion.Release, assertion.ClientDeath, assertion.Timeout, assertion.TurnOff,
	} {
		if !policy.ShouldRecordToRingBuffer(action, subject) {
			t.Errorf("%s not admitted to ring buffer", action)
		}
	}
	for _, action := range []assertion.Action{assertion.Summary, assertion.CapExpiry, assertion.NameChange} {
		if policy.ShouldRecordToRingBuffer(action, subject) {
			t.Errorf("%s admitted to ring buffer", action)
		}
	}

	policy.LogNameChanges = true
	if !policy.ShouldRecordToRingBuffer(assertion.NameChange, subject) {
		t.Error("NameChange not admitted with LogNameChanges")
	}

	subject.State |= assertion.SkipLogging
	if policy.ShouldRecordToRingBuffer(assertion.Create, subject) {
		t.Error("SkipLogging assertion admitted to ring buffer")
	}
}

func TestReleaseBelowDisplayOnThresholdNotAdmitted(t *testing.T) {
	t.Parallel()
	policy := Default()
	subject := newAssertion(assertion.BackgroundTask)

	if policy.ShouldRecordToTextLog(assertion.Create, subject, createdAt, false) {
		t.Fatal("Create admitted for a kind without LogOnCreate")
	}
	if subject.WasLogged() {
		t.Fatal("rejected Create marked the assertion Logged")
	}
	if policy.ShouldRecordToTextLog(assertion.Release, subject, createdAt.Add(5*time.Second), false) {
		t.Error("Release after 5s with display awake was admitted")
	}
}

func TestReleaseAboveDisplayOffThresholdAdmitted(t *testing.T) {
	t.Parallel()
	policy := Default()
	subject := newAssertion(assertion.BackgroundTask)

	policy.ShouldRecordToTextLog(assertion.Create, subject, createdAt, true)
	if !policy.ShouldRecordToTextLog(assertion.Release, subject, createdAt.Add(11*time.Second), true) {
		t.Error("Release after 11s with display asleep was not admitted")
	}
}

func TestReleaseThresholdBoundaries(t *testing.T) {
	t.Parallel()
	policy := Default()

	tests := []struct {
		name   string
		age    time.Duration
		asleep bool
		want   bool
	}{
		{"awake just under", 59 * time.Second, false, false},
		{"awake at threshold", 60 * time.Second, false, true},
		{"asleep just under", 9 * time.Second, true, false},
		{"asleep at threshold", 10 * time.Second, true, true},
		{"asleep long", time.Hour, true, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			subject := newAssertion(assertion.PushServiceTask)
			got := policy.ShouldRecordToTextLog(assertion.Timeout, subject, createdAt.Add(test.age), test.asleep)
			if got != test.want {
				t.Errorf("admitted = %v, want %v", got, test.want)
			}
		})
	}
}

func TestLogOnCreateMarksStickyAndAdmitsRelease(t *testing.T) {
	t.Parallel()
	policy := Default()
	subject := newAssertion(assertion.PreventSystemSleep)

	if !policy.ShouldRecordToTextLog(assertion.Create, subject, createdAt, false) {
		t.Fatal("Create not admitted for a LogOnCreate kind")
	}
	if !subject.WasLogged() {
		t.Fatal("admitted Create did not mark the assertion Logged")
	}
	// One second later, well under any delay.
	if !policy.ShouldRecordToTextLog(assertion.ClientDeath, subject, createdAt.Add(time.Second), false) {
		t.Error("release of a Logged assertion was not admitted")
	}
}

func TestNameChangeRequiresDebugFlag(t *testing.T) {
	t.Parallel()
	policy := Default()
	policy.Synchronous = true
	subject := newAssertion(assertion.PreventSystemSleep)
	subject.MarkLogged()

	if policy.ShouldRecordToTextLog(assertion.NameChange, subject, createdAt.Add(time.Hour), false) {
		t.Error("NameChange admitted without LogNameChanges")
	}
	policy.LogNameChanges = true
	if !policy.ShouldRecordToTextLog(assertion.NameChange, subject, createdAt, false) {
		t.Error("NameChange rejected with LogNameChanges")
	}
}

func TestSynchronousAdmitsEverything(t *testing.T) {
	t.Parallel()
	policy := Default()
	policy.Synchronous = true
	subject := newAssertion(assertion.BackgroundTask)

	if !policy.ShouldRecordToTextLog(assertion.Create, subject, createdAt, false) {
		t.Error("Create rejected in synchronous mode")
	}
	if !policy.ShouldRecordToTextLog(assertion.Release, subject, createdAt, false) {
		t.Error("Release rejected in synchronous mode")
	}
}

func TestSkipLoggingExcludesTextLog(t *testing.T) {
	t.Parallel()
	policy := Default()
	policy.Synchronous = true
	subject := newAssertion(assertion.PreventSystemSleep)
	subject.State = assertion.SkipLogging

	if policy.ShouldRecordToTextLog(assertion.Create, subject, createdAt, false) {
		t.Error("SkipLogging assertion admitted to text log")
	}
	if subject.WasLogged() {
		t.Error("SkipLogging assertion marked Logged")
	}
}

func TestSummaryAlwaysTextLogged(t *testing.T) {
	t.Parallel()
	policy := Default()
	subject := newAssertion(assertion.BackgroundTask)
	if !policy.ShouldRecordToTextLog(assertion.Summary, subject, createdAt, false) {
		t.Error("Summary not admitted to text log")
	}
}
