// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assertion

import (
	"fmt"
	"strings"
	"time"
)

// State is the per-assertion bookkeeping bit set.
type State uint32

const (
	// SkipLogging excludes the assertion from every log. Producers
	// set it for assertions that are themselves part of logging.
	SkipLogging State = 1 << iota

	// Logged is set when a creation-class event of the assertion was
	// written to the text log. It is never cleared.
	Logged
)

// Qualifiers are optional resource hints an assertion declares.
type Qualifiers uint32

const (
	AudioIn Qualifiers = 1 << iota
	AudioOut
	GPS
	Baseband
	Bluetooth
	AllowsDeviceRestart
	BudgetedActivity
)

var qualifierNames = []struct {
	bit  Qualifiers
	name string
}{
	{AudioIn, "AudioIn"},
	{AudioOut, "AudioOut"},
	{GPS, "GPS"},
	{Baseband, "Baseband"},
	{Bluetooth, "Bluetooth"},
	{AllowsDeviceRestart, "AllowsDeviceRestart"},
	{BudgetedActivity, "BudgetedActivity"},
}

// String renders the set as "[Qualifiers: AudioIn GPS]", or "" when
// empty.
func (q Qualifiers) String() string {
	if q == 0 {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("[Qualifiers:")
	for _, entry := range qualifierNames {
		if q&entry.bit != 0 {
			builder.WriteString(" ")
			builder.WriteString(entry.name)
		}
	}
	builder.WriteString("]")
	return builder.String()
}

// ParseQualifiers converts qualifier names, as shown by String, into
// a set.
func ParseQualifiers(names []string) (Qualifiers, error) {
	var set Qualifiers
	for _, name := range names {
		found := false
		for _, entry := range qualifierNames {
			if strings.EqualFold(entry.name, name) {
				set |= entry.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown qualifier %q", name)
		}
	}
	return set, nil
}

// Assertion is one live assertion instance.
type Assertion struct {
	// ID identifies the assertion within its owning daemon.
	ID uint64

	// GlobalUniqueID correlates every event of this instance across
	// its lifetime, including in records handed to readers.
	GlobalUniqueID uint64

	Kind    Kind
	Name    string
	Process *Process

	RetainCount int
	CreatedAt   time.Time
	State       State
	Qualifiers  Qualifiers

	// On-behalf-of fields are set when a daemon holds the assertion
	// for another process.
	OnBehalfOfPID      int
	OnBehalfOfReason   string
	OnBehalfOfBundleID string

	// Backtrace is the creator's symbolicated call stack, if the
	// producer captured one.
	Backtrace []string
}

// Type returns the assertion type name.
func (a *Assertion) Type() string {
	return a.Kind.String()
}

// SkipsLogging reports whether the assertion is excluded from logs.
func (a *Assertion) SkipsLogging() bool {
	return a.State&SkipLogging != 0
}

// WasLogged reports whether a creation-class event was text-logged.
func (a *Assertion) WasLogged() bool {
	return a.State&Logged != 0
}

// MarkLogged sets the sticky Logged bit.
func (a *Assertion) MarkLogged() {
	a.State |= Logged
}

// Age returns how long the assertion has existed at now.
func (a *Assertion) Age(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}

// PID returns the owning process id, or 0 when the owner is unknown.
func (a *Assertion) PID() int {
	if a.Process == nil {
		return 0
	}
	return a.Process.PID
}
