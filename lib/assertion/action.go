// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assertion

import "fmt"

// Action is a lifecycle transition of an assertion.
type Action uint8

const (
	Create Action = iota
	Retain
	TurnOn
	Release
	ClientDeath
	Timeout
	TurnOff
	Summary
	NameChange
	CapExpiry
)

var actionNames = [...]string{
	Create:      "Created",
	Retain:      "Retain",
	TurnOn:      "TurnedOn",
	Release:     "Released",
	ClientDeath: "ClientDied",
	Timeout:     "TimedOut",
	TurnOff:     "TurnedOff",
	Summary:     "Summary",
	NameChange:  "NameChange",
	CapExpiry:   "CapExpired",
}

// String returns the action name as it appears in logs and records.
func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("Action(%d)", uint8(a))
}

// ParseAction accepts an action name as produced by String.
func ParseAction(name string) (Action, error) {
	for action, actionName := range actionNames {
		if actionName == name {
			return Action(action), nil
		}
	}
	return 0, fmt.Errorf("unknown assertion action %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	if int(a) >= len(actionNames) {
		return nil, fmt.Errorf("cannot marshal unknown assertion action %d", uint8(a))
	}
	return []byte(actionNames[a]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IsCreation reports whether the action brings an assertion into
// effect: Create, Retain, and TurnOn.
func (a Action) IsCreation() bool {
	return a == Create || a == Retain || a == TurnOn
}

// IsRelease reports whether the action takes an assertion out of
// effect: Release, ClientDeath, Timeout, and TurnOff.
func (a Action) IsRelease() bool {
	switch a {
	case Release, ClientDeath, Timeout, TurnOff:
		return true
	}
	return false
}

// CarriesBacktrace reports whether records of this action include the
// creator backtrace. Only the creation class does.
func (a Action) CarriesBacktrace() bool {
	return a.IsCreation()
}
