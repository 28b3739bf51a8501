// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"errors"

	"github.com/bureau-foundation/powerlog/lib/assertion"
)

var (
	// ErrUnknownAssertion is returned for a transition on an
	// assertion the tracker has no record of.
	ErrUnknownAssertion = errors.New("unknown assertion")

	// ErrDuplicateAssertion is returned when a Create reuses the id
	// of a live assertion of the same process.
	ErrDuplicateAssertion = errors.New("assertion already exists")

	// ErrInvalidEvent is returned for events that are malformed
	// independent of tracker state.
	ErrInvalidEvent = errors.New("invalid assertion event")
)

// Event is one transition reported by a producer. Only Action, PID,
// and AssertionID are required for transitions after Create;
// ClientDeath needs only PID.
type Event struct {
	Action assertion.Action `cbor:"action" json:"action"`

	PID         int    `cbor:"pid" json:"pid"`
	ProcessName string `cbor:"process_name,omitempty" json:"process_name,omitempty"`

	// AssertionID is the producer's id for the assertion, unique
	// within its process while the assertion is live.
	AssertionID uint64 `cbor:"assertion_id" json:"assertion_id"`

	Kind assertion.Kind `cbor:"kind" json:"kind"`

	// Name is the assertion name on Create and the new name on
	// NameChange.
	Name string `cbor:"name,omitempty" json:"name,omitempty"`

	Qualifiers  []string `cbor:"qualifiers,omitempty" json:"qualifiers,omitempty"`
	SkipLogging bool     `cbor:"skip_logging,omitempty" json:"skip_logging,omitempty"`

	OnBehalfOfPID      int    `cbor:"on_behalf_of_pid,omitempty" json:"on_behalf_of_pid,omitempty"`
	OnBehalfOfReason   string `cbor:"on_behalf_of_reason,omitempty" json:"on_behalf_of_reason,omitempty"`
	OnBehalfOfBundleID string `cbor:"on_behalf_of_bundle_id,omitempty" json:"on_behalf_of_bundle_id,omitempty"`

	Backtrace []string `cbor:"backtrace,omitempty" json:"backtrace,omitempty"`
}

// Outcome reports what happened to the records of one event. An event
// that affects several assertions (ClientDeath) counts each.
type Outcome struct {
	// TextLogged counts lines written to the text log.
	TextLogged int `cbor:"text_logged" json:"text_logged"`

	// Recorded counts records admitted to the activity log.
	Recorded int `cbor:"recorded" json:"recorded"`

	// Dropped counts admitted records the activity log refused
	// because logging was disabled.
	Dropped int `cbor:"dropped" json:"dropped"`
}

func (o *Outcome) add(other Outcome) {
	o.TextLogged += other.TextLogged
	o.Recorded += other.Recorded
	o.Dropped += other.Dropped
}
