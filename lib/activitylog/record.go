// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package activitylog

import (
	"slices"
	"time"

	"github.com/bureau-foundation/powerlog/lib/assertion"
)

// Record is one logged transition. Records are values: once appended
// they are never modified, and readers receive copies.
//
// Records use json tags so the same type serves the CBOR wire format
// and the CLI's JSON output.
type Record struct {
	Time           time.Time        `json:"time"`
	Type           assertion.Kind   `json:"type"`
	Name           string           `json:"name,omitempty"`
	Action         assertion.Action `json:"action"`
	PID            int              `json:"pid"`
	RetainCount    int              `json:"retain_count"`
	GlobalUniqueID uint64           `json:"global_unique_id"`

	OnBehalfOfPID      int    `json:"on_behalf_of_pid,omitempty"`
	OnBehalfOfReason   string `json:"on_behalf_of_reason,omitempty"`
	OnBehalfOfBundleID string `json:"on_behalf_of_bundle_id,omitempty"`

	// CreatorBacktrace is only present on creation-class records.
	CreatorBacktrace []string `json:"creator_backtrace,omitempty"`
}

// NewRecord captures the state of subject for a transition at at.
// The backtrace is copied so later changes to subject cannot reach an
// appended record.
func NewRecord(action assertion.Action, subject *assertion.Assertion, at time.Time) Record {
	record := Record{
		Time:               at,
		Type:               subject.Kind,
		Name:               subject.Name,
		Action:             action,
		PID:                subject.PID(),
		RetainCount:        subject.RetainCount,
		GlobalUniqueID:     subject.GlobalUniqueID,
		OnBehalfOfPID:      subject.OnBehalfOfPID,
		OnBehalfOfReason:   subject.OnBehalfOfReason,
		OnBehalfOfBundleID: subject.OnBehalfOfBundleID,
	}
	if action.CarriesBacktrace() && len(subject.Backtrace) > 0 {
		record.CreatorBacktrace = slices.Clone(subject.Backtrace)
	}
	return record
}
