// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assertion

import (
	"fmt"
	"time"
)

// Effect is the accounting bucket an assertion's time is charged to.
type Effect uint8

const (
	NoEffect Effect = iota
	PreventIdleSleepEffect
	PreventDemandSleepEffect
	PreventDisplaySleepEffect

	// NumEffects is the number of effect buckets. Per-process report
	// buffers hold one value per bucket, in this order.
	NumEffects
)

var effectNames = [NumEffects]string{
	NoEffect:                  "NoEffect",
	PreventIdleSleepEffect:    "PreventIdleSleep",
	PreventDemandSleepEffect:  "PreventDemandSleep",
	PreventDisplaySleepEffect: "PreventDisplaySleep",
}

func (e Effect) String() string {
	if e < NumEffects {
		return effectNames[e]
	}
	return fmt.Sprintf("Effect(%d)", uint8(e))
}

// EffectStats tracks how many of a process's assertions currently
// have one effect, and when the current accounting window started.
type EffectStats struct {
	Count     int
	StartTime time.Time
}

// Process is an assertion-owning process.
type Process struct {
	PID  int
	Name string

	// CreateSequence is assigned once when the process is first seen
	// and never reused. It gives processes a total order independent
	// of map iteration or PID reuse.
	CreateSequence uint64

	Stats [NumEffects]EffectStats

	// Report accumulates assertion time per effect across aggregate
	// snapshots.
	Report [NumEffects]time.Duration
}

// Hold charges one more assertion of effect to the process. The
// accounting window for an effect starts when its count leaves zero.
func (p *Process) Hold(effect Effect, now time.Time) {
	stats := &p.Stats[effect]
	if stats.Count == 0 {
		stats.StartTime = now
	}
	stats.Count++
}

// Drop removes one assertion of effect. When the count returns to
// zero the elapsed window is folded into the report so no time is
// lost between snapshots.
func (p *Process) Drop(effect Effect, now time.Time) {
	stats := &p.Stats[effect]
	if stats.Count == 0 {
		return
	}
	stats.Count--
	if stats.Count == 0 {
		p.Report[effect] += now.Sub(stats.StartTime)
		stats.StartTime = now
	}
}
