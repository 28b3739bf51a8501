// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"github.com/bureau-foundation/powerlog/lib/assertion"
	"github.com/bureau-foundation/powerlog/lib/procstats"
	"github.com/bureau-foundation/powerlog/lib/summary"
)

// SetDisplayAsleep records the display state used for release-delay
// decisions.
func (t *Tracker) SetDisplayAsleep(asleep bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.displayAsleep = asleep
}

// SetPower records the power source and refreshes the summary line.
func (t *Tracker) SetPower(power summary.PowerState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.power = power
	t.emitSummaryLocked()
}

// SetKernelBits records which kernel-level assertions are held. Only
// KernelCPU and KernelDisplay are kept.
func (t *Tracker) SetKernelBits(bits assertion.Bitmask) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.kernelBits = bits & (assertion.KernelCPU | assertion.KernelDisplay)
	t.emitSummaryLocked()
}

// State is a point-in-time view of the tracker.
type State struct {
	Processes     int                `cbor:"processes" json:"processes"`
	Assertions    int                `cbor:"assertions" json:"assertions"`
	DisplayAsleep bool               `cbor:"display_asleep" json:"display_asleep"`
	Power         summary.PowerState `cbor:"power" json:"power"`
	System        []string           `cbor:"system,omitempty" json:"system,omitempty"`
}

// State returns the current registry counters and environment.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		Processes:     len(t.processes),
		Assertions:    len(t.assertions),
		DisplayAsleep: t.displayAsleep,
		Power:         t.power,
		System:        t.systemBitsLocked().Names(),
	}
}

// LogAll writes a Summary line for every live assertion to the text
// log, oldest process first. EnableIdleSleep assertions are skipped:
// they are the absence of a hold, not a hold. It returns the number of
// lines written.
func (t *Tracker) LogAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.textLog == nil {
		return 0
	}
	now := t.clock.Now()

	live := make([]*entry, 0, len(t.assertions))
	for _, subject := range t.assertions {
		if subject.assertion.Kind != assertion.EnableIdleSleep {
			live = append(live, subject)
		}
	}
	sortEntries(live)

	written := 0
	for _, subject := range live {
		written += t.recordLocked(assertion.Summary, subject.assertion, now).TextLogged
	}
	return written
}

// Aggregate returns the per-process statistics snapshot. Processes
// that died or went idle since the previous snapshot appear once more
// and are then forgotten.
func (t *Tracker) Aggregate() (procstats.Aggregate, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	processes := make([]*assertion.Process, 0, len(t.processes)+len(t.retired))
	for _, owner := range t.processes {
		processes = append(processes, owner.process)
	}
	processes = append(processes, t.retired...)

	aggregate, err := t.aggregator.Snapshot(processes, now)
	if err != nil {
		return aggregate, err
	}

	t.pruneLocked()
	return aggregate, nil
}

// SetAggregation adjusts the aggregation reference count and reports
// whether aggregation is still enabled afterwards. Once nobody is
// collecting, dead and idle processes are forgotten.
func (t *Tracker) SetAggregation(enabled bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.aggregator.SetEnabled(enabled)
	if t.aggregator.Enabled() {
		return true
	}
	t.pruneLocked()
	return false
}

func (t *Tracker) pruneLocked() {
	t.retired = nil
	for pid, owner := range t.processes {
		if owner.live == 0 {
			delete(t.processes, pid)
		}
	}
}
