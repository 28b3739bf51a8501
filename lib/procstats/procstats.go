// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procstats

import (
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/powerlog/lib/assertion"
)

// ErrNotOpen is returned by Snapshot when aggregation has never been
// enabled.
var ErrNotOpen = errors.New("assertion aggregation not enabled")

// Fixed labels identifying the aggregate to consumers.
const (
	Group    = "Power Management"
	Subgroup = "Power Assertions"
	Unit     = "s"
)

// Channel is one process's accumulated time per effect.
type Channel struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`

	// Durations is indexed by assertion.Effect.
	Durations [assertion.NumEffects]time.Duration `json:"durations"`
}

// Aggregate is a per-process report in process creation order.
type Aggregate struct {
	Provider string    `json:"provider"`
	Group    string    `json:"group"`
	Subgroup string    `json:"subgroup"`
	Unit     string    `json:"unit"`
	Time     time.Time `json:"time"`
	Channels []Channel `json:"channels"`
}

// Aggregator produces Aggregates. It holds no process state itself;
// the caller owns the processes and serializes Snapshot against any
// other mutation of them.
type Aggregator struct {
	provider string
	logger   *slog.Logger

	mu          sync.Mutex
	enableCount uint32
	everEnabled bool
}

// New returns a disabled Aggregator. provider names the producer in
// every Aggregate.
func New(provider string, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{provider: provider, logger: logger}
}

// SetEnabled adjusts the aggregation reference count. Disabling at
// zero is a no-op.
func (a *Aggregator) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if enabled {
		a.enableCount++
		a.everEnabled = true
	} else if a.enableCount > 0 {
		a.enableCount--
	}
}

// Enabled reports whether the reference count is positive.
func (a *Aggregator) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enableCount > 0
}

// Snapshot closes the accounting window of every effect of every
// process at now and returns the accumulated report buffers, ordered
// by ascending CreateSequence. The processes slice itself is not
// reordered.
//
// Once aggregation has been enabled, snapshots keep working after it
// is disabled again so that a consumer can collect the final report.
func (a *Aggregator) Snapshot(processes []*assertion.Process, now time.Time) (Aggregate, error) {
	a.mu.Lock()
	everEnabled := a.everEnabled
	a.mu.Unlock()

	if !everEnabled {
		a.logger.Warn("aggregate requested before aggregation was enabled")
		return Aggregate{}, ErrNotOpen
	}

	sorted := slices.Clone(processes)
	slices.SortStableFunc(sorted, func(x, y *assertion.Process) int {
		switch {
		case x.CreateSequence < y.CreateSequence:
			return -1
		case x.CreateSequence > y.CreateSequence:
			return 1
		}
		return 0
	})

	aggregate := Aggregate{
		Provider: a.provider,
		Group:    Group,
		Subgroup: Subgroup,
		Unit:     Unit,
		Time:     now,
		Channels: make([]Channel, 0, len(sorted)),
	}
	for _, process := range sorted {
		for effect := range assertion.NumEffects {
			stats := &process.Stats[effect]
			if stats.Count > 0 {
				process.Report[effect] += now.Sub(stats.StartTime)
			}
			stats.StartTime = now
		}
		aggregate.Channels = append(aggregate.Channels, Channel{
			PID:       process.PID,
			Name:      process.Name,
			Durations: process.Report,
		})
	}
	return aggregate, nil
}

// Seconds returns the channel's durations in Unit.
func (c Channel) Seconds() [assertion.NumEffects]float64 {
	var seconds [assertion.NumEffects]float64
	for effect, duration := range c.Durations {
		seconds[effect] = duration.Seconds()
	}
	return seconds
}
