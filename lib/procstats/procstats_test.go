// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package procstats

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/bureau-foundation/powerlog/lib/assertion"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func TestSnapshotBeforeEnableIsNotOpen(t *testing.T) {
	t.Parallel()
	aggregator := New("powerlogd", nil)
	if _, err := aggregator.Snapshot(nil, epoch); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Snapshot error = %v, want ErrNotOpen", err)
	}

	// Disabling a never-enabled aggregator does not open it.
	aggregator.SetEnabled(false)
	if _, err := aggregator.Snapshot(nil, epoch); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Snapshot after disable error = %v, want ErrNotOpen", err)
	}
}

func TestEnableIsReferenceCounted(t *testing.T) {
	t.Parallel()
	aggregator := New("powerlogd", nil)
	aggregator.SetEnabled(true)
	aggregator.SetEnabled(true)
	aggregator.SetEnabled(false)
	if !aggregator.Enabled() {
		t.Fatal("disabled after one of two enables was released")
	}
	aggregator.SetEnabled(false)
	aggregator.SetEnabled(false)
	if aggregator.Enabled() {
		t.Fatal("still enabled after all enables were released")
	}
	aggregator.SetEnabled(true)
	if !aggregator.Enabled() {
		t.Fatal("extra disable drove the count negative")
	}
}

func TestSnapshotOrdersByCreateSequence(t *testing.T) {
	t.Parallel()
	aggregator := New("powerlogd", nil)
	aggregator.SetEnabled(true)

	processes := make([]*assertion.Process, 20)
	for i := range processes {
		processes[i] = &assertion.Process{PID: 1000 + i, Name: "proc", CreateSequence: uint64(i)}
	}

	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 5; round++ {
		shuffled := append([]*assertion.Process(nil), processes...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		aggregate, err := aggregator.Snapshot(shuffled, epoch)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if len(aggregate.Channels) != len(processes) {
			t.Fatalf("got %d channels, want %d", len(aggregate.Channels), len(processes))
		}
		for i, channel := range aggregate.Channels {
			if channel.PID != 1000+i {
				t.Fatalf("round %d: channel %d has PID %d, want %d", round, i, channel.PID, 1000+i)
			}
		}
	}
}

func TestSnapshotAccumulatesOpenWindows(t *testing.T) {
	t.Parallel()
	aggregator := New("powerlogd", nil)
	aggregator.SetEnabled(true)

	process := &assertion.Process{PID: 42, Name: "backupd", CreateSequence: 1}
	process.Hold(assertion.PreventIdleSleepEffect, epoch)
	process.Hold(assertion.PreventIdleSleepEffect, epoch.Add(time.Second))
	process.Hold(assertion.PreventDisplaySleepEffect, epoch.Add(5*time.Second))

	first, err := aggregator.Snapshot([]*assertion.Process{process}, epoch.Add(10*time.Second))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	channel := first.Channels[0]
	if channel.Durations[assertion.PreventIdleSleepEffect] != 10*time.Second {
		t.Errorf("idle = %v, want 10s", channel.Durations[assertion.PreventIdleSleepEffect])
	}
	if channel.Durations[assertion.PreventDisplaySleepEffect] != 5*time.Second {
		t.Errorf("display = %v, want 5s", channel.Durations[assertion.PreventDisplaySleepEffect])
	}
	if channel.Durations[assertion.PreventDemandSleepEffect] != 0 {
		t.Errorf("demand = %v, want 0", channel.Durations[assertion.PreventDemandSleepEffect])
	}

	// Every window restarts at the snapshot, including idle ones.
	for effect := range assertion.NumEffects {
		if got := process.Stats[effect].StartTime; !got.Equal(epoch.Add(10 * time.Second)) {
			t.Errorf("%v start = %v, want snapshot time", effect, got)
		}
	}

	// The display assertion is released 2s later; idle keeps running.
	process.Drop(assertion.PreventDisplaySleepEffect, epoch.Add(12*time.Second))

	second, err := aggregator.Snapshot([]*assertion.Process{process}, epoch.Add(20*time.Second))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	channel = second.Channels[0]
	if channel.Durations[assertion.PreventIdleSleepEffect] != 20*time.Second {
		t.Errorf("idle = %v, want 20s", channel.Durations[assertion.PreventIdleSleepEffect])
	}
	if channel.Durations[assertion.PreventDisplaySleepEffect] != 7*time.Second {
		t.Errorf("display = %v, want 7s", channel.Durations[assertion.PreventDisplaySleepEffect])
	}
	if got := channel.Seconds()[assertion.PreventIdleSleepEffect]; got != 20 {
		t.Errorf("idle seconds = %v, want 20", got)
	}
}

func TestAggregateLabels(t *testing.T) {
	t.Parallel()
	aggregator := New("powerlogd", nil)
	aggregator.SetEnabled(true)
	aggregate, err := aggregator.Snapshot(nil, epoch)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if aggregate.Provider != "powerlogd" || aggregate.Group != Group ||
		aggregate.Subgroup != Subgroup || aggregate.Unit != Unit {
		t.Errorf("aggregate labels = %+v", aggregate)
	}
	if aggregate.Channels == nil {
		t.Error("empty aggregate has nil Channels")
	}
}

func TestSnapshotAfterDisableStillReports(t *testing.T) {
	t.Parallel()
	aggregator := New("powerlogd", nil)
	aggregator.SetEnabled(true)
	aggregator.SetEnabled(false)
	if _, err := aggregator.Snapshot(nil, epoch); err != nil {
		t.Fatalf("Snapshot after disable: %v", err)
	}
}
