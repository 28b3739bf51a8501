// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/powerlog/lib/activitylog"
	"github.com/bureau-foundation/powerlog/lib/admission"
	"github.com/bureau-foundation/powerlog/lib/assertion"
	"github.com/bureau-foundation/powerlog/lib/clock"
	"github.com/bureau-foundation/powerlog/lib/procstats"
	"github.com/bureau-foundation/powerlog/lib/summary"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	tracker    *Tracker
	log        *activitylog.Log
	aggregator *procstats.Aggregator
	clock      *clock.FakeClock
	text       *bytes.Buffer
}

func newHarness(t *testing.T, policy admission.Policy) *harness {
	t.Helper()
	log, err := activitylog.New(activitylog.Config{Capacity: 32})
	if err != nil {
		t.Fatalf("activitylog.New: %v", err)
	}
	log.SetEnabled(true)

	h := &harness{
		log:        log,
		aggregator: procstats.New("powerlogd", nil),
		clock:      clock.Fake(epoch),
		text:       &bytes.Buffer{},
	}
	h.tracker = New(Config{
		Policy:     policy,
		Log:        log,
		Aggregator: h.aggregator,
		Clock:      h.clock,
		TextLog:    slog.New(slog.NewJSONHandler(h.text, nil)),
	})
	return h
}

func (h *harness) handle(t *testing.T, event Event) Outcome {
	t.Helper()
	outcome, err := h.tracker.Handle(event)
	if err != nil {
		t.Fatalf("Handle(%v pid %d id %d): %v", event.Action, event.PID, event.AssertionID, err)
	}
	return outcome
}

// textLines returns the msg of every text-log line, then resets the
// buffer.
func (h *harness) textLines(t *testing.T) []string {
	t.Helper()
	var messages []string
	for _, line := range strings.Split(strings.TrimSpace(h.text.String()), "\n") {
		if line == "" {
			continue
		}
		var entry struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decoding %q: %v", line, err)
		}
		messages = append(messages, entry.Msg)
	}
	h.text.Reset()
	return messages
}

// assertionLines filters textLines down to per-assertion lines.
func (h *harness) assertionLines(t *testing.T) []string {
	t.Helper()
	var lines []string
	for _, line := range h.textLines(t) {
		if strings.HasPrefix(line, "assertion ") {
			lines = append(lines, line)
		}
	}
	return lines
}

func (h *harness) drainAll(t *testing.T) []activitylog.Record {
	t.Helper()
	batch, err := h.log.Drain(0, false)
	if errors.Is(err, activitylog.ErrNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	return batch.Records
}

func create(pid int, id uint64, kind assertion.Kind, name string) Event {
	return Event{Action: assertion.Create, PID: pid, ProcessName: "proc", AssertionID: id, Kind: kind, Name: name}
}

func transition(action assertion.Action, pid int, id uint64) Event {
	return Event{Action: action, PID: pid, AssertionID: id}
}

func TestLogOnCreateKindIsStickyLogged(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())

	outcome := h.handle(t, create(100, 1, assertion.PreventSystemSleep, "backup"))
	if outcome.TextLogged != 1 || outcome.Recorded != 1 {
		t.Fatalf("create outcome = %+v", outcome)
	}

	// Released one second later: short-lived, but its creation was
	// logged so the release must be too.
	h.clock.Advance(time.Second)
	outcome = h.handle(t, transition(assertion.Release, 100, 1))
	if outcome.TextLogged != 1 || outcome.Recorded != 1 {
		t.Fatalf("release outcome = %+v", outcome)
	}

	lines := h.assertionLines(t)
	if len(lines) != 2 || lines[0] != "assertion Created" || lines[1] != "assertion Released" {
		t.Errorf("text lines = %q", lines)
	}
	if state := h.tracker.State(); state.Assertions != 0 {
		t.Errorf("assertion still registered after final release: %+v", state)
	}
}

func TestShortLivedReleaseIsNotTextLogged(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())

	outcome := h.handle(t, create(100, 1, assertion.PreventUserIdleSystemSleep, "download"))
	if outcome.TextLogged != 0 || outcome.Recorded != 1 {
		t.Fatalf("create outcome = %+v", outcome)
	}

	h.clock.Advance(5 * time.Second)
	outcome = h.handle(t, transition(assertion.Release, 100, 1))
	if outcome.TextLogged != 0 || outcome.Recorded != 1 {
		t.Fatalf("release outcome = %+v", outcome)
	}

	records := h.drainAll(t)
	if len(records) != 2 || records[0].Action != assertion.Create || records[1].Action != assertion.Release {
		t.Fatalf("records = %+v", records)
	}
	if records[1].RetainCount != 0 {
		t.Errorf("release record retain count = %d, want 0", records[1].RetainCount)
	}
	if records[0].GlobalUniqueID != records[1].GlobalUniqueID {
		t.Error("create and release records carry different unique ids")
	}
}

func TestReleaseDelayFollowsDisplayState(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())
	h.tracker.SetDisplayAsleep(true)

	h.handle(t, create(100, 1, assertion.PreventUserIdleSystemSleep, "sync"))
	h.clock.Advance(11 * time.Second)
	outcome := h.handle(t, transition(assertion.Release, 100, 1))
	if outcome.TextLogged != 1 {
		t.Errorf("11s release with display asleep: TextLogged = %d, want 1", outcome.TextLogged)
	}

	h.tracker.SetDisplayAsleep(false)
	h.handle(t, create(100, 2, assertion.PreventUserIdleSystemSleep, "sync"))
	h.clock.Advance(11 * time.Second)
	outcome = h.handle(t, transition(assertion.Release, 100, 2))
	if outcome.TextLogged != 0 {
		t.Errorf("11s release with display on: TextLogged = %d, want 0", outcome.TextLogged)
	}
}

func TestRetainCounting(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())

	h.handle(t, create(100, 1, assertion.BackgroundTask, "task"))
	h.handle(t, transition(assertion.Retain, 100, 1))
	h.handle(t, transition(assertion.Release, 100, 1))
	if state := h.tracker.State(); state.Assertions != 1 {
		t.Fatalf("assertion removed with retain count remaining: %+v", state)
	}
	h.handle(t, transition(assertion.Release, 100, 1))
	if state := h.tracker.State(); state.Assertions != 0 {
		t.Fatalf("assertion not removed: %+v", state)
	}

	records := h.drainAll(t)
	want := []int{1, 2, 1, 0}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, record := range records {
		if record.RetainCount != want[i] {
			t.Errorf("record %d retain count = %d, want %d", i, record.RetainCount, want[i])
		}
	}
}

func TestClientDeathReleasesEverything(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())

	h.handle(t, create(100, 1, assertion.PreventUserIdleSystemSleep, "a"))
	h.handle(t, create(100, 2, assertion.PreventUserIdleDisplaySleep, "b"))
	h.handle(t, create(200, 1, assertion.BackgroundTask, "other"))
	h.drainAll(t)

	outcome := h.handle(t, Event{Action: assertion.ClientDeath, PID: 100})
	if outcome.Recorded != 2 {
		t.Errorf("ClientDeath recorded %d, want 2", outcome.Recorded)
	}

	batch, err := h.log.Drain(3, false)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(batch.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(batch.Records))
	}
	for _, record := range batch.Records {
		if record.Action != assertion.ClientDeath || record.PID != 100 {
			t.Errorf("record = %+v", record)
		}
	}
	if batch.Records[0].Name != "a" || batch.Records[1].Name != "b" {
		t.Errorf("ClientDeath records out of creation order: %q, %q", batch.Records[0].Name, batch.Records[1].Name)
	}

	state := h.tracker.State()
	if state.Assertions != 1 || state.Processes != 1 {
		t.Errorf("state = %+v, want only pid 200 left", state)
	}
	if _, err := h.tracker.Handle(Event{Action: assertion.ClientDeath, PID: 100}); !errors.Is(err, ErrUnknownAssertion) {
		t.Errorf("second ClientDeath error = %v, want ErrUnknownAssertion", err)
	}
}

func TestInvalidEvents(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())
	h.handle(t, create(100, 1, assertion.PreventSystemSleep, "x"))

	tests := []struct {
		name  string
		event Event
		want  error
	}{
		{"duplicate create", create(100, 1, assertion.PreventSystemSleep, "x"), ErrDuplicateAssertion},
		{"release unknown", transition(assertion.Release, 100, 9), ErrUnknownAssertion},
		{"unknown pid", transition(assertion.Retain, 999, 1), ErrUnknownAssertion},
		{"summary from producer", transition(assertion.Summary, 100, 1), ErrInvalidEvent},
		{"bad pid", create(0, 5, assertion.PreventSystemSleep, "x"), ErrInvalidEvent},
		{"bad qualifier", Event{Action: assertion.Create, PID: 100, AssertionID: 6, Qualifiers: []string{"Wifi"}}, ErrInvalidEvent},
		{"rename without name", transition(assertion.NameChange, 100, 1), ErrInvalidEvent},
	}
	for _, test := range tests {
		if _, err := h.tracker.Handle(test.event); !errors.Is(err, test.want) {
			t.Errorf("%s: error = %v, want %v", test.name, err, test.want)
		}
	}
}

func TestDisabledLogCountsDrops(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())
	h.log.SetEnabled(false)

	outcome := h.handle(t, create(100, 1, assertion.PreventSystemSleep, "x"))
	if outcome.Recorded != 0 || outcome.Dropped != 1 {
		t.Errorf("outcome = %+v, want one drop", outcome)
	}
	// The text log does not depend on the ring buffer.
	if outcome.TextLogged != 1 {
		t.Errorf("TextLogged = %d, want 1", outcome.TextLogged)
	}
}

func TestSkipLoggingReachesNoLog(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())

	event := create(100, 1, assertion.PreventSystemSleep, "logger")
	event.SkipLogging = true
	outcome := h.handle(t, event)
	if outcome != (Outcome{}) {
		t.Errorf("outcome = %+v, want nothing logged", outcome)
	}
	if lines := h.assertionLines(t); len(lines) != 0 {
		t.Errorf("text lines = %q", lines)
	}
}

func TestNameChangeNeedsDebugSwitch(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())
	h.handle(t, create(100, 1, assertion.BackgroundTask, "old"))
	outcome := h.handle(t, Event{Action: assertion.NameChange, PID: 100, AssertionID: 1, Name: "new"})
	if outcome.Recorded != 0 || outcome.TextLogged != 0 {
		t.Errorf("name change logged without LogNameChanges: %+v", outcome)
	}

	policy := admission.Default()
	policy.LogNameChanges = true
	h = newHarness(t, policy)
	h.handle(t, create(100, 1, assertion.BackgroundTask, "old"))
	outcome = h.handle(t, Event{Action: assertion.NameChange, PID: 100, AssertionID: 1, Name: "new"})
	if outcome.Recorded != 1 || outcome.TextLogged != 1 {
		t.Errorf("name change outcome = %+v", outcome)
	}
	records := h.drainAll(t)
	if last := records[len(records)-1]; last.Name != "new" || last.Action != assertion.NameChange {
		t.Errorf("last record = %+v", last)
	}
}

func TestCapExpiryIsTextOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())
	h.handle(t, create(100, 1, assertion.BackgroundTask, "capped"))
	outcome := h.handle(t, transition(assertion.CapExpiry, 100, 1))
	if outcome.Recorded != 0 || outcome.TextLogged != 1 {
		t.Errorf("outcome = %+v, want text only", outcome)
	}
}

func TestTurnOffLeavesAssertionRegistered(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())
	h.handle(t, create(100, 1, assertion.PreventUserIdleDisplaySleep, "video"))
	if got := h.tracker.State().System; len(got) != 1 || got[0] != "PrevDisp" {
		t.Fatalf("System = %v", got)
	}

	h.handle(t, transition(assertion.TurnOff, 100, 1))
	state := h.tracker.State()
	if state.Assertions != 1 || len(state.System) != 0 {
		t.Fatalf("after TurnOff state = %+v", state)
	}

	h.handle(t, transition(assertion.TurnOn, 100, 1))
	if got := h.tracker.State().System; len(got) != 1 {
		t.Fatalf("after TurnOn System = %v", got)
	}
}

func TestSummaryLineOnStateChange(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())

	h.tracker.SetPower(summary.PowerState{Source: summary.Battery, BatteryPresent: true, Charge: 50})
	h.handle(t, create(100, 1, assertion.PreventSystemSleep, "x"))
	h.handle(t, create(100, 2, assertion.PreventSystemSleep, "y"))
	h.tracker.SetKernelBits(assertion.KernelCPU | assertion.PreventSystemSleep.Bit())

	var summaries []string
	for _, line := range h.textLines(t) {
		if strings.HasPrefix(line, "Summary-") {
			summaries = append(summaries, line)
		}
	}
	want := []string{
		"Summary- [System: No Assertions] Using Batt(Charge: 50)",
		"Summary- [System: PrevSleep] Using Batt(Charge: 50)",
		"Summary- [System: PrevSleep kCPU] Using Batt(Charge: 50)",
	}
	if len(summaries) != len(want) {
		t.Fatalf("summaries = %q, want %q", summaries, want)
	}
	for i := range want {
		if summaries[i] != want[i] {
			t.Errorf("summary %d = %q, want %q", i, summaries[i], want[i])
		}
	}
}

func TestLogAllSkipsEnableIdleSleep(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())
	h.handle(t, create(100, 1, assertion.PreventUserIdleSystemSleep, "a"))
	h.handle(t, create(200, 1, assertion.EnableIdleSleep, "idle"))
	h.handle(t, create(300, 1, assertion.BackgroundTask, "b"))
	h.textLines(t)

	if written := h.tracker.LogAll(); written != 2 {
		t.Errorf("LogAll wrote %d lines, want 2", written)
	}
	for _, line := range h.assertionLines(t) {
		if line != "assertion Summary" {
			t.Errorf("unexpected line %q", line)
		}
	}
	// Summary snapshots never reach the ring buffer.
	if records := h.drainAll(t); len(records) != 3 {
		t.Errorf("ring holds %d records, want the 3 creations", len(records))
	}
}

func TestAggregateAccounting(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())

	if _, err := h.tracker.Aggregate(); !errors.Is(err, procstats.ErrNotOpen) {
		t.Fatalf("Aggregate before enable error = %v, want ErrNotOpen", err)
	}
	h.aggregator.SetEnabled(true)

	h.handle(t, create(100, 1, assertion.PreventUserIdleSystemSleep, "a"))
	h.handle(t, create(200, 1, assertion.PreventSystemSleep, "b"))
	h.clock.Advance(10 * time.Second)
	h.handle(t, Event{Action: assertion.ClientDeath, PID: 200})
	h.clock.Advance(5 * time.Second)

	aggregate, err := h.tracker.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(aggregate.Channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(aggregate.Channels))
	}
	first, second := aggregate.Channels[0], aggregate.Channels[1]
	if first.PID != 100 || first.Durations[assertion.PreventIdleSleepEffect] != 15*time.Second {
		t.Errorf("first channel = %+v", first)
	}
	if second.PID != 200 || second.Durations[assertion.PreventDemandSleepEffect] != 10*time.Second {
		t.Errorf("second channel = %+v", second)
	}

	// The dead process was reported once and is now gone.
	aggregate, err = h.tracker.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(aggregate.Channels) != 1 || aggregate.Channels[0].PID != 100 {
		t.Errorf("second aggregate channels = %+v", aggregate.Channels)
	}
}

func TestDisablingAggregationForgetsDeadProcesses(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())

	if !h.tracker.SetAggregation(true) {
		t.Fatal("SetAggregation(true) reported disabled")
	}
	h.handle(t, create(100, 1, assertion.PreventUserIdleSystemSleep, "a"))
	h.handle(t, create(200, 1, assertion.PreventSystemSleep, "b"))
	h.handle(t, transition(assertion.Release, 100, 1))
	h.handle(t, Event{Action: assertion.ClientDeath, PID: 200})

	// The idle process is held for the next aggregate.
	if state := h.tracker.State(); state.Processes != 1 {
		t.Fatalf("processes while aggregating = %d, want 1", state.Processes)
	}

	if h.tracker.SetAggregation(false) {
		t.Fatal("SetAggregation(false) reported enabled")
	}
	if state := h.tracker.State(); state.Processes != 0 {
		t.Errorf("processes after disable = %d, want 0", state.Processes)
	}
	aggregate, err := h.tracker.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate after disable: %v", err)
	}
	if len(aggregate.Channels) != 0 {
		t.Errorf("channels after disable = %+v", aggregate.Channels)
	}
}

func TestRetiredProcessesAreBounded(t *testing.T) {
	t.Parallel()
	h := newHarness(t, admission.Default())
	h.tracker.SetAggregation(true)

	const extra = 5
	for pid := 1; pid <= maxRetired+extra; pid++ {
		h.handle(t, create(pid, 1, assertion.PreventUserIdleSystemSleep, "short"))
		h.handle(t, Event{Action: assertion.ClientDeath, PID: pid})
	}

	aggregate, err := h.tracker.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(aggregate.Channels) != maxRetired {
		t.Fatalf("channels = %d, want %d", len(aggregate.Channels), maxRetired)
	}
	if first := aggregate.Channels[0].PID; first != extra+1 {
		t.Errorf("oldest reported pid = %d, want %d", first, extra+1)
	}
}
