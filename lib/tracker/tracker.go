// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/powerlog/lib/activitylog"
	"github.com/bureau-foundation/powerlog/lib/admission"
	"github.com/bureau-foundation/powerlog/lib/assertion"
	"github.com/bureau-foundation/powerlog/lib/clock"
	"github.com/bureau-foundation/powerlog/lib/procstats"
	"github.com/bureau-foundation/powerlog/lib/summary"
)

// Config wires a Tracker to its collaborators. Log, Aggregator, and
// Clock are required.
type Config struct {
	Policy     admission.Policy
	Log        *activitylog.Log
	Aggregator *procstats.Aggregator
	Clock      clock.Clock

	// TextLog receives admitted transitions and summary lines. Nil
	// disables the text log; admission to the ring buffer is
	// unaffected.
	TextLog *slog.Logger

	// Logger receives operational diagnostics.
	Logger *slog.Logger
}

type assertionKey struct {
	pid int
	id  uint64
}

// entry is a live assertion plus the tracker's view of whether it is
// currently in effect.
type entry struct {
	assertion *assertion.Assertion
	producer  uint64
	on        bool
}

// processEntry is a process plus its count of live assertions.
type processEntry struct {
	process *assertion.Process
	live    int
}

// Tracker is the assertion registry. All methods are safe for
// concurrent use; transitions are serialized.
type Tracker struct {
	policy     admission.Policy
	log        *activitylog.Log
	aggregator *procstats.Aggregator
	clock      clock.Clock
	textLog    *slog.Logger
	logger     *slog.Logger
	emitter    *summary.Emitter

	mu            sync.Mutex
	processes     map[int]*processEntry
	assertions    map[assertionKey]*entry
	nextSequence  uint64
	nextUniqueID  uint64
	displayAsleep bool
	power         summary.PowerState
	kernelBits    assertion.Bitmask

	// retired holds processes that died since the last aggregate.
	// They are reported once more, then dropped.
	retired []*assertion.Process
}

// maxRetired bounds retired for a consumer that enables aggregation
// and never collects.
const maxRetired = 1024

// New creates an empty Tracker.
func New(config Config) *Tracker {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracker := &Tracker{
		policy:     config.Policy,
		log:        config.Log,
		aggregator: config.Aggregator,
		clock:      config.Clock,
		textLog:    config.TextLog,
		logger:     logger,
		processes:  make(map[int]*processEntry),
		assertions: make(map[assertionKey]*entry),
	}
	if tracker.textLog != nil {
		tracker.emitter = summary.NewEmitter(tracker.textLog)
	}
	return tracker
}

// Handle applies one transition.
func (t *Tracker) Handle(event Event) (Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var outcome Outcome

	switch event.Action {
	case assertion.Create:
		subject, err := t.createLocked(event, now)
		if err != nil {
			return outcome, err
		}
		outcome = t.recordLocked(event.Action, subject.assertion, now)

	case assertion.Retain:
		subject, err := t.lookupLocked(event)
		if err != nil {
			return outcome, err
		}
		subject.assertion.RetainCount++
		outcome = t.recordLocked(event.Action, subject.assertion, now)

	case assertion.TurnOn, assertion.TurnOff:
		subject, err := t.lookupLocked(event)
		if err != nil {
			return outcome, err
		}
		t.setLevelLocked(subject, event.Action == assertion.TurnOn, now)
		outcome = t.recordLocked(event.Action, subject.assertion, now)

	case assertion.Release:
		subject, err := t.lookupLocked(event)
		if err != nil {
			return outcome, err
		}
		subject.assertion.RetainCount--
		outcome = t.recordLocked(event.Action, subject.assertion, now)
		if subject.assertion.RetainCount <= 0 {
			t.removeLocked(subject, now)
		}

	case assertion.Timeout:
		subject, err := t.lookupLocked(event)
		if err != nil {
			return outcome, err
		}
		outcome = t.recordLocked(event.Action, subject.assertion, now)
		t.removeLocked(subject, now)

	case assertion.ClientDeath:
		owner, exists := t.processes[event.PID]
		if !exists {
			return outcome, fmt.Errorf("pid %d has no assertions: %w", event.PID, ErrUnknownAssertion)
		}
		for _, subject := range t.processAssertionsLocked(event.PID) {
			outcome.add(t.recordLocked(event.Action, subject.assertion, now))
			t.removeLocked(subject, now)
		}
		delete(t.processes, event.PID)
		if t.aggregator.Enabled() {
			t.retireLocked(owner.process)
		}

	case assertion.NameChange:
		subject, err := t.lookupLocked(event)
		if err != nil {
			return outcome, err
		}
		if event.Name == "" {
			return outcome, fmt.Errorf("name change without a name: %w", ErrInvalidEvent)
		}
		subject.assertion.Name = event.Name
		outcome = t.recordLocked(event.Action, subject.assertion, now)

	case assertion.CapExpiry:
		subject, err := t.lookupLocked(event)
		if err != nil {
			return outcome, err
		}
		outcome = t.recordLocked(event.Action, subject.assertion, now)

	default:
		// Summary is produced internally by LogAll.
		return outcome, fmt.Errorf("action %v cannot be submitted: %w", event.Action, ErrInvalidEvent)
	}

	t.emitSummaryLocked()
	return outcome, nil
}

func (t *Tracker) createLocked(event Event, now time.Time) (*entry, error) {
	if event.PID <= 0 {
		return nil, fmt.Errorf("pid %d: %w", event.PID, ErrInvalidEvent)
	}
	if event.Kind >= assertion.NumKinds {
		return nil, fmt.Errorf("assertion type %d: %w", event.Kind, ErrInvalidEvent)
	}
	qualifiers, err := assertion.ParseQualifiers(event.Qualifiers)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	key := assertionKey{pid: event.PID, id: event.AssertionID}
	if _, exists := t.assertions[key]; exists {
		return nil, fmt.Errorf("pid %d id %d: %w", event.PID, event.AssertionID, ErrDuplicateAssertion)
	}

	owner := t.processLocked(event.PID, event.ProcessName)
	t.nextUniqueID++
	subject := &assertion.Assertion{
		ID:                 event.AssertionID,
		GlobalUniqueID:     owner.process.CreateSequence<<32 | t.nextUniqueID&0xffffffff,
		Kind:               event.Kind,
		Name:               event.Name,
		Process:            owner.process,
		RetainCount:        1,
		CreatedAt:          now,
		Qualifiers:         qualifiers,
		OnBehalfOfPID:      event.OnBehalfOfPID,
		OnBehalfOfReason:   event.OnBehalfOfReason,
		OnBehalfOfBundleID: event.OnBehalfOfBundleID,
		Backtrace:          slices.Clone(event.Backtrace),
	}
	if event.SkipLogging {
		subject.State |= assertion.SkipLogging
	}

	created := &entry{assertion: subject, producer: event.AssertionID}
	t.assertions[key] = created
	owner.live++
	t.setLevelLocked(created, true, now)
	return created, nil
}

// processLocked returns the entry for pid, creating it as needed.
func (t *Tracker) processLocked(pid int, name string) *processEntry {
	owner, exists := t.processes[pid]
	if exists {
		if name != "" {
			owner.process.Name = name
		}
		return owner
	}
	t.nextSequence++
	owner = &processEntry{process: &assertion.Process{
		PID:            pid,
		Name:           name,
		CreateSequence: t.nextSequence,
	}}
	t.processes[pid] = owner
	return owner
}

func (t *Tracker) lookupLocked(event Event) (*entry, error) {
	subject, exists := t.assertions[assertionKey{pid: event.PID, id: event.AssertionID}]
	if !exists {
		return nil, fmt.Errorf("pid %d id %d: %w", event.PID, event.AssertionID, ErrUnknownAssertion)
	}
	return subject, nil
}

// setLevelLocked moves an assertion in or out of effect and charges
// its process accordingly.
func (t *Tracker) setLevelLocked(subject *entry, on bool, now time.Time) {
	if subject.on == on {
		return
	}
	subject.on = on
	effect := subject.assertion.Kind.Effect()
	if on {
		subject.assertion.Process.Hold(effect, now)
	} else {
		subject.assertion.Process.Drop(effect, now)
	}
}

func (t *Tracker) removeLocked(subject *entry, now time.Time) {
	t.setLevelLocked(subject, false, now)
	pid := subject.assertion.PID()
	delete(t.assertions, assertionKey{pid: pid, id: subject.producer})
	owner, exists := t.processes[pid]
	if !exists || owner.process != subject.assertion.Process {
		return
	}
	owner.live--
	// Idle processes are kept for the next aggregate only if anyone
	// is collecting aggregates.
	if owner.live == 0 && !t.aggregator.Enabled() {
		delete(t.processes, pid)
	}
}

// retireLocked keeps a dead process for the next aggregate, dropping
// the oldest retired process once maxRetired is reached.
func (t *Tracker) retireLocked(process *assertion.Process) {
	if len(t.retired) >= maxRetired {
		dropped := t.retired[0]
		t.logger.Warn("retired process dropped before being aggregated",
			"pid", dropped.PID,
			"name", dropped.Name,
			"retired", len(t.retired),
		)
		t.retired = slices.Delete(t.retired, 0, 1)
	}
	t.retired = append(t.retired, process)
}

// processAssertionsLocked returns pid's live assertions in creation
// order.
func (t *Tracker) processAssertionsLocked(pid int) []*entry {
	var owned []*entry
	for key, subject := range t.assertions {
		if key.pid == pid {
			owned = append(owned, subject)
		}
	}
	sortEntries(owned)
	return owned
}

func sortEntries(entries []*entry) {
	slices.SortFunc(entries, func(x, y *entry) int {
		return cmp.Or(
			cmp.Compare(x.assertion.Process.CreateSequence, y.assertion.Process.CreateSequence),
			cmp.Compare(x.assertion.GlobalUniqueID, y.assertion.GlobalUniqueID),
		)
	})
}

// recordLocked runs one transition of one assertion through both
// destinations. The text log goes first: its admission sets the
// sticky Logged bit that later release decisions depend on.
func (t *Tracker) recordLocked(action assertion.Action, subject *assertion.Assertion, now time.Time) Outcome {
	var outcome Outcome

	if t.textLog != nil && t.policy.ShouldRecordToTextLog(action, subject, now, t.displayAsleep) {
		t.writeTextLocked(action, subject, now)
		outcome.TextLogged++
	}

	if t.policy.ShouldRecordToRingBuffer(action, subject) {
		if t.log.Append(activitylog.NewRecord(action, subject, now)) {
			outcome.Recorded++
		} else {
			outcome.Dropped++
		}
	}
	return outcome
}

func (t *Tracker) writeTextLocked(action assertion.Action, subject *assertion.Assertion, now time.Time) {
	processName := ""
	if subject.Process != nil {
		processName = subject.Process.Name
	}
	attributes := []any{
		"action", action.String(),
		"process", processName,
		"pid", subject.PID(),
		"type", subject.Type(),
		"name", subject.Name,
		"age", subject.Age(now).Truncate(time.Second).String(),
		"id", subject.GlobalUniqueID,
		"system", systemLine(t.systemBitsLocked()),
	}
	if subject.Qualifiers != 0 {
		attributes = append(attributes, "qualifiers", subject.Qualifiers.String())
	}
	if subject.OnBehalfOfPID != 0 {
		attributes = append(attributes, "on_behalf_of_pid", subject.OnBehalfOfPID)
	}
	t.textLog.Info("assertion "+action.String(), attributes...)
}

func systemLine(bits assertion.Bitmask) string {
	names := bits.Names()
	if len(names) == 0 {
		return "[System: No Assertions]"
	}
	return "[System: " + strings.Join(names, " ") + "]"
}

// systemBitsLocked returns the kinds of every assertion currently in
// effect plus the kernel bits.
func (t *Tracker) systemBitsLocked() assertion.Bitmask {
	bits := t.kernelBits
	for _, subject := range t.assertions {
		if subject.on {
			bits |= subject.assertion.Kind.Bit()
		}
	}
	return bits
}

func (t *Tracker) emitSummaryLocked() {
	if t.emitter != nil {
		t.emitter.MaybeEmit(t.power, t.systemBitsLocked())
	}
}
