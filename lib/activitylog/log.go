// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package activitylog

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/bureau-foundation/powerlog/lib/notify"
)

// DefaultCapacity is the number of records the log retains.
const DefaultCapacity = 512

// unreadUnknown is the unread counter's sticky value after a
// high-water post. Only an entitled drain clears it.
const unreadUnknown = math.MaxUint32

// Config configures a Log.
type Config struct {
	// Capacity is the number of record slots. Zero selects
	// DefaultCapacity.
	Capacity int

	// HighWater is posted when storage is first allocated and when
	// unread records reach 90% of Capacity. May be nil.
	HighWater notify.Poster

	// Logger receives protocol diagnostics. Nil discards them.
	Logger *slog.Logger
}

// Log is the activity ring buffer. One Log lives for the lifetime of
// the daemon and is shared by reference between the event pipeline
// (the only appender) and the socket handlers that drain it.
//
// All methods are safe for concurrent use. Records are copied in and
// out under the mutex, so a drain never observes a partially written
// slot.
type Log struct {
	mu sync.Mutex

	capacity  int
	highWater uint32
	notifier  notify.Poster
	logger    *slog.Logger

	// slots is nil until the first append.
	slots []Record

	// writeCursor counts every record ever appended. The record at
	// cursor c lives in slots[c % capacity] until overwritten at
	// cursor c + capacity.
	writeCursor uint64

	// populated counts slots that have been written at least once.
	// It must equal min(writeCursor, capacity); Drain checks this
	// before trusting the slot contents.
	populated int

	// unread counts appends since the last entitled drain, or holds
	// unreadUnknown after a high-water post.
	unread uint32

	enableCount uint32

	// coldStart is true until the first entitled drain that delivers
	// records.
	coldStart bool
}

// New creates an empty, disabled Log.
func New(config Config) (*Log, error) {
	capacity := config.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if capacity < 0 {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrBadArgument)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Log{
		capacity: capacity,
		// 90% of capacity, rounded up.
		highWater: uint32((capacity*9 + 9) / 10),
		notifier:  config.HighWater,
		logger:    logger,
		coldStart: true,
	}, nil
}

// Capacity returns the number of record slots.
func (l *Log) Capacity() int {
	return l.capacity
}

// SetEnabled adjusts the logging reference count. Appends are accepted
// while the count is positive. Disabling at zero is a no-op.
func (l *Log) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if enabled {
		l.enableCount++
	} else if l.enableCount > 0 {
		l.enableCount--
	}
}

// Enabled reports whether appends are currently accepted.
func (l *Log) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enableCount > 0
}

// Append writes record at the write cursor, overwriting the oldest
// record once the log is full. It returns false without storing
// anything when logging is disabled. Append never blocks on a reader.
func (l *Log) Append(record Record) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.enableCount == 0 {
		return false
	}

	if l.slots == nil {
		l.slots = make([]Record, l.capacity)
		// A fresh buffer means any reader still holding a cursor is
		// looking at a previous incarnation. Wake it and treat the
		// backlog as unknown until it drains.
		l.unread = unreadUnknown
		l.post()
	}

	l.slots[l.writeCursor%uint64(l.capacity)] = record
	l.writeCursor++
	if l.populated < l.capacity {
		l.populated++
	}

	if l.unread != unreadUnknown {
		l.unread++
		if l.unread >= l.highWater {
			l.post()
			l.unread = unreadUnknown
		}
	}
	return true
}

func (l *Log) post() {
	if l.notifier != nil {
		l.notifier.Post()
	}
}

// Status is a point-in-time view of the log's counters.
type Status struct {
	Capacity    int    `json:"capacity"`
	WriteCursor uint64 `json:"write_cursor"`
	Resident    int    `json:"resident"`
	EnableCount uint32 `json:"enable_count"`
	Allocated   bool   `json:"allocated"`

	// Unread is the number of records appended since the entitled
	// reader last drained. UnreadUnknown is set instead once the
	// high-water mark was posted.
	Unread        uint32 `json:"unread"`
	UnreadUnknown bool   `json:"unread_unknown,omitempty"`
}

// Status returns the current counters.
func (l *Log) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	status := Status{
		Capacity:    l.capacity,
		WriteCursor: l.writeCursor,
		Resident:    l.residentLocked(),
		EnableCount: l.enableCount,
		Allocated:   l.slots != nil,
	}
	if l.unread == unreadUnknown {
		status.UnreadUnknown = true
	} else {
		status.Unread = l.unread
	}
	return status
}

// residentLocked returns min(writeCursor, capacity). Caller holds mu.
func (l *Log) residentLocked() int {
	if l.writeCursor < uint64(l.capacity) {
		return int(l.writeCursor)
	}
	return l.capacity
}
