// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package activitylog is the bounded, in-memory log of assertion
// lifecycle transitions and the cursor protocol its reader drains it
// with.
//
// # Storage
//
// A [Log] is a fixed-capacity ring of [Record] values. Every append
// writes slot writeCursor % capacity and then advances writeCursor,
// which only ever grows. Once the ring is full each append silently
// overwrites the oldest record: loss is reported to the reader, never
// prevented. Storage is allocated on the first append so an idle
// daemon carries no log.
//
// Appends only happen while logging is enabled. Enabling is reference
// counted ([Log.SetEnabled]) and never goes below zero.
//
// # Reader protocol
//
// A single entitled reader drains the log by presenting the cursor it
// got back from its previous drain. [Log.Drain] returns every record
// written since that cursor, oldest first, and the new cursor to keep.
// When the reader's cursor no longer points inside the resident
// window (it fell more than a full ring behind, or the daemon
// restarted and the cursor belongs to an older incarnation), the drain
// returns everything resident and sets Overflow so the reader knows
// records were lost. The reader's first drain after the daemon starts
// is always treated that way.
//
// The protocol is at-least-once with explicit overflow signaling. A
// drain either returns a consistent batch or an error; it never
// returns part of a range.
//
// # High-water mark
//
// The log counts records appended since the entitled reader last
// drained. When that reaches 90% of capacity, or when storage is first
// allocated, it posts a notification so a dormant reader can drain
// before records are overwritten. After posting, the counter sticks at
// "unknown" until the reader drains again.
package activitylog
