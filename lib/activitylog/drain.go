// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package activitylog

import "fmt"

// Batch is the result of a drain.
type Batch struct {
	// Records are in write order, oldest first.
	Records []Record

	// Cursor is the write cursor at the time of the drain. The
	// reader passes it to its next Drain call.
	Cursor uint64

	// Overflow is set when records between the reader's cursor and
	// the oldest returned record were lost, or when the reader's
	// cursor could not be trusted and the batch starts from the
	// oldest resident record instead.
	Overflow bool
}

// Drain returns the records written since cursor.
//
// When entitled is true the caller is the privileged reader: the
// unread counter resets, and until the first such drain delivers a
// batch every entitled drain ignores cursor, returns all resident
// records, and reports Overflow. Unentitled callers read with the
// same cursor rules but leave reader state untouched.
//
// A cursor is trusted only if it lies inside the resident window
// [writeCursor-resident, writeCursor]. Any other cursor, whether too
// old or ahead of the writer, resyncs to the full resident window with
// Overflow set.
//
// Errors: ErrNotFound when there is nothing past the cursor (the
// returned Batch still carries the current Cursor); ErrInternal when
// the log's bookkeeping is inconsistent, in which case the Batch
// carries Cursor and Overflow but no records.
func (l *Log) Drain(cursor uint64, entitled bool) (Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	writeCursor := l.writeCursor
	batch := Batch{Cursor: writeCursor}

	readAll := false
	if entitled {
		l.unread = 0
		if l.coldStart {
			readAll = true
			batch.Overflow = true
		}
	}

	resident := l.residentLocked()
	if resident == 0 || (!readAll && cursor == writeCursor) {
		return batch, ErrNotFound
	}

	oldest := writeCursor - uint64(resident)
	from := cursor
	if readAll {
		from = oldest
	} else if cursor > writeCursor || cursor < oldest {
		l.logger.Warn("reader cursor outside resident window, resyncing",
			"read_cursor", cursor,
			"write_cursor", writeCursor,
			"resident", resident,
		)
		batch.Overflow = true
		from = oldest
	}

	records, err := l.copyRangeLocked(from, writeCursor, resident)
	if err != nil {
		batch.Overflow = true
		return batch, err
	}

	batch.Records = records
	if entitled {
		l.coldStart = false
	}
	return batch, nil
}

// copyRangeLocked copies the records at logical cursors [from, to)
// out of the ring. The range wraps past the end of the slot array at
// most once, so the copy is at most two contiguous pieces.
func (l *Log) copyRangeLocked(from, to uint64, resident int) ([]Record, error) {
	if len(l.slots) != l.capacity || l.populated != resident {
		l.logger.Error("activity log bookkeeping mismatch",
			"slots", len(l.slots),
			"capacity", l.capacity,
			"populated", l.populated,
			"resident", resident,
			"read_cursor", from,
			"write_cursor", to,
		)
		return nil, fmt.Errorf("resident count %d does not match %d populated slots: %w",
			resident, l.populated, ErrInternal)
	}

	count := int(to - from)
	capacity := uint64(l.capacity)
	start := int(from % capacity)
	end := int((to - 1) % capacity)

	records := make([]Record, 0, count)
	if start > end {
		records = append(records, l.slots[start:]...)
		start = 0
	}
	records = append(records, l.slots[start:end+1]...)

	if len(records) != count {
		l.logger.Error("activity log range copy mismatch",
			"copied", len(records),
			"expected", count,
			"read_cursor", from,
			"write_cursor", to,
		)
		return nil, fmt.Errorf("copied %d records, expected %d: %w", len(records), count, ErrInternal)
	}
	return records, nil
}
