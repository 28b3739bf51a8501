// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package activitylog

import "errors"

var (
	// ErrBadArgument rejects a malformed request before any state is
	// touched.
	ErrBadArgument = errors.New("bad argument")

	// ErrNotFound means there are no records past the caller's
	// cursor. It is the steady state of a caught-up reader, not a
	// failure.
	ErrNotFound = errors.New("no new records")

	// ErrNoMemory reports that a batch could not be allocated or
	// serialized. Log state is unaffected.
	ErrNoMemory = errors.New("out of memory")

	// ErrInternal reports an inconsistency in the log's own
	// bookkeeping. The reader should resync from the returned cursor.
	ErrInternal = errors.New("internal error")
)
