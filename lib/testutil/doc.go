// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for powerlog packages.
//
// [SocketDir] creates a short temporary directory for Unix sockets,
// whose paths are limited to 108 bytes and so cannot live under a
// deeply nested t.TempDir().
//
// [RequireReceive] and [RequireNoReceive] wrap the select-with-timeout
// pattern used when a test waits on a notification channel. They are
// the only place in the test suite that uses real wall-clock timeouts.
//
// All helpers call t.Fatalf on failure.
package testutil
