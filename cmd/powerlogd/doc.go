// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Powerlogd is the power-assertion activity daemon.
//
// Producers report assertion transitions over the daemon's Unix
// socket. Each transition runs through the admission policy into two
// destinations: the human-readable text log (structured slog lines
// scoped with domain=assertions) and the activity ring buffer. A
// privileged reader drains the ring buffer incrementally with a
// cursor; the daemon also keeps per-process assertion time for the
// aggregate statistics endpoint and writes a periodic summary of every
// live assertion.
//
// Configuration comes from --config or POWERLOG_CONFIG. Without
// either, built-in defaults are used.
package main
