// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Everything in powerlog that depends on time takes a Clock: the
// admission policy measures assertion age against Now, the periodic
// summary runs on a Ticker, and the high-water wait uses After for its
// timeout. Production code passes Real(); tests pass Fake() and move
// time explicitly with Advance:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go summary.Run(ctx, c, 15*time.Minute, emit)
//	c.WaitForTimers(1)
//	c.Advance(15 * time.Minute)
package clock
