// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package summary

import (
	"context"
	"time"

	"github.com/bureau-foundation/powerlog/lib/clock"
)

// DefaultInterval is the period between full assertion summaries.
const DefaultInterval = 15 * time.Minute

// Run calls snapshot every interval until ctx is cancelled. The first
// call happens one interval after Run starts. A zero interval selects
// DefaultInterval.
func Run(ctx context.Context, clk clock.Clock, interval time.Duration, snapshot func(now time.Time)) {
	if interval == 0 {
		interval = DefaultInterval
	}

	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			snapshot(now)
		case <-ctx.Done():
			return
		}
	}
}
