// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bureau-foundation/powerlog/lib/assertion"
	"github.com/bureau-foundation/powerlog/lib/tracker"
)

// metrics holds the daemon's activity log counters.
type metrics struct {
	appended  metric.Int64Counter
	dropped   metric.Int64Counter
	drained   metric.Int64Counter
	overflows metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	appended, err := meter.Int64Counter("powerlog.activity.appended",
		metric.WithDescription("Records appended to the activity log."),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating appended counter: %w", err)
	}
	dropped, err := meter.Int64Counter("powerlog.activity.dropped",
		metric.WithDescription("Admitted records refused because activity logging was disabled."),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	drained, err := meter.Int64Counter("powerlog.activity.drained",
		metric.WithDescription("Records delivered to readers."),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating drained counter: %w", err)
	}
	overflows, err := meter.Int64Counter("powerlog.activity.overflows",
		metric.WithDescription("Drains that reported lost records or a resync."),
		metric.WithUnit("{drain}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating overflow counter: %w", err)
	}
	return &metrics{
		appended:  appended,
		dropped:   dropped,
		drained:   drained,
		overflows: overflows,
	}, nil
}

func (m *metrics) recordOutcome(ctx context.Context, action assertion.Action, outcome tracker.Outcome) {
	attributes := metric.WithAttributes(attribute.String("action", action.String()))
	if outcome.Recorded > 0 {
		m.appended.Add(ctx, int64(outcome.Recorded), attributes)
	}
	if outcome.Dropped > 0 {
		m.dropped.Add(ctx, int64(outcome.Dropped), attributes)
	}
}

func (m *metrics) recordDrain(ctx context.Context, records int, overflow, entitled bool) {
	attributes := metric.WithAttributes(attribute.Bool("entitled", entitled))
	m.drained.Add(ctx, int64(records), attributes)
	if overflow {
		m.overflows.Add(ctx, 1, attributes)
	}
}
