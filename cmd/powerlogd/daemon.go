// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/bureau-foundation/powerlog/lib/activitylog"
	"github.com/bureau-foundation/powerlog/lib/admission"
	"github.com/bureau-foundation/powerlog/lib/assertion"
	"github.com/bureau-foundation/powerlog/lib/blob"
	"github.com/bureau-foundation/powerlog/lib/clock"
	"github.com/bureau-foundation/powerlog/lib/config"
	"github.com/bureau-foundation/powerlog/lib/notify"
	"github.com/bureau-foundation/powerlog/lib/peercred"
	"github.com/bureau-foundation/powerlog/lib/procstats"
	"github.com/bureau-foundation/powerlog/lib/service"
	"github.com/bureau-foundation/powerlog/lib/summary"
	"github.com/bureau-foundation/powerlog/lib/tracker"
)

// aggregateProvider names this daemon in every aggregate it returns.
const aggregateProvider = "powerlogd"

// Daemon owns the process-wide state: one activity log, one
// aggregator, and the tracker feeding both. Socket handlers reach
// everything through it.
type Daemon struct {
	clock     clock.Clock
	logger    *slog.Logger
	startedAt time.Time

	log        *activitylog.Log
	highWater  *notify.Broadcaster
	aggregator *procstats.Aggregator
	tracker    *tracker.Tracker

	entitlements peercred.Entitlements

	// compression applies to readers that do not request one.
	compression blob.Compression

	metrics *metrics
}

func newDaemon(cfg *config.Config, clk clock.Clock, logger *slog.Logger, meter metric.Meter) (*Daemon, error) {
	policy, err := admissionPolicy(cfg)
	if err != nil {
		return nil, err
	}

	compression, err := blob.ParseCompression(cfg.ActivityLog.Compression)
	if err != nil {
		return nil, fmt.Errorf("activity_log.compression: %w", err)
	}

	highWater := &notify.Broadcaster{}
	log, err := activitylog.New(activitylog.Config{
		Capacity:  cfg.ActivityLog.Capacity,
		HighWater: highWater,
		Logger:    logger.With("component", "activitylog"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating activity log: %w", err)
	}
	if cfg.ActivityLog.StartEnabled {
		log.SetEnabled(true)
	}

	instruments, err := newMetrics(meter)
	if err != nil {
		return nil, err
	}

	aggregator := procstats.New(aggregateProvider, logger.With("component", "procstats"))

	var textLog *slog.Logger
	if cfg.Debug.LogAssertionActivity {
		textLog = logger.With("domain", "assertions")
	}

	return &Daemon{
		clock:        clk,
		logger:       logger,
		startedAt:    clk.Now(),
		log:          log,
		highWater:    highWater,
		aggregator:   aggregator,
		entitlements: peercred.Entitlements(cfg.Entitlements),
		compression:  compression,
		metrics:      instruments,
		tracker: tracker.New(tracker.Config{
			Policy:     policy,
			Log:        log,
			Aggregator: aggregator,
			Clock:      clk,
			TextLog:    textLog,
			Logger:     logger.With("component", "tracker"),
		}),
	}, nil
}

// admissionPolicy builds the policy from the admission and debug
// sections. A configured LogOnCreate list replaces the built-in table.
func admissionPolicy(cfg *config.Config) (admission.Policy, error) {
	policy := admission.Default()
	policy.LogNameChanges = cfg.Debug.LogNameChanges
	policy.Synchronous = cfg.Debug.Synchronous
	policy.DisplayOnDelay = cfg.Admission.DisplayOnDelay
	policy.DisplayOffDelay = cfg.Admission.DisplayOffDelay

	if cfg.Admission.LogOnCreate != nil {
		flags := make(map[assertion.Kind]assertion.TypeFlags, len(cfg.Admission.LogOnCreate))
		for _, name := range cfg.Admission.LogOnCreate {
			kind, err := assertion.ParseKind(name)
			if err != nil {
				return policy, fmt.Errorf("admission.log_on_create: %w", err)
			}
			flags[kind] |= assertion.LogOnCreate
		}
		policy.TypeFlags = flags
	}
	return policy, nil
}

// serve runs server and the periodic summary until ctx is cancelled
// or the server stops on its own. A server that fails to start ends
// serve with its error instead of leaving the daemon idle.
func (d *Daemon) serve(ctx context.Context, server *service.SocketServer, summaryInterval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- server.Serve(ctx)
	}()

	go summary.Run(ctx, d.clock, summaryInterval, func(time.Time) {
		written := d.tracker.LogAll()
		d.logger.Debug("periodic assertion summary", "assertions", written)
	})

	select {
	case err := <-socketDone:
		if err != nil {
			return fmt.Errorf("socket server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	d.logger.Info("shutting down")
	if err := <-socketDone; err != nil {
		return fmt.Errorf("socket server: %w", err)
	}
	return nil
}
