// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"

	"github.com/bureau-foundation/powerlog/lib/activitylog"
	"github.com/bureau-foundation/powerlog/lib/assertion"
	"github.com/bureau-foundation/powerlog/lib/service"
	"github.com/bureau-foundation/powerlog/lib/summary"
	"github.com/bureau-foundation/powerlog/lib/tracker"
)

// registerActions registers all socket actions on the server.
//
// Only activity-log distinguishes callers: the entitled reader resets
// the unread counter and gets cold-start catch-up. Every other action
// is open to any local caller that can reach the socket.
func (d *Daemon) registerActions(server *service.SocketServer) {
	server.Handle("status", d.handleStatus)

	// Producer side.
	server.Handle("assertion-event", d.handleAssertionEvent)
	server.Handle("set-display-state", d.handleSetDisplayState)
	server.Handle("set-power-source", d.handleSetPowerSource)
	server.Handle("set-kernel-assertions", d.handleSetKernelAssertions)

	// Reader side.
	server.Handle("set-activity-log", d.handleSetActivityLog)
	server.Handle("activity-log", d.handleActivityLog)
	server.Handle("wait-high-water", d.handleWaitHighWater)
	server.Handle("set-activity-aggregate", d.handleSetActivityAggregate)
	server.Handle("activity-aggregate", d.handleActivityAggregate)
}

// statusResponse is the response to the "status" action.
type statusResponse struct {
	ActivityLog        activitylog.Status `cbor:"activity_log"`
	AggregationEnabled bool               `cbor:"aggregation_enabled"`
	Tracker            tracker.State      `cbor:"tracker"`
	UptimeSeconds      float64            `cbor:"uptime_seconds"`
}

func (d *Daemon) handleStatus(ctx context.Context, raw []byte) (any, error) {
	return statusResponse{
		ActivityLog:        d.log.Status(),
		AggregationEnabled: d.aggregator.Enabled(),
		Tracker:            d.tracker.State(),
		UptimeSeconds:      d.clock.Now().Sub(d.startedAt).Seconds(),
	}, nil
}

type assertionEventRequest struct {
	Event *tracker.Event `cbor:"event"`
}

// eventFields decodes the same request as assertionEventRequest and
// records which fields the producer actually sent. The zero Action and
// Kind are valid values, so absence cannot be read off tracker.Event.
type eventFields struct {
	Event struct {
		Action *assertion.Action `cbor:"action"`
		Kind   *assertion.Kind   `cbor:"kind"`
	} `cbor:"event"`
}

func (f eventFields) check() error {
	if f.Event.Action == nil {
		return service.Errorf(service.CodeBadArgument, "missing required field: event.action")
	}
	if *f.Event.Action == assertion.Create && f.Event.Kind == nil {
		return service.Errorf(service.CodeBadArgument, "missing required field: event.kind")
	}
	return nil
}

func (d *Daemon) handleAssertionEvent(ctx context.Context, raw []byte) (any, error) {
	var request assertionEventRequest
	if err := service.Decode(raw, &request); err != nil {
		return nil, err
	}
	if request.Event == nil {
		return nil, service.Errorf(service.CodeBadArgument, "missing required field: event")
	}
	var fields eventFields
	if err := service.Decode(raw, &fields); err != nil {
		return nil, err
	}
	if err := fields.check(); err != nil {
		return nil, err
	}

	outcome, err := d.tracker.Handle(*request.Event)
	if err != nil {
		if errors.Is(err, tracker.ErrUnknownAssertion) {
			return nil, service.WithCode(service.CodeNotFound, err)
		}
		return nil, service.WithCode(service.CodeBadArgument, err)
	}
	d.metrics.recordOutcome(ctx, request.Event.Action, outcome)
	return outcome, nil
}

type setDisplayStateRequest struct {
	Asleep *bool `cbor:"asleep"`
}

func (d *Daemon) handleSetDisplayState(ctx context.Context, raw []byte) (any, error) {
	var request setDisplayStateRequest
	if err := service.Decode(raw, &request); err != nil {
		return nil, err
	}
	if request.Asleep == nil {
		return nil, service.Errorf(service.CodeBadArgument, "missing required field: asleep")
	}
	d.tracker.SetDisplayAsleep(*request.Asleep)
	return nil, nil
}

type setPowerSourceRequest struct {
	Source         string `cbor:"source"`
	BatteryPresent bool   `cbor:"battery_present"`
	Charge         int    `cbor:"charge"`
}

func (d *Daemon) handleSetPowerSource(ctx context.Context, raw []byte) (any, error) {
	var request setPowerSourceRequest
	if err := service.Decode(raw, &request); err != nil {
		return nil, err
	}
	source, err := summary.ParseSource(request.Source)
	if err != nil {
		return nil, service.WithCode(service.CodeBadArgument, err)
	}
	if request.Charge < 0 || request.Charge > 100 {
		return nil, service.Errorf(service.CodeBadArgument, "charge %d outside 0-100", request.Charge)
	}
	d.tracker.SetPower(summary.PowerState{
		Source:         source,
		BatteryPresent: request.BatteryPresent,
		Charge:         request.Charge,
	})
	return nil, nil
}

type setKernelAssertionsRequest struct {
	CPU     bool `cbor:"cpu"`
	Display bool `cbor:"display"`
}

func (d *Daemon) handleSetKernelAssertions(ctx context.Context, raw []byte) (any, error) {
	var request setKernelAssertionsRequest
	if err := service.Decode(raw, &request); err != nil {
		return nil, err
	}
	var bits assertion.Bitmask
	if request.CPU {
		bits |= assertion.KernelCPU
	}
	if request.Display {
		bits |= assertion.KernelDisplay
	}
	d.tracker.SetKernelBits(bits)
	return nil, nil
}
