// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"time"

	"github.com/bureau-foundation/powerlog/lib/activitylog"
	"github.com/bureau-foundation/powerlog/lib/blob"
	"github.com/bureau-foundation/powerlog/lib/peercred"
	"github.com/bureau-foundation/powerlog/lib/procstats"
	"github.com/bureau-foundation/powerlog/lib/service"
)

// maxHighWaterWait caps a single wait-high-water call. It stays below
// the client's response timeout.
const maxHighWaterWait = 30 * time.Second

type setEnabledRequest struct {
	Enabled *bool `cbor:"enabled"`
}

type enabledResponse struct {
	Enabled bool `cbor:"enabled"`
}

func decodeEnabled(raw []byte) (bool, error) {
	var request setEnabledRequest
	if err := service.Decode(raw, &request); err != nil {
		return false, err
	}
	if request.Enabled == nil {
		return false, service.Errorf(service.CodeBadArgument, "missing required field: enabled")
	}
	return *request.Enabled, nil
}

func (d *Daemon) handleSetActivityLog(ctx context.Context, raw []byte) (any, error) {
	enabled, err := decodeEnabled(raw)
	if err != nil {
		return nil, err
	}
	d.log.SetEnabled(enabled)
	d.logger.Info("activity logging reference changed", "enable", enabled, "enabled", d.log.Enabled())
	return enabledResponse{Enabled: d.log.Enabled()}, nil
}

type activityLogRequest struct {
	// Cursor is required. A new reader passes 0.
	Cursor *uint64 `cbor:"cursor"`

	// Compression overrides the configured default.
	Compression string `cbor:"compression,omitempty"`
}

type activityLogResponse struct {
	Blob     blob.Envelope `cbor:"blob"`
	Cursor   uint64        `cbor:"cursor"`
	Overflow bool          `cbor:"overflow"`
}

// handleActivityLog drains the activity log past the caller's cursor.
// The caller is the entitled reader if its UID holds the
// activity-logging entitlement.
func (d *Daemon) handleActivityLog(ctx context.Context, raw []byte) (any, error) {
	var request activityLogRequest
	if err := service.Decode(raw, &request); err != nil {
		return nil, err
	}
	if request.Cursor == nil {
		return nil, service.WithCode(service.CodeBadArgument,
			errors.Join(activitylog.ErrBadArgument, errors.New("missing required field: cursor")))
	}

	compression := d.compression
	if request.Compression != "" {
		parsed, err := blob.ParseCompression(request.Compression)
		if err != nil {
			return nil, service.WithCode(service.CodeBadArgument, err)
		}
		compression = parsed
	}

	entitled := d.entitlements.HasContext(ctx, peercred.ActivityLogging)
	batch, err := d.log.Drain(*request.Cursor, entitled)
	switch {
	case errors.Is(err, activitylog.ErrNotFound):
		return nil, service.WithCode(service.CodeNotFound, err)
	case errors.Is(err, activitylog.ErrInternal):
		d.metrics.recordDrain(ctx, 0, true, entitled)
		return nil, service.WithCode(service.CodeInternal, err)
	case err != nil:
		return nil, err
	}

	envelope, err := blob.Encode(batch.Records, compression)
	if err != nil {
		d.logger.Error("encoding activity batch",
			"records", len(batch.Records),
			"compression", compression,
			"error", err,
		)
		return nil, service.WithCode(service.CodeNoMemory, errors.Join(activitylog.ErrNoMemory, err))
	}

	d.metrics.recordDrain(ctx, len(batch.Records), batch.Overflow, entitled)
	return activityLogResponse{
		Blob:     envelope,
		Cursor:   batch.Cursor,
		Overflow: batch.Overflow,
	}, nil
}

type waitHighWaterRequest struct {
	TimeoutSeconds int `cbor:"timeout_seconds,omitempty"`
}

type waitHighWaterResponse struct {
	// Posted is false when the wait timed out.
	Posted bool `cbor:"posted"`
}

// handleWaitHighWater blocks until the activity log posts its
// high-water notification or the timeout elapses. A zero or oversized
// timeout is clamped to maxHighWaterWait.
func (d *Daemon) handleWaitHighWater(ctx context.Context, raw []byte) (any, error) {
	var request waitHighWaterRequest
	if err := service.Decode(raw, &request); err != nil {
		return nil, err
	}
	if request.TimeoutSeconds < 0 {
		return nil, service.Errorf(service.CodeBadArgument, "timeout_seconds must not be negative")
	}
	timeout := time.Duration(request.TimeoutSeconds) * time.Second
	if timeout == 0 || timeout > maxHighWaterWait {
		timeout = maxHighWaterWait
	}

	subscription := d.highWater.Subscribe()
	defer subscription.Close()

	select {
	case <-subscription.C:
		return waitHighWaterResponse{Posted: true}, nil
	case <-d.clock.After(timeout):
		return waitHighWaterResponse{Posted: false}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Daemon) handleSetActivityAggregate(ctx context.Context, raw []byte) (any, error) {
	enabled, err := decodeEnabled(raw)
	if err != nil {
		return nil, err
	}
	return enabledResponse{Enabled: d.tracker.SetAggregation(enabled)}, nil
}

func (d *Daemon) handleActivityAggregate(ctx context.Context, raw []byte) (any, error) {
	aggregate, err := d.tracker.Aggregate()
	if err != nil {
		if errors.Is(err, procstats.ErrNotOpen) {
			return nil, service.WithCode(service.CodeNotOpen, err)
		}
		return nil, err
	}
	return aggregate, nil
}
