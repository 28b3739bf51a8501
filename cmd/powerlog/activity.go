// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/powerlog/cmd/powerlog/cli"
	"github.com/bureau-foundation/powerlog/lib/activitylog"
	"github.com/bureau-foundation/powerlog/lib/blob"
	"github.com/bureau-foundation/powerlog/lib/service"
)

// exitNoRecords is the exit code of a one-shot read that found nothing
// new.
const exitNoRecords = 2

type activityParams struct {
	connection
	jsonOutput

	statePath   string
	reset       bool
	follow      bool
	interval    time.Duration
	compression string
}

// activityBatch is the data of an activity-log response.
type activityBatch struct {
	Blob     blob.Envelope `cbor:"blob"`
	Cursor   uint64        `cbor:"cursor"`
	Overflow bool          `cbor:"overflow"`
}

// batchOutput is one batch in --json output.
type batchOutput struct {
	Cursor   uint64               `json:"cursor"`
	Overflow bool                 `json:"overflow"`
	Records  []activitylog.Record `json:"records"`
}

func (a *app) activityCommand() *cli.Command {
	var params activityParams
	return &cli.Command{
		Name:    "activity",
		Summary: "Read new records from the activity log",
		Description: `Read the records appended to the activity log since the last read.

The read position is kept in a state file, so consecutive runs print
each record once. If the daemon overwrote records before they were
read, or the stored position belongs to a different daemon, a banner
marks the gap and reading resumes at the oldest record still held.

Exits 2 when there is nothing new (without --follow).`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("activity", pflag.ContinueOnError)
			params.connection.addFlags(flagSet)
			params.jsonOutput.addFlags(flagSet)
			flagSet.StringVar(&params.statePath, "state", defaultStatePath(), "cursor state file")
			flagSet.BoolVar(&params.reset, "reset", false, "ignore the stored cursor and read everything the daemon holds")
			flagSet.BoolVarP(&params.follow, "follow", "f", false, "keep reading as records arrive")
			flagSet.DurationVar(&params.interval, "interval", 5*time.Second, "longest wait between reads with --follow")
			flagSet.StringVar(&params.compression, "compression", "", "blob compression to request: none, lz4, zstd (default: daemon setting)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Print records since the last run", Command: "powerlog activity"},
			{Description: "Follow the log as JSON", Command: "powerlog activity --follow --json"},
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			if _, err := blob.ParseCompression(params.compression); err != nil {
				return err
			}
			return a.runActivity(a.ctx, &params)
		},
	}
}

func (a *app) runActivity(ctx context.Context, params *activityParams) error {
	state, err := loadState(params.statePath)
	if err != nil {
		return err
	}
	cursor := state.cursorFor(params.socketPath)
	if state.Socket != "" && state.Socket != params.socketPath {
		a.logger.Info("stored cursor belongs to another daemon, reading from the oldest record",
			"state", params.statePath,
			"stored_socket", state.Socket,
			"socket", params.socketPath,
		)
	}
	if params.reset {
		cursor = 0
	}

	client := params.client()
	printer := newRecordPrinter(a.stdout)

	for {
		batch, records, err := drainOnce(ctx, client, cursor, params.compression)
		if err != nil {
			if params.follow && ctx.Err() != nil {
				return nil
			}
			return err
		}

		if batch != nil {
			cursor = batch.Cursor
			if err := a.writeBatch(printer, params, batch, records); err != nil {
				return err
			}
			state = cursorState{Socket: params.socketPath, Cursor: cursor, UpdatedAt: time.Now().UTC()}
			if err := saveState(params.statePath, state); err != nil {
				return err
			}
		}

		if !params.follow {
			if batch == nil {
				fmt.Fprintln(a.stderr, "no new records")
				return &cli.ExitError{Code: exitNoRecords}
			}
			return nil
		}

		if err := waitForRecords(ctx, client, params.interval); err != nil && ctx.Err() == nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// drainOnce reads past cursor. A nil batch means nothing new.
func drainOnce(ctx context.Context, client *service.Client, cursor uint64, compression string) (*activityBatch, []activitylog.Record, error) {
	fields := map[string]any{"cursor": cursor}
	if compression != "" {
		fields["compression"] = compression
	}

	var batch activityBatch
	if err := client.Call(ctx, "activity-log", fields, &batch); err != nil {
		if service.HasCode(err, service.CodeNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	records, err := blob.Decode(batch.Blob)
	if err != nil {
		return nil, nil, fmt.Errorf("activity batch at cursor %d: %w", batch.Cursor, err)
	}
	return &batch, records, nil
}

// waitForRecords blocks until the daemon signals high water or
// interval passes. Either way the caller reads next.
func waitForRecords(ctx context.Context, client *service.Client, interval time.Duration) error {
	seconds := max(int(interval/time.Second), 1)
	var response struct {
		Posted bool `cbor:"posted"`
	}
	if err := client.Call(ctx, "wait-high-water", map[string]any{"timeout_seconds": seconds}, &response); err != nil {
		return fmt.Errorf("waiting for activity: %w", err)
	}
	return nil
}

func (a *app) writeBatch(printer *recordPrinter, params *activityParams, batch *activityBatch, records []activitylog.Record) error {
	if records == nil {
		records = []activitylog.Record{}
	}
	if done, err := params.emit(a.stdout, batchOutput{
		Cursor:   batch.Cursor,
		Overflow: batch.Overflow,
		Records:  records,
	}); done {
		return err
	}

	if batch.Overflow {
		printer.overflow(batch.Cursor - uint64(len(records)))
	}
	for _, record := range records {
		printer.record(record)
	}
	return nil
}
