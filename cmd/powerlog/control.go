// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/powerlog/cmd/powerlog/cli"
	"github.com/bureau-foundation/powerlog/lib/activitylog"
	"github.com/bureau-foundation/powerlog/lib/procstats"
	"github.com/bureau-foundation/powerlog/lib/tracker"
)

type enabledResult struct {
	Enabled bool `cbor:"enabled" json:"enabled"`
}

func (a *app) enableCommand() *cli.Command {
	return a.setLoggingCommand("enable", true,
		"Take a reference on activity logging",
		"Activity logging stays on while any client holds a reference.")
}

func (a *app) disableCommand() *cli.Command {
	return a.setLoggingCommand("disable", false,
		"Drop a reference on activity logging",
		"Logging stops once every reference is dropped. Extra disables are ignored.")
}

func (a *app) setLoggingCommand(name string, enabled bool, summary, description string) *cli.Command {
	var params struct {
		connection
		jsonOutput
	}
	return &cli.Command{
		Name:        name,
		Summary:     summary,
		Description: summary + ".\n\n" + description,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			params.connection.addFlags(flagSet)
			params.jsonOutput.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			var result enabledResult
			if err := params.client().Call(a.ctx, "set-activity-log", map[string]any{"enabled": enabled}, &result); err != nil {
				return err
			}
			if done, err := params.emit(a.stdout, result); done {
				return err
			}
			fmt.Fprintf(a.stdout, "activity logging %s\n", onOff(result.Enabled))
			return nil
		},
	}
}

func (a *app) aggregateCommand() *cli.Command {
	var params struct {
		connection
		jsonOutput
		enable  bool
		disable bool
	}
	return &cli.Command{
		Name:    "aggregate",
		Summary: "Show per-process assertion time",
		Description: `Show how long each process has held assertions, per effect.

Aggregation must have been enabled (--enable) before any time is
collected. Each call closes the accounting window; processes that have
exited are shown once more and then forgotten.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("aggregate", pflag.ContinueOnError)
			params.connection.addFlags(flagSet)
			params.jsonOutput.addFlags(flagSet)
			flagSet.BoolVar(&params.enable, "enable", false, "take a reference on aggregation")
			flagSet.BoolVar(&params.disable, "disable", false, "drop a reference on aggregation")
			return flagSet
		},
		Run: func(args []string) error {
			client := params.client()
			if params.enable && params.disable {
				return fmt.Errorf("--enable and --disable are mutually exclusive")
			}
			if params.enable || params.disable {
				var result enabledResult
				if err := client.Call(a.ctx, "set-activity-aggregate", map[string]any{"enabled": params.enable}, &result); err != nil {
					return err
				}
				if done, err := params.emit(a.stdout, result); done {
					return err
				}
				fmt.Fprintf(a.stdout, "aggregation %s\n", onOff(result.Enabled))
				return nil
			}

			var aggregate procstats.Aggregate
			if err := client.Call(a.ctx, "activity-aggregate", nil, &aggregate); err != nil {
				return err
			}
			if done, err := params.emit(a.stdout, aggregate); done {
				return err
			}
			return writeAggregate(a.stdout, aggregate)
		},
	}
}

func writeAggregate(w io.Writer, aggregate procstats.Aggregate) error {
	fmt.Fprintf(w, "%s / %s / %s at %s\n\n", aggregate.Provider, aggregate.Group, aggregate.Subgroup,
		aggregate.Time.Format(time.RFC3339))

	table := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	header := []string{"PID", "PROCESS"}
	for _, effect := range effectColumns() {
		header = append(header, effect.String())
	}
	fmt.Fprintln(table, strings.Join(header, "\t"))
	for _, channel := range aggregate.Channels {
		seconds := channel.Seconds()
		row := []string{fmt.Sprint(channel.PID), channel.Name}
		for _, effect := range effectColumns() {
			row = append(row, fmt.Sprintf("%.0f%s", seconds[effect], aggregate.Unit))
		}
		fmt.Fprintln(table, strings.Join(row, "\t"))
	}
	return table.Flush()
}

// daemonStatus mirrors powerlogd's status response.
type daemonStatus struct {
	ActivityLog        activitylog.Status `cbor:"activity_log" json:"activity_log"`
	AggregationEnabled bool               `cbor:"aggregation_enabled" json:"aggregation_enabled"`
	Tracker            tracker.State      `cbor:"tracker" json:"tracker"`
	UptimeSeconds      float64            `cbor:"uptime_seconds" json:"uptime_seconds"`
}

func (a *app) statusCommand() *cli.Command {
	var params struct {
		connection
		jsonOutput
	}
	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon status",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			params.connection.addFlags(flagSet)
			params.jsonOutput.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			var status daemonStatus
			if err := params.client().Call(a.ctx, "status", nil, &status); err != nil {
				return err
			}
			if done, err := params.emit(a.stdout, status); done {
				return err
			}

			log := status.ActivityLog
			unread := fmt.Sprint(log.Unread)
			if log.UnreadUnknown {
				unread = "unknown (high water posted)"
			}
			system := "No Assertions"
			if len(status.Tracker.System) > 0 {
				system = strings.Join(status.Tracker.System, " ")
			}

			table := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(table, "uptime:\t%s\n", time.Duration(status.UptimeSeconds*float64(time.Second)).Round(time.Second))
			fmt.Fprintf(table, "activity logging:\t%s (%d references)\n", onOff(log.EnableCount > 0), log.EnableCount)
			fmt.Fprintf(table, "records:\t%d of %d resident, write cursor %d\n", log.Resident, log.Capacity, log.WriteCursor)
			fmt.Fprintf(table, "unread:\t%s\n", unread)
			fmt.Fprintf(table, "aggregation:\t%s\n", onOff(status.AggregationEnabled))
			fmt.Fprintf(table, "assertions:\t%d across %d processes\n", status.Tracker.Assertions, status.Tracker.Processes)
			fmt.Fprintf(table, "system:\t%s\n", system)
			power := status.Tracker.Power.Source.String()
			if status.Tracker.Power.BatteryPresent {
				power += fmt.Sprintf(" (charge %d%%)", status.Tracker.Power.Charge)
			}
			display := "awake"
			if status.Tracker.DisplayAsleep {
				display = "asleep"
			}
			fmt.Fprintf(table, "power:\t%s\n", power)
			fmt.Fprintf(table, "display:\t%s\n", display)
			return table.Flush()
		},
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
