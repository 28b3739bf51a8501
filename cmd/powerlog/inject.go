// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/powerlog/cmd/powerlog/cli"
	"github.com/bureau-foundation/powerlog/lib/assertion"
	"github.com/bureau-foundation/powerlog/lib/summary"
	"github.com/bureau-foundation/powerlog/lib/tracker"
)

type eventParams struct {
	connection
	jsonOutput

	action        string
	pid           int
	process       string
	id            uint64
	kind          string
	name          string
	qualifiers    []string
	onBehalfOfPID int
	reason        string
	skipLogging   bool
	backtrace     []string
}

// event converts the flags into a tracker event.
func (p *eventParams) event() (tracker.Event, error) {
	action, err := assertion.ParseAction(p.action)
	if err != nil {
		return tracker.Event{}, err
	}
	kind, err := assertion.ParseKind(p.kind)
	if err != nil {
		return tracker.Event{}, err
	}
	if p.pid <= 0 {
		return tracker.Event{}, fmt.Errorf("--pid is required")
	}
	return tracker.Event{
		Action:           action,
		PID:              p.pid,
		ProcessName:      p.process,
		AssertionID:      p.id,
		Kind:             kind,
		Name:             p.name,
		Qualifiers:       p.qualifiers,
		SkipLogging:      p.skipLogging,
		OnBehalfOfPID:    p.onBehalfOfPID,
		OnBehalfOfReason: p.reason,
		Backtrace:        p.backtrace,
	}, nil
}

func (a *app) eventCommand() *cli.Command {
	var params eventParams
	return &cli.Command{
		Name:    "event",
		Summary: "Submit an assertion transition as a producer",
		Description: `Submit one assertion transition to the daemon, as a power-management
producer would. Useful for exercising the log by hand.

--action takes the record names: Created, Retain, TurnedOn, Released,
ClientDied, TimedOut, TurnedOff, NameChange, CapExpired.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("event", pflag.ContinueOnError)
			params.connection.addFlags(flagSet)
			params.jsonOutput.addFlags(flagSet)
			flagSet.StringVar(&params.action, "action", assertion.Create.String(), "transition")
			flagSet.IntVar(&params.pid, "pid", 0, "producing process id")
			flagSet.StringVar(&params.process, "process", "", "producing process name")
			flagSet.Uint64Var(&params.id, "id", 1, "assertion id within the process")
			flagSet.StringVar(&params.kind, "type", assertion.PreventUserIdleSystemSleep.String(), "assertion type")
			flagSet.StringVar(&params.name, "name", "", "assertion name, or the new name for NameChange")
			flagSet.StringSliceVar(&params.qualifiers, "qualifier", nil, "resource qualifier (repeatable)")
			flagSet.IntVar(&params.onBehalfOfPID, "on-behalf-of", 0, "pid the assertion is held for")
			flagSet.StringVar(&params.reason, "reason", "", "on-behalf-of reason")
			flagSet.BoolVar(&params.skipLogging, "skip-logging", false, "exclude the assertion from both logs")
			flagSet.StringArrayVar(&params.backtrace, "frame", nil, "creator backtrace frame (repeatable)")
			return flagSet
		},
		Examples: []cli.Example{
			{Description: "Hold the system awake", Command: "powerlog event --pid 412 --process backupd --type PreventSystemSleep --name nightly"},
			{Description: "Release it", Command: "powerlog event --action Released --pid 412"},
		},
		Run: func(args []string) error {
			event, err := params.event()
			if err != nil {
				return err
			}
			var outcome tracker.Outcome
			if err := params.client().Call(a.ctx, "assertion-event", map[string]any{"event": event}, &outcome); err != nil {
				return err
			}
			if done, err := params.emit(a.stdout, outcome); done {
				return err
			}
			fmt.Fprintf(a.stdout, "%s: %d recorded, %d dropped, %d text-logged\n",
				event.Action, outcome.Recorded, outcome.Dropped, outcome.TextLogged)
			return nil
		},
	}
}

func (a *app) displayCommand() *cli.Command {
	var params connection
	return &cli.Command{
		Name:    "display",
		Summary: "Report the display as asleep or awake",
		Usage:   "powerlog display asleep|awake [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("display", pflag.ContinueOnError)
			params.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected asleep or awake")
			}
			var asleep bool
			switch args[0] {
			case "asleep":
				asleep = true
			case "awake":
			default:
				return fmt.Errorf("display state %q: expected asleep or awake", args[0])
			}
			return params.client().Call(a.ctx, "set-display-state", map[string]any{"asleep": asleep}, nil)
		},
	}
}

func (a *app) powerCommand() *cli.Command {
	var params struct {
		connection
		charge int
	}
	return &cli.Command{
		Name:    "power",
		Summary: "Report the power source",
		Usage:   "powerlog power ac|battery [--charge N] [flags]",
		Description: `Report the current power source. Pass --charge when a battery is
installed; it appears in summary lines.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("power", pflag.ContinueOnError)
			params.addFlags(flagSet)
			flagSet.IntVar(&params.charge, "charge", -1, "battery charge percentage; omit if no battery is installed")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected ac or battery")
			}
			if _, err := summary.ParseSource(args[0]); err != nil {
				return err
			}
			fields := map[string]any{"source": args[0]}
			if params.charge >= 0 {
				fields["battery_present"] = true
				fields["charge"] = params.charge
			}
			if err := params.client().Call(a.ctx, "set-power-source", fields, nil); err != nil {
				return err
			}
			return nil
		},
	}
}
