// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/powerlog/cmd/powerlog/cli"
	"github.com/bureau-foundation/powerlog/lib/config"
	"github.com/bureau-foundation/powerlog/lib/service"
	"github.com/bureau-foundation/powerlog/lib/version"
)

// app carries what every command needs. Tests substitute the writers
// and the context.
type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:        "powerlog",
		Description: "Read and control the powerlogd assertion activity log.",
		HelpOutput:  a.stderr,
		Subcommands: []*cli.Command{
			a.activityCommand(),
			a.enableCommand(),
			a.disableCommand(),
			a.aggregateCommand(),
			a.statusCommand(),
			a.eventCommand(),
			a.displayCommand(),
			a.powerCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func([]string) error {
					version.Print(a.stdout, "powerlog")
					return nil
				},
			},
		},
	}
}

// connection holds the flags shared by every command that talks to the
// daemon.
type connection struct {
	socketPath string
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.socketPath, "socket", defaultSocketPath(), "powerlogd socket path (env: POWERLOG_SOCKET)")
}

func (c *connection) client() *service.Client {
	return service.NewClient(c.socketPath)
}

// defaultSocketPath is $POWERLOG_SOCKET, or the daemon's default
// socket path.
func defaultSocketPath() string {
	if path := os.Getenv("POWERLOG_SOCKET"); path != "" {
		return path
	}
	cfg := config.Default()
	cfg.Resolve()
	return cfg.Daemon.SocketPath
}

// jsonOutput adds --json to a command.
type jsonOutput struct {
	enabled bool
}

func (j *jsonOutput) addFlags(flagSet *pflag.FlagSet) {
	flagSet.BoolVar(&j.enabled, "json", false, "output as JSON")
}

// emit writes value as JSON if --json is set and reports whether it
// did.
func (j *jsonOutput) emit(w io.Writer, value any) (bool, error) {
	if !j.enabled {
		return false, nil
	}
	return true, cli.WriteJSON(w, value)
}
