// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	"github.com/bureau-foundation/powerlog/lib/clock"
	"github.com/bureau-foundation/powerlog/lib/config"
	"github.com/bureau-foundation/powerlog/lib/process"
	"github.com/bureau-foundation/powerlog/lib/service"
	"github.com/bureau-foundation/powerlog/lib/version"
)

// meterName scopes every instrument the daemon registers.
const meterName = "github.com/bureau-foundation/powerlog/cmd/powerlogd"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flags := pflag.NewFlagSet("powerlogd", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to config file (default: $POWERLOG_CONFIG)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		version.Print(os.Stdout, "powerlogd")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(os.Stderr, cfg.Daemon.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureSocketDirectory(); err != nil {
		return err
	}

	clk := clock.Real()
	daemon, err := newDaemon(cfg, clk, logger, otel.Meter(meterName))
	if err != nil {
		return err
	}

	socketServer := service.NewSocketServer(cfg.Daemon.SocketPath, logger)
	daemon.registerActions(socketServer)

	logger.Info("powerlogd starting",
		"version", version.Info(),
		"environment", cfg.Environment,
		"socket", cfg.Daemon.SocketPath,
		"capacity", cfg.ActivityLog.Capacity,
		"logging_enabled", daemon.log.Enabled(),
	)

	return daemon.serve(ctx, socketServer, cfg.Summary.Interval)
}

// loadConfig reads the config file named by --config, then
// POWERLOG_CONFIG. With neither set the defaults are used as-is.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("POWERLOG_CONFIG") != "" {
		return config.Load()
	}
	cfg := config.Default()
	cfg.Resolve()
	return cfg, nil
}

// newLogger returns a JSON logger writing to w at the named level.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parsed})), nil
}
