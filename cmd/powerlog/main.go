// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/powerlog/cmd/powerlog/cli"
	"github.com/bureau-foundation/powerlog/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := &app{
		ctx:    ctx,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: cli.NewCommandLogger(),
	}
	return application.root().Execute(os.Args[1:])
}
