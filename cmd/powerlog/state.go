// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// cursorState is the reader's position in the activity log, persisted
// between runs.
type cursorState struct {
	// Socket identifies the daemon the cursor belongs to. A cursor is
	// meaningless against a different daemon.
	Socket string `yaml:"socket"`

	Cursor    uint64    `yaml:"cursor"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// defaultStatePath is $XDG_STATE_HOME/powerlog/cursor.yaml, falling
// back to ~/.local/state.
func defaultStatePath() string {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "powerlog-cursor.yaml")
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "powerlog", "cursor.yaml")
}

// loadState reads the state file. A missing file is the zero state.
func loadState(path string) (cursorState, error) {
	var state cursorState
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("reading cursor state: %w", err)
	}
	if err := yaml.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("parsing cursor state %s: %w", path, err)
	}
	return state, nil
}

// saveState writes the state file atomically.
func saveState(path string, state cursorState) error {
	data, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding cursor state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	temporary, err := os.CreateTemp(filepath.Dir(path), ".cursor-*.yaml")
	if err != nil {
		return fmt.Errorf("creating cursor state: %w", err)
	}
	defer os.Remove(temporary.Name())

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing cursor state: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("writing cursor state: %w", err)
	}
	if err := os.Rename(temporary.Name(), path); err != nil {
		return fmt.Errorf("replacing cursor state: %w", err)
	}
	return nil
}

// cursorFor returns the stored cursor if it belongs to socket, else 0.
func (s cursorState) cursorFor(socket string) uint64 {
	if s.Socket != socket {
		return 0
	}
	return s.Cursor
}
