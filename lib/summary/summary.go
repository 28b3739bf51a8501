// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package summary

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bureau-foundation/powerlog/lib/assertion"
)

// Source is where the system is drawing power from.
type Source uint8

const (
	AC Source = iota
	Battery
)

func (s Source) String() string {
	if s == Battery {
		return "Batt"
	}
	return "AC"
}

// ParseSource accepts "ac", "battery", or "batt" in any case.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(name) {
	case "ac":
		return AC, nil
	case "battery", "batt":
		return Battery, nil
	}
	return 0, fmt.Errorf("unknown power source %q", name)
}

// PowerState is the power source plus battery charge, if a battery is
// installed.
type PowerState struct {
	Source         Source `json:"source"`
	BatteryPresent bool   `json:"battery_present"`
	Charge         int    `json:"charge,omitempty"`
}

// Line formats a summary line.
func Line(power PowerState, bits assertion.Bitmask) string {
	var builder strings.Builder
	builder.WriteString("Summary- [System:")
	names := bits.Names()
	if len(names) == 0 {
		builder.WriteString(" No Assertions")
	}
	for _, name := range names {
		builder.WriteString(" ")
		builder.WriteString(name)
	}
	builder.WriteString("] Using ")
	builder.WriteString(power.Source.String())
	if power.BatteryPresent {
		fmt.Fprintf(&builder, "(Charge: %d)", power.Charge)
	}
	return builder.String()
}

// Emitter writes summary lines when the system state changes.
type Emitter struct {
	logger *slog.Logger

	mu       sync.Mutex
	emitted  bool
	previous struct {
		source Source
		bits   assertion.Bitmask
	}
}

// NewEmitter returns an Emitter writing to logger. The first MaybeEmit
// always writes.
func NewEmitter(logger *slog.Logger) *Emitter {
	return &Emitter{logger: logger}
}

// MaybeEmit writes a summary line if the power source or bits differ
// from the last call, and reports whether it did.
func (e *Emitter) MaybeEmit(power PowerState, bits assertion.Bitmask) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.emitted && e.previous.source == power.Source && e.previous.bits == bits {
		return false
	}
	e.emitted = true
	e.previous.source = power.Source
	e.previous.bits = bits

	e.logger.Info(Line(power, bits),
		"action", assertion.Summary.String(),
	)
	return true
}
