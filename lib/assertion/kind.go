// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assertion

import (
	"fmt"
	"strings"
)

// Kind is a system assertion type.
type Kind uint8

const (
	PreventUserIdleSystemSleep Kind = iota
	PreventUserIdleDisplaySleep
	PreventSystemSleep
	UserIsActive
	PushServiceTask
	BackgroundTask
	SystemIsActive
	PreventSystemSleepSilentRunning
	DisplayWake
	InternalPreventDisplaySleep
	NetworkClientActive
	InteractivePushServiceTask
	EnableIdleSleep

	// NumKinds is the number of defined kinds.
	NumKinds
)

type kindInfo struct {
	name   string
	short  string
	effect Effect
}

var kinds = [NumKinds]kindInfo{
	PreventUserIdleSystemSleep:      {"PreventUserIdleSystemSleep", "PrevIdle", PreventIdleSleepEffect},
	PreventUserIdleDisplaySleep:     {"PreventUserIdleDisplaySleep", "PrevDisp", PreventDisplaySleepEffect},
	PreventSystemSleep:              {"PreventSystemSleep", "PrevSleep", PreventDemandSleepEffect},
	UserIsActive:                    {"UserIsActive", "DeclUser", PreventDisplaySleepEffect},
	PushServiceTask:                 {"PushServiceTask", "PushSrvc", PreventIdleSleepEffect},
	BackgroundTask:                  {"BackgroundTask", "BGTask", PreventIdleSleepEffect},
	SystemIsActive:                  {"SystemIsActive", "SysAct", PreventIdleSleepEffect},
	PreventSystemSleepSilentRunning: {"PreventSystemSleepSilentRunning", "SRPrevSleep", PreventDemandSleepEffect},
	DisplayWake:                     {"DisplayWake", "DispWake", PreventDisplaySleepEffect},
	InternalPreventDisplaySleep:     {"InternalPreventDisplaySleep", "IntPrevDisp", PreventDisplaySleepEffect},
	NetworkClientActive:             {"NetworkClientActive", "NetAcc", NoEffect},
	InteractivePushServiceTask:      {"InteractivePushServiceTask", "IPushSrvc", PreventIdleSleepEffect},
	EnableIdleSleep:                 {"EnableIdleSleep", "", NoEffect},
}

// String returns the assertion type name carried in records.
func (k Kind) String() string {
	if k < NumKinds {
		return kinds[k].name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ShortName returns the abbreviation used in summary lines. Kinds
// that never appear in summaries return "".
func (k Kind) ShortName() string {
	if k < NumKinds {
		return kinds[k].short
	}
	return ""
}

// Effect returns the accounting bucket an assertion of this kind is
// charged to in per-process statistics.
func (k Kind) Effect() Effect {
	if k < NumKinds {
		return kinds[k].effect
	}
	return NoEffect
}

// Bit returns the system bitmask bit that is set while at least one
// assertion of this kind is in effect.
func (k Kind) Bit() Bitmask {
	return 1 << Bitmask(k)
}

// ParseKind accepts a type name as produced by String. Matching is
// case-insensitive because producers and config files are not
// consistent about it.
func ParseKind(name string) (Kind, error) {
	for kind := Kind(0); kind < NumKinds; kind++ {
		if strings.EqualFold(kinds[kind].name, name) {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown assertion type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k >= NumKinds {
		return nil, fmt.Errorf("cannot marshal unknown assertion type %d", uint8(k))
	}
	return []byte(kinds[k].name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// TypeFlags configure how assertions of a kind are treated.
type TypeFlags uint32

const (
	// LogOnCreate writes creation-class events of the kind to the
	// text log as they happen.
	LogOnCreate TypeFlags = 1 << iota
)

// DefaultTypeFlags returns the built-in flag table. Kinds that hold
// the whole system awake are surfaced on creation; the rest are only
// logged when they turn out to be long-lived.
func DefaultTypeFlags() map[Kind]TypeFlags {
	return map[Kind]TypeFlags{
		PreventSystemSleep:  LogOnCreate,
		UserIsActive:        LogOnCreate,
		SystemIsActive:      LogOnCreate,
		NetworkClientActive: LogOnCreate,
	}
}

// Bitmask is the system-wide set of assertion kinds currently in
// effect, plus kernel-level assertion bits.
type Bitmask uint32

const (
	// KernelCPU is set while a driver holds the CPU awake.
	KernelCPU Bitmask = 1 << 30
	// KernelDisplay is set while a driver prevents display sleep.
	KernelDisplay Bitmask = 1 << 31
)

// Names returns the short names of every set bit, user kinds first in
// kind order, then kernel bits.
func (b Bitmask) Names() []string {
	var names []string
	for kind := Kind(0); kind < NumKinds; kind++ {
		if b&kind.Bit() != 0 && kind.ShortName() != "" {
			names = append(names, kind.ShortName())
		}
	}
	if b&KernelCPU != 0 {
		names = append(names, "kCPU")
	}
	if b&KernelDisplay != 0 {
		names = append(names, "kDisp")
	}
	return names
}
