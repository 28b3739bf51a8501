// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package peercred

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"

	"golang.org/x/sys/unix"
)

// ActivityLogging is the entitlement that makes a caller the
// privileged activity-log reader.
const ActivityLogging = "powerlogging"

// Caller is the kernel-reported identity of a socket peer.
type Caller struct {
	PID int `json:"pid"`
	UID int `json:"uid"`
	GID int `json:"gid"`
}

// FromConn reads the peer credentials of a Unix socket connection.
func FromConn(conn net.Conn) (Caller, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return Caller{}, fmt.Errorf("peer credentials need a unix socket, got %T", conn)
	}
	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return Caller{}, fmt.Errorf("accessing socket: %w", err)
	}

	var credentials *unix.Ucred
	var sockoptErr error
	if err := rawConn.Control(func(fd uintptr) {
		credentials, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return Caller{}, fmt.Errorf("accessing socket: %w", err)
	}
	if sockoptErr != nil {
		return Caller{}, fmt.Errorf("reading SO_PEERCRED: %w", sockoptErr)
	}
	return Caller{
		PID: int(credentials.Pid),
		UID: int(credentials.Uid),
		GID: int(credentials.Gid),
	}, nil
}

type contextKey struct{}

// WithCaller returns a context carrying caller.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, caller)
}

// ErrNoCaller is returned by FromContext when the context was not
// produced by WithCaller.
var ErrNoCaller = errors.New("no caller identity in context")

// FromContext returns the caller stored by WithCaller.
func FromContext(ctx context.Context) (Caller, error) {
	caller, ok := ctx.Value(contextKey{}).(Caller)
	if !ok {
		return Caller{}, ErrNoCaller
	}
	return caller, nil
}

// Entitlements maps an entitlement name to the UIDs holding it.
type Entitlements map[string][]int

// Has reports whether caller holds entitlement.
func (e Entitlements) Has(caller Caller, entitlement string) bool {
	return slices.Contains(e[entitlement], caller.UID)
}

// HasContext is Has for the caller in ctx. A context without a caller
// holds no entitlements.
func (e Entitlements) HasContext(ctx context.Context, entitlement string) bool {
	caller, err := FromContext(ctx)
	if err != nil {
		return false
	}
	return e.Has(caller, entitlement)
}
