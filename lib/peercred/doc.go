// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package peercred identifies the process on the other end of a Unix
// socket and decides which entitlements it holds.
//
// Identity comes from the kernel (SO_PEERCRED), never from the
// request, so a client cannot claim to be someone else. Entitlements
// are granted per UID in configuration; root is not implicitly
// entitled.
package peercred
