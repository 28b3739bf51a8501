// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the single CBOR configuration used by powerlog.
//
// Two things travel as CBOR: the socket protocol between powerlogd and
// its clients, and the activity record sequence carried inside a drain
// response. Both go through the same deterministic encoder so that the
// same batch of records always produces the same bytes, which lets
// lib/blob digest the encoded form and readers verify it.
//
// Callers import this package rather than fxamacker/cbor directly.
package codec
