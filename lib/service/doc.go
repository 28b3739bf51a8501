// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service is the CBOR request-response protocol powerlogd
// speaks on its Unix socket.
//
// Each connection carries exactly one exchange. The client writes a
// CBOR map with an "action" field plus action-specific fields; the
// server replies with a [Response] and closes the connection:
//
//	{ok: true, data: <cbor>}
//	{ok: false, code: "not-found", error: "no new records"}
//
// The code field is machine-readable and drawn from the Code*
// constants. Handlers choose it by returning a [CodedError]; any other
// error is reported with CodeInternal.
//
// # Caller identity
//
// The server reads SO_PEERCRED on every accepted connection and
// attaches the result to the handler's context (see lib/peercred).
// Handlers make authorization decisions from that identity alone;
// nothing in the request body is trusted for it. A connection whose
// credentials cannot be read is refused.
package service
