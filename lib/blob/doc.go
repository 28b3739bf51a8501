// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package blob turns a batch of activity records into a
// self-describing byte envelope and back.
//
// The records are encoded as one deterministic CBOR array, optionally
// compressed, and digested with BLAKE3 in a dedicated key domain. The
// digest covers the uncompressed CBOR bytes, so a reader detects both
// transport corruption and a decompressor that silently produced the
// wrong output.
//
// Compression is advisory. When the requested algorithm does not make
// the payload smaller, [Encode] stores it uncompressed and says so in
// the envelope.
package blob
