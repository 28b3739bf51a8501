// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/powerlog/lib/activitylog"
	"github.com/bureau-foundation/powerlog/lib/codec"
)

// ErrCorrupt is returned by Decode when the envelope does not match
// its own size or digest.
var ErrCorrupt = errors.New("activity blob is corrupt")

// maxSize bounds the uncompressed size a reader will allocate for. A
// full 512-record batch with backtraces is well under a megabyte.
const maxSize = 64 << 20

// Digest is a 32-byte keyed BLAKE3 hash of the uncompressed payload.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// digestKey is the ASCII domain name, zero-padded to the 32 bytes
// BLAKE3 keyed mode requires.
var digestKey = [32]byte{
	'p', 'o', 'w', 'e', 'r', 'l', 'o', 'g', '.', 'a', 'c', 't', 'i', 'v', 'i', 't',
	'y', '.', 'b', 'l', 'o', 'b', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func digest(data []byte) Digest {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("blob: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var result Digest
	copy(result[:], hasher.Sum(nil))
	return result
}

// Envelope carries one encoded record batch.
type Envelope struct {
	// Compression is the algorithm actually applied to Data, which
	// may be none even if another was requested.
	Compression Compression `json:"compression"`

	// Size is the uncompressed length of the CBOR payload.
	Size int `json:"size"`

	Digest Digest `json:"digest"`
	Data   []byte `json:"data"`
}

// Encode serializes records and compresses them with compression.
func Encode(records []activitylog.Record, compression Compression) (Envelope, error) {
	if records == nil {
		records = []activitylog.Record{}
	}
	payload, err := codec.Marshal(records)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %d records: %w", len(records), err)
	}

	envelope := Envelope{
		Compression: compression,
		Size:        len(payload),
		Digest:      digest(payload),
	}
	compressed, err := compress(payload, compression)
	switch {
	case errors.Is(err, errIncompressible):
		envelope.Compression = CompressionNone
		envelope.Data = payload
	case err != nil:
		return Envelope{}, err
	default:
		envelope.Data = compressed
	}
	return envelope, nil
}

// Decode reverses Encode. Any mismatch between the envelope's claims
// and its contents is reported as ErrCorrupt.
func Decode(envelope Envelope) ([]activitylog.Record, error) {
	if envelope.Size < 0 || envelope.Size > maxSize {
		return nil, fmt.Errorf("envelope size %d out of range: %w", envelope.Size, ErrCorrupt)
	}
	payload, err := decompress(envelope.Data, envelope.Compression, envelope.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if got := digest(payload); got != envelope.Digest {
		return nil, fmt.Errorf("digest %s does not match envelope %s: %w", got, envelope.Digest, ErrCorrupt)
	}

	var records []activitylog.Record
	if err := codec.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}
	return records, nil
}
