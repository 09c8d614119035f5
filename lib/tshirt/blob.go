// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package tshirt

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/bakhtin/ctf-tshirt/lib/codec"
)

// BlobVersion is the current design blob format. Decode rejects any
// other version.
const BlobVersion = 1

// designBlob is the persisted form of a Design. Enumerations are
// stored by name so a blob is readable without this package's code
// tables.
type designBlob struct {
	Version   int    `cbor:"v"`
	Size      string `cbor:"size"`
	Color     string `cbor:"color"`
	TextFront string `cbor:"text_front"`
	TextBack  string `cbor:"text_back"`
	FontColor string `cbor:"font_color"`
}

// Encode serializes d as a versioned, deterministic CBOR map.
func Encode(d Design) ([]byte, error) {
	if !d.Size.Valid() || !d.Color.Valid() || !d.FontColor.Valid() {
		return nil, fmt.Errorf("tshirt: encoding incomplete design %+v", d)
	}
	data, err := codec.Marshal(designBlob{
		Version:   BlobVersion,
		Size:      d.Size.String(),
		Color:     d.Color.String(),
		TextFront: d.TextFront,
		TextBack:  d.TextBack,
		FontColor: d.FontColor.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("tshirt: encoding design: %w", err)
	}
	return data, nil
}

// Decode parses a blob produced by Encode.
func Decode(data []byte) (Design, error) {
	var blob designBlob
	if err := codec.Unmarshal(data, &blob); err != nil {
		if diagnostic, diagErr := codec.Diagnose(data); diagErr == nil {
			return Design{}, fmt.Errorf("tshirt: decoding design %s: %w", diagnostic, err)
		}
		return Design{}, fmt.Errorf("tshirt: decoding design: %w", err)
	}
	if blob.Version != BlobVersion {
		return Design{}, fmt.Errorf("tshirt: unsupported design blob version %d", blob.Version)
	}

	size, ok := sizeByName(blob.Size)
	if !ok {
		return Design{}, fmt.Errorf("tshirt: design blob has unknown size %q", blob.Size)
	}
	color, ok := colorByName(blob.Color)
	if !ok {
		return Design{}, fmt.Errorf("tshirt: design blob has unknown color %q", blob.Color)
	}
	fontColor, ok := colorByName(blob.FontColor)
	if !ok {
		return Design{}, fmt.Errorf("tshirt: design blob has unknown font color %q", blob.FontColor)
	}

	return Design{
		Size:      size,
		Color:     color,
		TextFront: blob.TextFront,
		TextBack:  blob.TextBack,
		FontColor: fontColor,
	}, nil
}

// fingerprintDomainKey keys the BLAKE3 hash so order fingerprints can
// never collide with hashes of the same bytes computed elsewhere. The
// value is the ASCII domain name zero-padded to 32 bytes; changing it
// invalidates every stored fingerprint.
var fingerprintDomainKey = [32]byte{
	'c', 't', 'f', '-', 't', 's', 'h', 'i', 'r', 't', '.', 'o', 'r', 'd', 'e', 'r',
	'.', 'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0,
}

// Fingerprint computes the audit tag of an order: a keyed BLAKE3 hash
// over the encoded design followed by the creation time in RFC 3339
// with nanoseconds, UTC. The result is lowercase hex.
//
// This is a tamper-evidence tag for audits, not an authenticator.
func Fingerprint(blob []byte, createdAt time.Time) string {
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		// Only possible with a key that is not 32 bytes.
		panic("tshirt: blake3 keyed hasher: " + err.Error())
	}
	hasher.Write(blob)
	hasher.Write([]byte(createdAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(hasher.Sum(nil))
}
