// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package tshirt is the order builder: the closed Size and Color
// enumerations, validation of raw peer selections, and assembly of an
// immutable [Design].
//
// Every enumerated prompt goes through a Parse function that returns a
// typed [*SelectionError] (wrapping [ErrInvalidSelection]) instead of
// panicking or guessing. Free text is bounded by [CleanText]: blank is
// fine, control characters and over-long text are not.
//
// A Design is persisted as a versioned, deterministic CBOR blob
// ([Encode], [Decode]). The order fingerprint ([Fingerprint]) is a
// keyed BLAKE3 hash over that blob and the creation time, so anyone
// holding the blob and timestamp can recompute it.
package tshirt
