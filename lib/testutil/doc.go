// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the print shop
// packages.
//
// [RequireReceive] wraps the select-with-deadline
// pattern used when a test waits for a goroutine (a server loop, a
// connection driver) to report back, so a hung goroutine fails the test
// instead of stalling the suite.
//
// [Logger] returns a slog.Logger that writes through t.Log, so log
// output appears only for failing tests (or with -v) and is attributed
// to the test that produced it.
package testutil
