// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the print shop
// binaries: reporting a fatal error before the structured logger
// exists, and turning SIGINT/SIGTERM into context cancellation.
package process
