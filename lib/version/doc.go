// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the print
// shop binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] is the short git SHA of the build
//   - [GitDirty] is "true" if there were uncommitted changes
//   - [BuildTime] is the UTC timestamp of the build
//   - [Version] is the semantic version string
//
// When GitCommit is not injected, [Commit] falls back to the VCS
// revision the Go toolchain embeds in the binary.
//
// [SelfDigest] returns a BLAKE3 digest of the running executable. The
// server logs it at startup so a deployed binary can be matched to a
// build artifact.
package version
