// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the print
// shop binaries.
//
// Configuration is loaded from a single file named by either the
// PRINTSHOP_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]); [Resolve] picks between the two. There is no
// file discovery and no environment variable overrides individual
// values.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production without its own section
// uses a shorter idle timeout.
//
// Path fields expand ${HOME}, ${PRINTSHOP_ROOT} and ${VAR:-default}
// after loading.
package config
