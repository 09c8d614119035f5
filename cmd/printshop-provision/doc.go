// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Printshop-provision is the operator tool for the print shop. It
// performs exactly one action per invocation:
//
//	printshop-provision --generate-identity
//	printshop-provision --write-templates [--force]
//	printshop-provision --file coupons.jsonc
//	printshop-provision --order 42 --code GOLD-2026
//
// --generate-identity creates the age identity that seals coupon
// secrets at paths.identity (mode 0600; an existing file is never
// overwritten) and prints its public key.
//
// --write-templates writes a plain JPEG template per shirt color into
// paths.templates, keeping existing files unless --force is given.
//
// --file provisions every coupon in a JSONC file in one transaction.
//
// --order with --code provisions one coupon. The secret is read from
// the terminal with echo disabled, or as one line from stdin when
// stdin is not a terminal.
//
// The configuration is loaded the same way as printshop-server:
// --config, or the PRINTSHOP_CONFIG environment variable.
package main
