// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Printshop-server runs the Fancy T-Shirts print shop: a line-oriented
// TCP service where a peer designs a t-shirt, lists its orders, and
// pays for one with a coupon code to receive the secret provisioned
// for it.
//
// # Startup
//
// The server loads its YAML configuration (--config or
// PRINTSHOP_CONFIG), creates the data directories, loads the age
// identity that decrypts coupon secrets, opens the SQLite store
// (creating the schema on first run), loads the shirt templates and
// font, and listens on listen.address. --listen overrides the
// configured address.
//
// The identity file and the templates are created beforehand with
// printshop-provision --generate-identity and --write-templates.
//
// # Shutdown
//
// SIGINT or SIGTERM stops the listener. Every open session is told the
// shop is closing, and the process exits once all of them have ended.
// A second signal terminates immediately.
package main
