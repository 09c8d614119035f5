// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package shopstore

// schema creates every table on first open and is a no-op afterwards.
// Status ids are fixed: other tables and queries may rely on 1 = New
// and 2 = Paid, but queries go through status_text so a hand-edited
// database still reads correctly.
//
// coupon.order_id deliberately has no foreign key: coupons are
// provisioned out of band, possibly before the order they pay for has
// been placed.
const schema = `
CREATE TABLE IF NOT EXISTS identity (
	id           INTEGER PRIMARY KEY,
	peer_address BLOB NOT NULL UNIQUE CHECK (length(peer_address) = 16)
);

CREATE TABLE IF NOT EXISTS status (
	id          INTEGER PRIMARY KEY,
	status_text TEXT NOT NULL UNIQUE
);

INSERT OR IGNORE INTO status (id, status_text) VALUES (1, 'New'), (2, 'Paid');

CREATE TABLE IF NOT EXISTS "order" (
	id          INTEGER PRIMARY KEY,
	design      BLOB NOT NULL,
	identity_id INTEGER NOT NULL REFERENCES identity (id),
	created_at  INTEGER NOT NULL,
	fingerprint TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS order_by_identity ON "order" (identity_id, id);

CREATE TABLE IF NOT EXISTS order_status (
	order_id  INTEGER PRIMARY KEY REFERENCES "order" (id),
	status_id INTEGER NOT NULL REFERENCES status (id)
);

CREATE TABLE IF NOT EXISTS secret (
	id      INTEGER PRIMARY KEY,
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS coupon (
	order_id  INTEGER PRIMARY KEY,
	code      TEXT NOT NULL,
	secret_id INTEGER NOT NULL REFERENCES secret (id)
);
`
