// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package shopstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bakhtin/ctf-tshirt/lib/netutil"
	"github.com/bakhtin/ctf-tshirt/lib/sealed"
	"github.com/bakhtin/ctf-tshirt/lib/secret"
	"github.com/bakhtin/ctf-tshirt/lib/sqlitepool"
	"github.com/bakhtin/ctf-tshirt/lib/tshirt"
)

var (
	// ErrNotPayable means the order does not exist, belongs to another
	// identity, or is no longer New. The causes are deliberately not
	// distinguished.
	ErrNotPayable = errors.New("shopstore: order is not payable")

	// ErrNoCoupon means no coupon has been provisioned for the order.
	ErrNoCoupon = errors.New("shopstore: no coupon for order")

	// ErrCouponExists means the order already has a coupon.
	ErrCouponExists = errors.New("shopstore: order already has a coupon")
)

// IdentityID is the row id of an identity.
type IdentityID int64

// OrderID is the row id of an order. It is the number peers see.
type OrderID int64

// Status is an order's payment state.
type Status string

const (
	StatusNew  Status = "New"
	StatusPaid Status = "Paid"
)

// Order is a persisted order with its current status.
type Order struct {
	ID          OrderID
	IdentityID  IdentityID
	Design      []byte
	CreatedAt   time.Time
	Fingerprint string
	Status      Status
}

// NewOrder is the input to CreateOrder.
type NewOrder struct {
	IdentityID IdentityID
	// Design is the blob produced by tshirt.Encode.
	Design    []byte
	CreatedAt time.Time
}

// Coupon is an out-of-band provisioning record: paying OrderID with
// Code discloses Secret.
type Coupon struct {
	OrderID OrderID
	Code    string
	Secret  []byte
}

// Config holds the parameters for Open.
type Config struct {
	// Path is the SQLite database file.
	Path string

	// PoolSize defaults to sqlitepool.DefaultPoolSize.
	PoolSize int

	// Keypair seals secrets on provisioning and opens them on
	// payment. Required.
	Keypair *sealed.Keypair

	// Logger is required.
	Logger *slog.Logger
}

// Store is the shop's persistence layer. It is the only shared mutable
// state between sessions; every multi-row change runs in one IMMEDIATE
// transaction. Safe for concurrent use.
type Store struct {
	pool    *sqlitepool.Pool
	keypair *sealed.Keypair
	logger  *slog.Logger
}

// Open opens (creating if needed) the database and applies the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Keypair == nil {
		return nil, fmt.Errorf("shopstore: Keypair is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("shopstore: Logger is required")
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("shopstore: %w", err)
	}

	store := &Store{pool: pool, keypair: cfg.Keypair, logger: cfg.Logger}
	if err := store.migrate(); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func (s *Store) migrate() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("shopstore: migrate: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("shopstore: applying schema: %w", err)
	}
	return nil
}

// ResolveIdentity returns the identity for peer, creating it on first
// contact. Concurrent first contacts from one address yield one row:
// the insert and the lookup share a write transaction and the address
// column is UNIQUE.
func (s *Store) ResolveIdentity(ctx context.Context, peer netutil.PeerAddress) (_ IdentityID, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("shopstore: resolve identity: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("shopstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		"INSERT INTO identity (peer_address) VALUES (?) ON CONFLICT (peer_address) DO NOTHING",
		&sqlitex.ExecOptions{Args: []any{peer[:]}})
	if err != nil {
		return 0, fmt.Errorf("shopstore: inserting identity: %w", err)
	}
	created := conn.Changes() > 0

	var id IdentityID
	err = sqlitex.Execute(conn, "SELECT id FROM identity WHERE peer_address = ?", &sqlitex.ExecOptions{
		Args: []any{peer[:]},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			id = IdentityID(stmt.ColumnInt64(0))
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("shopstore: selecting identity: %w", err)
	}
	if id == 0 {
		return 0, fmt.Errorf("shopstore: identity for %s vanished inside its transaction", peer)
	}

	if created {
		s.logger.Info("identity created", "identity", id, "peer", peer.String())
	}
	return id, nil
}

// CreateOrder inserts the order and its New status as one transaction
// and returns the stored order.
func (s *Store) CreateOrder(ctx context.Context, order NewOrder) (_ Order, err error) {
	if order.IdentityID <= 0 {
		return Order{}, fmt.Errorf("shopstore: create order: invalid identity %d", order.IdentityID)
	}
	if len(order.Design) == 0 {
		return Order{}, fmt.Errorf("shopstore: create order: empty design")
	}
	if order.CreatedAt.IsZero() {
		return Order{}, fmt.Errorf("shopstore: create order: CreatedAt is required")
	}

	createdAt := order.CreatedAt.UTC()
	fingerprint := tshirt.Fingerprint(order.Design, createdAt)

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("shopstore: create order: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Order{}, fmt.Errorf("shopstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		`INSERT INTO "order" (design, identity_id, created_at, fingerprint) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{order.Design, int64(order.IdentityID), createdAt.UnixNano(), fingerprint}})
	if err != nil {
		return Order{}, fmt.Errorf("shopstore: inserting order: %w", err)
	}
	id := OrderID(conn.LastInsertRowID())

	err = sqlitex.Execute(conn,
		"INSERT INTO order_status (order_id, status_id) VALUES (?, (SELECT id FROM status WHERE status_text = ?))",
		&sqlitex.ExecOptions{Args: []any{int64(id), string(StatusNew)}})
	if err != nil {
		return Order{}, fmt.Errorf("shopstore: inserting order status: %w", err)
	}

	return Order{
		ID:          id,
		IdentityID:  order.IdentityID,
		Design:      order.Design,
		CreatedAt:   createdAt,
		Fingerprint: fingerprint,
		Status:      StatusNew,
	}, nil
}

// ListOrders returns the identity's orders in creation order.
func (s *Store) ListOrders(ctx context.Context, identity IdentityID) ([]Order, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("shopstore: list orders: %w", err)
	}
	defer s.pool.Put(conn)

	const query = `
		SELECT o.id, o.design, o.created_at, o.fingerprint, st.status_text
		FROM "order" AS o
		JOIN order_status AS os ON os.order_id = o.id
		JOIN status AS st ON st.id = os.status_id
		WHERE o.identity_id = ?
		ORDER BY o.id`

	var orders []Order
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{int64(identity)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			design := make([]byte, stmt.ColumnLen(1))
			stmt.ColumnBytes(1, design)
			orders = append(orders, Order{
				ID:          OrderID(stmt.ColumnInt64(0)),
				IdentityID:  identity,
				Design:      design,
				CreatedAt:   time.Unix(0, stmt.ColumnInt64(2)).UTC(),
				Fingerprint: stmt.ColumnText(3),
				Status:      Status(stmt.ColumnText(4)),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shopstore: list orders: %w", err)
	}
	return orders, nil
}

// EligibleForPayment returns the ids of the identity's New orders in
// ascending order.
func (s *Store) EligibleForPayment(ctx context.Context, identity IdentityID) ([]OrderID, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("shopstore: eligible orders: %w", err)
	}
	defer s.pool.Put(conn)

	const query = `
		SELECT o.id
		FROM "order" AS o
		JOIN order_status AS os ON os.order_id = o.id
		JOIN status AS st ON st.id = os.status_id
		WHERE o.identity_id = ? AND st.status_text = ?
		ORDER BY o.id`

	var ids []OrderID
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{int64(identity), string(StatusNew)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			ids = append(ids, OrderID(stmt.ColumnInt64(0)))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shopstore: eligible orders: %w", err)
	}
	return ids, nil
}

// LookupCoupon returns the coupon code provisioned for an order, or
// ErrNoCoupon.
func (s *Store) LookupCoupon(ctx context.Context, order OrderID) (string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return "", fmt.Errorf("shopstore: lookup coupon: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		code  string
		found bool
	)
	err = sqlitex.Execute(conn, "SELECT code FROM coupon WHERE order_id = ?", &sqlitex.ExecOptions{
		Args: []any{int64(order)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			code = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return "", fmt.Errorf("shopstore: lookup coupon: %w", err)
	}
	if !found {
		return "", ErrNoCoupon
	}
	return code, nil
}

// MarkPaidAndDisclose moves the order from New to Paid and returns the
// coupon's secret payload, all in one transaction. It fails with
// ErrNotPayable unless the order is New and owned by identity, and
// with ErrNoCoupon if nothing was provisioned; in both cases nothing
// changes. A payload that cannot be decrypted also rolls the payment
// back, so Paid always means "disclosed".
//
// The caller closes the returned buffer.
func (s *Store) MarkPaidAndDisclose(ctx context.Context, identity IdentityID, order OrderID) (_ *secret.Buffer, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("shopstore: mark paid: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("shopstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	const update = `
		UPDATE order_status
		SET status_id = (SELECT id FROM status WHERE status_text = ?)
		WHERE order_id = ?
		  AND status_id = (SELECT id FROM status WHERE status_text = ?)
		  AND order_id IN (SELECT id FROM "order" WHERE identity_id = ?)`
	err = sqlitex.Execute(conn, update, &sqlitex.ExecOptions{
		Args: []any{string(StatusPaid), int64(order), string(StatusNew), int64(identity)},
	})
	if err != nil {
		return nil, fmt.Errorf("shopstore: updating status: %w", err)
	}
	if conn.Changes() == 0 {
		return nil, ErrNotPayable
	}

	var (
		sealedPayload string
		found         bool
	)
	err = sqlitex.Execute(conn,
		"SELECT s.payload FROM coupon AS c JOIN secret AS s ON s.id = c.secret_id WHERE c.order_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{int64(order)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				sealedPayload = stmt.ColumnText(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("shopstore: selecting secret: %w", err)
	}
	if !found {
		return nil, ErrNoCoupon
	}

	payload, err := s.keypair.Open(sealedPayload)
	if err != nil {
		return nil, fmt.Errorf("shopstore: opening secret for order %d: %w", order, err)
	}

	s.logger.Info("order paid", "order", order, "identity", identity)
	return payload, nil
}

// ProvisionCoupon stores one coupon and its sealed secret.
func (s *Store) ProvisionCoupon(ctx context.Context, coupon Coupon) error {
	return s.ProvisionCoupons(ctx, []Coupon{coupon})
}

// ProvisionCoupons stores every coupon in one transaction: either all
// are provisioned or none.
func (s *Store) ProvisionCoupons(ctx context.Context, coupons []Coupon) (err error) {
	sealedPayloads := make([]string, len(coupons))
	for index, coupon := range coupons {
		if err := validateCoupon(coupon); err != nil {
			return err
		}
		sealedPayloads[index], err = s.keypair.Seal(coupon.Secret)
		if err != nil {
			return fmt.Errorf("shopstore: sealing secret for order %d: %w", coupon.OrderID, err)
		}
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("shopstore: provision coupons: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("shopstore: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for index, coupon := range coupons {
		var exists bool
		err = sqlitex.Execute(conn, "SELECT 1 FROM coupon WHERE order_id = ?", &sqlitex.ExecOptions{
			Args: []any{int64(coupon.OrderID)},
			ResultFunc: func(*sqlite.Stmt) error {
				exists = true
				return nil
			},
		})
		if err != nil {
			return fmt.Errorf("shopstore: checking coupon for order %d: %w", coupon.OrderID, err)
		}
		if exists {
			return fmt.Errorf("%w: order %d", ErrCouponExists, coupon.OrderID)
		}

		err = sqlitex.Execute(conn, "INSERT INTO secret (payload) VALUES (?)", &sqlitex.ExecOptions{
			Args: []any{sealedPayloads[index]},
		})
		if err != nil {
			return fmt.Errorf("shopstore: inserting secret for order %d: %w", coupon.OrderID, err)
		}
		secretID := conn.LastInsertRowID()

		err = sqlitex.Execute(conn, "INSERT INTO coupon (order_id, code, secret_id) VALUES (?, ?, ?)", &sqlitex.ExecOptions{
			Args: []any{int64(coupon.OrderID), coupon.Code, secretID},
		})
		if err != nil {
			return fmt.Errorf("shopstore: inserting coupon for order %d: %w", coupon.OrderID, err)
		}
	}

	s.logger.Info("coupons provisioned", "count", len(coupons))
	return nil
}

// validateCoupon rejects coupons no peer could ever redeem: sessions
// trim input, so a code with surrounding whitespace or control
// characters would never match.
func validateCoupon(coupon Coupon) error {
	if coupon.OrderID <= 0 {
		return fmt.Errorf("shopstore: coupon has invalid order id %d", coupon.OrderID)
	}
	if coupon.Code == "" {
		return fmt.Errorf("shopstore: coupon for order %d has an empty code", coupon.OrderID)
	}
	cleaned, err := tshirt.CleanText(coupon.Code)
	if err != nil || cleaned != coupon.Code {
		return fmt.Errorf("shopstore: coupon code for order %d must be printable text without surrounding whitespace", coupon.OrderID)
	}
	if len(coupon.Secret) == 0 {
		return fmt.Errorf("shopstore: coupon for order %d has an empty secret", coupon.OrderID)
	}
	return nil
}
