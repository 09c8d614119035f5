// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package shopserver accepts peer connections and runs one dialog per
// connection. The peer's IP address is its identity: it is resolved to
// an identity row before the session starts, so later connections
// from the same address see the same orders.
package shopserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bakhtin/ctf-tshirt/lib/clock"
	"github.com/bakhtin/ctf-tshirt/lib/netutil"
	"github.com/bakhtin/ctf-tshirt/lib/render"
	"github.com/bakhtin/ctf-tshirt/lib/session"
	"github.com/bakhtin/ctf-tshirt/lib/shopstore"
)

// Store is everything a connection needs from persistence.
// *shopstore.Store implements it.
type Store interface {
	session.Store
	ResolveIdentity(ctx context.Context, peer netutil.PeerAddress) (shopstore.IdentityID, error)
}

// Config holds the parameters for New.
type Config struct {
	Store    Store
	Renderer render.Renderer

	// Clock stamps orders. Defaults to the wall clock.
	Clock clock.Clock

	// Conn bounds each connection's input.
	Conn session.ConnConfig

	// CouponAttempts per payment; see session.Config.
	CouponAttempts int

	Logger *slog.Logger
}

// Server is the shop's listener. Safe for concurrent use; Serve may be
// called once.
type Server struct {
	store    Store
	sessions session.Config
	conn     session.ConnConfig
	logger   *slog.Logger

	// activeConnections tracks running sessions for graceful
	// shutdown. Serve waits for all of them before returning.
	activeConnections sync.WaitGroup
}

// acceptBackoff pauses the accept loop after a failed Accept, so a
// persistent error (for example EMFILE) does not spin.
const acceptBackoff = 50 * time.Millisecond

// resolveTimeout bounds identity resolution for a new connection.
const resolveTimeout = 10 * time.Second

// New validates the configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("shopserver: Store is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("shopserver: Renderer is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("shopserver: Logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Server{
		store: cfg.Store,
		sessions: session.Config{
			Store:          cfg.Store,
			Renderer:       cfg.Renderer,
			Clock:          cfg.Clock,
			CouponAttempts: cfg.CouponAttempts,
		},
		conn:   cfg.Conn,
		logger: cfg.Logger,
	}, nil
}

// ListenAndServe listens on a TCP address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	var listenConfig net.ListenConfig
	listener, err := listenConfig.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("shopserver: listening on %s: %w", address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections until ctx is cancelled, then closes the
// listener, tells every open session the shop is closing, and waits
// for them to finish. Serve takes ownership of listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	defer listener.Close()

	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	s.logger.Info("shop listening", "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			select {
			case <-time.After(acceptBackoff):
			case <-ctx.Done():
			}
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	s.logger.Info("shop stopped")
	if ctx.Err() == nil {
		return fmt.Errorf("shopserver: listener closed unexpectedly")
	}
	return nil
}

// handleConnection runs one peer's dialog. A panic ends only this
// connection.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	logger := s.logger.With(
		"session", uuid.NewString(),
		"peer", conn.RemoteAddr().String(),
	)
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("session panicked",
				"panic", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
			)
		}
	}()

	peer, err := netutil.PeerAddressOf(conn.RemoteAddr())
	if err != nil {
		logger.Error("cannot identify peer", "error", err)
		return
	}

	resolveContext, cancel := context.WithTimeout(ctx, resolveTimeout)
	identity, err := s.store.ResolveIdentity(resolveContext, peer)
	cancel()
	if err != nil {
		logger.Error("resolving identity failed", "error", err)
		conn.SetWriteDeadline(time.Now().Add(resolveTimeout))
		io.WriteString(conn, session.UnavailableText)
		return
	}
	logger = logger.With("identity", identity)

	sessionConfig := s.sessions
	sessionConfig.Logger = logger
	dialog, err := session.New(sessionConfig, identity)
	if err != nil {
		logger.Error("creating session failed", "error", err)
		return
	}

	started := time.Now()
	logger.Info("connection opened")
	reason, err := dialog.Run(ctx, conn, s.conn)
	attributes := []any{"reason", string(reason), "duration", time.Since(started)}
	if err != nil {
		logger.Error("connection closed", append(attributes, "error", err)...)
		return
	}
	logger.Info("connection closed", attributes...)
}
