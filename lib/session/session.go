// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/bakhtin/ctf-tshirt/lib/clock"
	"github.com/bakhtin/ctf-tshirt/lib/render"
	"github.com/bakhtin/ctf-tshirt/lib/secret"
	"github.com/bakhtin/ctf-tshirt/lib/shopstore"
	"github.com/bakhtin/ctf-tshirt/lib/tshirt"
)

// DefaultCouponAttempts is the number of code submissions allowed per
// payment attempt.
const DefaultCouponAttempts = 3

// State is a position in the dialog.
type State int

const (
	StateMainMenu State = iota
	StateColorSelect
	StateSizeSelect
	StateTextFront
	StateTextBack
	StateFontColorSelect
	StateConfirmOrder
	StateOrdersList
	StateCouponOrderSelect
	StateCouponAttempt
	StateClosed
)

var stateNames = [...]string{
	StateMainMenu:          "main-menu",
	StateColorSelect:       "color-select",
	StateSizeSelect:        "size-select",
	StateTextFront:         "text-front",
	StateTextBack:          "text-back",
	StateFontColorSelect:   "font-color-select",
	StateConfirmOrder:      "confirm-order",
	StateOrdersList:        "orders-list",
	StateCouponOrderSelect: "coupon-order-select",
	StateCouponAttempt:     "coupon-attempt",
	StateClosed:            "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Store is the part of the persistence layer a session uses.
// *shopstore.Store implements it.
type Store interface {
	CreateOrder(ctx context.Context, order shopstore.NewOrder) (shopstore.Order, error)
	ListOrders(ctx context.Context, identity shopstore.IdentityID) ([]shopstore.Order, error)
	EligibleForPayment(ctx context.Context, identity shopstore.IdentityID) ([]shopstore.OrderID, error)
	LookupCoupon(ctx context.Context, order shopstore.OrderID) (string, error)
	MarkPaidAndDisclose(ctx context.Context, identity shopstore.IdentityID, order shopstore.OrderID) (*secret.Buffer, error)
}

// Config holds what every session of a server shares.
type Config struct {
	Store    Store
	Renderer render.Renderer
	Clock    clock.Clock

	// CouponAttempts defaults to DefaultCouponAttempts.
	CouponAttempts int

	Logger *slog.Logger
}

// Session is the dialog with one connected peer. It is not safe for
// concurrent use; the protocol is half duplex and one goroutine drives
// it.
//
// Handle is a function of (state, input) to (state, output) apart from
// the store and renderer calls it makes, so the dialog can be tested
// without a socket.
type Session struct {
	store          Store
	renderer       render.Renderer
	clock          clock.Clock
	couponAttempts int
	logger         *slog.Logger

	identity shopstore.IdentityID
	state    State
	builder  tshirt.Builder

	// Payment in progress.
	payOrder  shopstore.OrderID
	payCode   []byte
	remaining int
}

// New creates a session for an already resolved identity.
func New(cfg Config, identity shopstore.IdentityID) (*Session, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session: Store is required")
	}
	if cfg.Renderer == nil {
		return nil, fmt.Errorf("session: Renderer is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("session: Logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.CouponAttempts <= 0 {
		cfg.CouponAttempts = DefaultCouponAttempts
	}
	return &Session{
		store:          cfg.Store,
		renderer:       cfg.Renderer,
		clock:          cfg.Clock,
		couponAttempts: cfg.CouponAttempts,
		logger:         cfg.Logger,
		identity:       identity,
		state:          StateMainMenu,
	}, nil
}

// State returns the current dialog state.
func (s *Session) State() State { return s.state }

// Closed reports whether the dialog has ended.
func (s *Session) Closed() bool { return s.state == StateClosed }

// Greet writes the banner and the main menu.
func (s *Session) Greet(w io.Writer) error {
	_, err := io.WriteString(w, greetingText+menuText)
	return err
}

// Prompt repeats the question for the current state.
func (s *Session) Prompt() string {
	switch s.state {
	case StateMainMenu:
		return menuText
	case StateColorSelect:
		return colorPrompt()
	case StateSizeSelect:
		return sizePrompt()
	case StateTextFront:
		return frontPromptText
	case StateTextBack:
		return backPromptText
	case StateFontColorSelect:
		return fontColorPrompt()
	case StateConfirmOrder:
		return confirmPromptText
	case StateOrdersList:
		return payPromptText
	case StateCouponOrderSelect:
		return orderSelectText
	case StateCouponAttempt:
		return couponPromptText
	default:
		return ""
	}
}

// Handle consumes one line of input and writes the response followed
// by the next prompt. Write errors are returned as is. A store failure
// tells the peer the shop is unavailable, closes the session, and is
// returned; the caller must end the connection.
func (s *Session) Handle(ctx context.Context, w io.Writer, line string) error {
	input := strings.TrimSpace(line)

	var err error
	switch s.state {
	case StateMainMenu:
		err = s.handleMenu(ctx, w, input)
	case StateColorSelect:
		err = handleSelection(s, w, input, s.builder.SetColor, colorChosenFormat, invalidColorText, StateSizeSelect)
	case StateSizeSelect:
		err = handleSelection(s, w, input, s.builder.SetSize, sizeChosenFormat, invalidSizeText, StateTextFront)
	case StateTextFront:
		err = s.handleText(w, input, s.builder.SetTextFront, StateTextBack)
	case StateTextBack:
		err = s.handleText(w, input, s.builder.SetTextBack, StateFontColorSelect)
	case StateFontColorSelect:
		err = s.handleFontColor(w, input)
	case StateConfirmOrder:
		err = s.handleConfirm(ctx, w, input)
	case StateOrdersList:
		err = s.handlePayQuestion(w, input)
	case StateCouponOrderSelect:
		err = s.handleOrderSelect(ctx, w, input)
	case StateCouponAttempt:
		err = s.handleCoupon(ctx, w, input)
	case StateClosed:
		return fmt.Errorf("session: input after close")
	default:
		return fmt.Errorf("session: unknown state %d", s.state)
	}

	var storeErr *storeError
	if errors.As(err, &storeErr) {
		s.close()
		if _, writeErr := io.WriteString(w, UnavailableText); writeErr != nil {
			return errors.Join(err, writeErr)
		}
	}
	return err
}

// storeError marks failures of the persistence layer, which end the
// session.
type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string { return "session: " + e.op + ": " + e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

func (s *Session) transition(next State) {
	if next != s.state {
		s.logger.Debug("session state", "from", s.state.String(), "to", next.String())
	}
	s.state = next
}

func (s *Session) close() {
	s.clearPayment()
	s.builder.Reset()
	s.transition(StateClosed)
}

func (s *Session) toMenu(w io.Writer, response string) error {
	s.transition(StateMainMenu)
	_, err := io.WriteString(w, response+menuText)
	return err
}

func (s *Session) handleMenu(ctx context.Context, w io.Writer, input string) error {
	switch input {
	case "1":
		s.builder.Reset()
		s.transition(StateColorSelect)
		_, err := io.WriteString(w, colorPrompt())
		return err
	case "2":
		return s.listOrders(ctx, w)
	case "3":
		s.close()
		_, err := io.WriteString(w, farewellText)
		return err
	default:
		_, err := io.WriteString(w, menuText)
		return err
	}
}

// handleSelection drives one enumerated prompt. A rejected choice
// re-asks the same question without limit.
func handleSelection[T fmt.Stringer](s *Session, w io.Writer, input string, set func(string) (T, error), chosenFormat, invalidText string, next State) error {
	value, err := set(input)
	if err != nil {
		if !errors.Is(err, tshirt.ErrInvalidSelection) {
			return err
		}
		_, err = io.WriteString(w, invalidText+s.Prompt())
		return err
	}
	s.transition(next)
	_, err = io.WriteString(w, fmt.Sprintf(chosenFormat, value.String())+s.Prompt())
	return err
}

func (s *Session) handleText(w io.Writer, input string, set func(string) error, next State) error {
	if err := set(input); err != nil {
		if !errors.Is(err, tshirt.ErrInvalidText) {
			return err
		}
		_, err = io.WriteString(w, fmt.Sprintf(invalidTextFormat, tshirt.MaxTextLength)+s.Prompt())
		return err
	}
	s.transition(next)
	_, err := io.WriteString(w, s.Prompt())
	return err
}

func (s *Session) handleFontColor(w io.Writer, input string) error {
	fontColor, err := s.builder.SetFontColor(input)
	if err != nil {
		if !errors.Is(err, tshirt.ErrInvalidSelection) {
			return err
		}
		_, err = io.WriteString(w, invalidFontColorText+s.Prompt())
		return err
	}
	design, err := s.builder.Design()
	if err != nil {
		return fmt.Errorf("session: assembling design: %w", err)
	}
	s.transition(StateConfirmOrder)
	_, err = fmt.Fprintf(w, fontColorChosenFormat+summaryFormat+confirmPromptText, fontColor, design)
	return err
}

func (s *Session) handleConfirm(ctx context.Context, w io.Writer, input string) error {
	switch input {
	case "y":
		return s.placeOrder(ctx, w)
	case "n":
		s.builder.Reset()
		return s.toMenu(w, "")
	default:
		_, err := io.WriteString(w, confirmPromptText)
		return err
	}
}

// placeOrder renders the print first and persists only if that
// succeeded, so a failed build leaves no order behind.
func (s *Session) placeOrder(ctx context.Context, w io.Writer) error {
	design, err := s.builder.Design()
	if err != nil {
		return fmt.Errorf("session: assembling design: %w", err)
	}
	s.builder.Reset()

	blob, err := tshirt.Encode(design)
	if err != nil {
		return fmt.Errorf("session: encoding design: %w", err)
	}
	createdAt := s.clock.Now().UTC()
	fingerprint := tshirt.Fingerprint(blob, createdAt)

	artifact, err := s.renderer.Render(ctx, design, fingerprint)
	if err != nil {
		s.logger.Warn("render failed", "error", err)
		return s.toMenu(w, renderFailedText)
	}

	order, err := s.store.CreateOrder(ctx, shopstore.NewOrder{
		IdentityID: s.identity,
		Design:     blob,
		CreatedAt:  createdAt,
	})
	if err != nil {
		return &storeError{op: "create order", err: err}
	}

	s.logger.Info("order placed",
		"order", order.ID,
		"fingerprint", order.Fingerprint,
		"artifact", artifact.Path,
	)
	return s.toMenu(w, fmt.Sprintf(orderPlacedFormat, order.ID))
}

func (s *Session) listOrders(ctx context.Context, w io.Writer) error {
	orders, err := s.store.ListOrders(ctx, s.identity)
	if err != nil {
		return &storeError{op: "list orders", err: err}
	}

	var listing strings.Builder
	listing.WriteString(ordersHeaderText)
	for _, order := range orders {
		parameters := unreadableDesignText
		if design, err := tshirt.Decode(order.Design); err == nil {
			parameters = design.String()
		} else {
			s.logger.Warn("stored design does not decode", "order", order.ID, "error", err)
		}
		listing.WriteString(orderSeparatorText)
		fmt.Fprintf(&listing, orderEntryFormat, order.ID, parameters, order.CreatedAt.UTC().Format(dateLayout))
		fmt.Fprintf(&listing, orderStatusFormat, order.Status)
		listing.WriteString(orderSeparatorText)
	}

	s.transition(StateOrdersList)
	listing.WriteString(payPromptText)
	_, err = io.WriteString(w, listing.String())
	return err
}

// handlePayQuestion treats anything but y or n as "back to the menu".
func (s *Session) handlePayQuestion(w io.Writer, input string) error {
	switch input {
	case "y":
		s.transition(StateCouponOrderSelect)
		_, err := io.WriteString(w, orderSelectText)
		return err
	case "n":
		return s.toMenu(w, payDeclinedText)
	default:
		return s.toMenu(w, "")
	}
}

// handleOrderSelect answers every unusable id the same way: unknown,
// foreign, already paid, and unprovisioned orders are
// indistinguishable to the peer.
func (s *Session) handleOrderSelect(ctx context.Context, w io.Writer, input string) error {
	id, ok := parseOrderID(input)
	if !ok {
		return s.toMenu(w, notPayableText)
	}

	eligible, err := s.store.EligibleForPayment(ctx, s.identity)
	if err != nil {
		return &storeError{op: "eligible orders", err: err}
	}
	if !slices.Contains(eligible, id) {
		s.logger.Info("payment rejected", "order", id, "reason", "not eligible")
		return s.toMenu(w, notPayableText)
	}

	code, err := s.store.LookupCoupon(ctx, id)
	if errors.Is(err, shopstore.ErrNoCoupon) {
		s.logger.Info("payment rejected", "order", id, "reason", "no coupon")
		return s.toMenu(w, notPayableText)
	}
	if err != nil {
		return &storeError{op: "lookup coupon", err: err}
	}

	s.payOrder = id
	s.payCode = []byte(code)
	s.remaining = s.couponAttempts
	s.transition(StateCouponAttempt)
	_, err = io.WriteString(w, couponPromptText)
	return err
}

func (s *Session) handleCoupon(ctx context.Context, w io.Writer, input string) error {
	// input is trimmed; stored codes carry no surrounding whitespace
	// (shopstore validateCoupon), so the comparison is exact.
	if subtle.ConstantTimeCompare([]byte(input), s.payCode) != 1 {
		s.remaining--
		if s.remaining > 0 {
			_, err := fmt.Fprintf(w, wrongCouponFormat+couponPromptText, s.remaining)
			return err
		}
		s.logger.Info("payment rejected", "order", s.payOrder, "reason", "attempts exhausted")
		s.clearPayment()
		return s.toMenu(w, couponExhaustedText)
	}

	order := s.payOrder
	s.clearPayment()

	payload, err := s.store.MarkPaidAndDisclose(ctx, s.identity, order)
	if errors.Is(err, shopstore.ErrNotPayable) || errors.Is(err, shopstore.ErrNoCoupon) {
		s.logger.Info("payment rejected", "order", order, "reason", "paid concurrently")
		return s.toMenu(w, notPayableText)
	}
	if err != nil {
		return &storeError{op: "mark paid", err: err}
	}
	defer payload.Close()

	s.logger.Info("payment succeeded", "order", order)
	s.transition(StateMainMenu)
	return writeDisclosure(w, payload)
}

// writeDisclosure sends the secret straight from its protected buffer.
func writeDisclosure(w io.Writer, payload *secret.Buffer) error {
	if _, err := io.WriteString(w, paidPrefix); err != nil {
		return err
	}
	if _, err := payload.WriteTo(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\r\n"+menuText)
	return err
}

func (s *Session) clearPayment() {
	secret.Zero(s.payCode)
	s.payCode = nil
	s.payOrder = 0
	s.remaining = 0
}

// parseOrderID accepts a positive decimal id.
func parseOrderID(input string) (shopstore.OrderID, bool) {
	if input == "" || input[0] == '+' || input[0] == '-' {
		return 0, false
	}
	id, err := strconv.ParseInt(input, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return shopstore.OrderID(id), true
}
