// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bakhtin/ctf-tshirt/lib/clock"
	"github.com/bakhtin/ctf-tshirt/lib/shopstore"
	"github.com/bakhtin/ctf-tshirt/lib/tshirt"
)

const (
	testIdentity  shopstore.IdentityID = 7
	otherIdentity shopstore.IdentityID = 8
)

type harness struct {
	t        *testing.T
	session  *Session
	store    *fakeStore
	renderer *fakeRenderer
	clock    *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		store:    newFakeStore(),
		renderer: &fakeRenderer{},
		clock:    clock.Fake(epoch),
	}
	session, err := New(Config{
		Store:    h.store,
		Renderer: h.renderer,
		Clock:    h.clock,
		Logger:   testLogger(),
	}, testIdentity)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.session = session
	return h
}

// send feeds one line and returns everything the session wrote.
func (h *harness) send(line string) string {
	h.t.Helper()
	var out strings.Builder
	if err := h.session.Handle(context.Background(), &out, line); err != nil {
		h.t.Fatalf("Handle(%q): %v", line, err)
	}
	return out.String()
}

func (h *harness) sendAll(lines ...string) string {
	h.t.Helper()
	var all strings.Builder
	for _, line := range lines {
		all.WriteString(h.send(line))
	}
	return all.String()
}

func (h *harness) expectState(want State) {
	h.t.Helper()
	if got := h.session.State(); got != want {
		h.t.Fatalf("state = %v, want %v", got, want)
	}
}

func redLargeHelloWorld(t *testing.T) tshirt.Design {
	t.Helper()
	design, err := tshirt.NewDesign(tshirt.SizeL, tshirt.ColorRed, "Hello", "World", tshirt.ColorBlack)
	if err != nil {
		t.Fatal(err)
	}
	return design
}

func TestGreet(t *testing.T) {
	h := newHarness(t)
	var out strings.Builder
	if err := h.session.Greet(&out); err != nil {
		t.Fatal(err)
	}
	want := "Welcome to the Fancy T-Shirts Shop!\r\nMake your own t-shirt print!\r\n" +
		"Please choose an action:\r\n1) Print constructor\r\n2) My orders\r\n3) Exit\r\n"
	if out.String() != want {
		t.Errorf("Greet wrote %q, want %q", out.String(), want)
	}
	h.expectState(StateMainMenu)
}

func TestPlaceOrder(t *testing.T) {
	h := newHarness(t)

	steps := []struct {
		input string
		want  string
		state State
	}{
		{"1", "Choose the color of t-shirt:\r\nAvailable colors: 1: WHITE, 2: BLACK, 3: BLUE, 4: RED, 5: YELLOW\r\n", StateColorSelect},
		{"4", "Color: RED\r\nChoose the size of t-shirt:\r\nAvailable sizes: 1: S, 2: M, 3: L, 4: XL, 5: XXL, 6: XXXL\r\n", StateSizeSelect},
		{"3", "Size: L\r\nThe text that will be printed on the t-shirt's front. You can leave it blank\r\n> ", StateTextFront},
		{"Hello", "The text that will be printed on the t-shirt's back. You can leave it blank\r\n> ", StateTextBack},
		{"World", "Choose the font color:\r\nAvailable colors: 1: WHITE, 2: BLACK, 3: BLUE, 4: RED, 5: YELLOW\r\n", StateFontColorSelect},
		{"2", "Font color: BLACK\r\n" +
			"T-shirt: Color - RED, Size - L, Text front - Hello, Text back - World, Font color - BLACK\r\n" +
			"Would you like to place the order? (y/n)  ", StateConfirmOrder},
		{"y", "You successfully placed the order. Order #1.\r\nYou will need it to pick up the t-shirt\r\n" + menuText, StateMainMenu},
	}
	for _, step := range steps {
		if got := h.send(step.input); got != step.want {
			t.Fatalf("after %q wrote %q, want %q", step.input, got, step.want)
		}
		h.expectState(step.state)
	}

	if h.store.count() != 1 {
		t.Fatalf("orders = %d, want 1", h.store.count())
	}
	order := h.store.orders[0]
	if order.IdentityID != testIdentity || order.Status != shopstore.StatusNew {
		t.Errorf("order = %+v", order)
	}
	if !order.CreatedAt.Equal(epoch) {
		t.Errorf("CreatedAt = %v, want %v", order.CreatedAt, epoch)
	}
	design, err := tshirt.Decode(order.Design)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if design != redLargeHelloWorld(t) {
		t.Errorf("design = %+v", design)
	}

	if len(h.renderer.calls) != 1 {
		t.Fatalf("render calls = %d, want 1", len(h.renderer.calls))
	}
	call := h.renderer.calls[0]
	if call.design != design {
		t.Errorf("rendered design = %+v, want %+v", call.design, design)
	}
	if call.name != order.Fingerprint {
		t.Errorf("artifact name = %q, want fingerprint %q", call.name, order.Fingerprint)
	}
}

func TestBlankTextsAllowed(t *testing.T) {
	h := newHarness(t)
	h.sendAll("1", "1", "1", "", "   ", "5")
	h.expectState(StateConfirmOrder)
	h.send("y")

	design, err := tshirt.Decode(h.store.orders[0].Design)
	if err != nil {
		t.Fatal(err)
	}
	if design.TextFront != "" || design.TextBack != "" {
		t.Errorf("texts = %q / %q, want blank", design.TextFront, design.TextBack)
	}
}

func TestInvalidSelectionsReprompt(t *testing.T) {
	h := newHarness(t)
	h.send("1")

	for _, input := range []string{"0", "6", "abc", "-1", "+4", "4.0", "", "99999999999"} {
		got := h.send(input)
		if want := invalidColorText + colorPrompt(); got != want {
			t.Errorf("color %q wrote %q, want %q", input, got, want)
		}
		h.expectState(StateColorSelect)
	}

	h.send("2")
	for _, input := range []string{"0", "7", "XL"} {
		if got := h.send(input); got != invalidSizeText+sizePrompt() {
			t.Errorf("size %q wrote %q", input, got)
		}
		h.expectState(StateSizeSelect)
	}

	h.sendAll("6", "front", "back")
	for _, input := range []string{"0", "6", "red"} {
		if got := h.send(input); got != invalidFontColorText+fontColorPrompt() {
			t.Errorf("font color %q wrote %q", input, got)
		}
		h.expectState(StateFontColorSelect)
	}
	if h.store.count() != 0 {
		t.Error("order created during invalid selections")
	}
}

func TestInvalidTextReprompts(t *testing.T) {
	h := newHarness(t)
	h.sendAll("1", "1", "1")

	for _, input := range []string{strings.Repeat("x", tshirt.MaxTextLength+1), "bell\a", "\xff\xfe"} {
		got := h.send(input)
		if !strings.HasPrefix(got, "Not a valid text.") || !strings.HasSuffix(got, frontPromptText) {
			t.Errorf("front text %q wrote %q", input, got)
		}
		h.expectState(StateTextFront)
	}

	h.send(strings.Repeat("x", tshirt.MaxTextLength))
	h.expectState(StateTextBack)
}

func TestMenuUnknownInput(t *testing.T) {
	h := newHarness(t)
	for _, input := range []string{"", "4", "menu", "1 2"} {
		if got := h.send(input); got != menuText {
			t.Errorf("menu %q wrote %q", input, got)
		}
		h.expectState(StateMainMenu)
	}
}

func TestDeclineOrder(t *testing.T) {
	h := newHarness(t)
	h.sendAll("1", "4", "3", "Hello", "World", "2")

	if got := h.send("maybe"); got != confirmPromptText {
		t.Errorf("unclear answer wrote %q", got)
	}
	h.expectState(StateConfirmOrder)

	if got := h.send("n"); got != menuText {
		t.Errorf("decline wrote %q", got)
	}
	h.expectState(StateMainMenu)
	if h.store.count() != 0 || len(h.renderer.calls) != 0 {
		t.Error("declined order was rendered or stored")
	}

	// A new order starts from scratch.
	h.send("1")
	if _, err := h.session.builder.Design(); err == nil {
		t.Error("builder kept selections from the declined order")
	}
}

func TestRenderFailurePersistsNothing(t *testing.T) {
	h := newHarness(t)
	h.renderer.err = errors.New("template missing")

	h.sendAll("1", "4", "3", "Hello", "World", "2")
	got := h.send("y")
	if got != renderFailedText+menuText {
		t.Errorf("render failure wrote %q", got)
	}
	h.expectState(StateMainMenu)
	if h.store.count() != 0 {
		t.Errorf("orders = %d after failed render, want 0", h.store.count())
	}
}

func TestListOrders(t *testing.T) {
	h := newHarness(t)
	first := h.store.addOrder(testIdentity, redLargeHelloWorld(t), epoch)
	h.store.addOrder(otherIdentity, redLargeHelloWorld(t), epoch)

	got := h.send("2")
	want := "Your orders\r\n" +
		"-----------\r\n" +
		"Order id: 1\r\n" +
		"\t parameters: Color - RED, Size - L, Text front - Hello, Text back - World, Font color - BLACK\r\n" +
		"\t date: 2026-03-01 09:30:15.250000\r\n" +
		"Status: New\r\n" +
		"-----------\r\n" +
		"Would you like to pay the order with a coupon?  (y/n)  "
	if got != want {
		t.Errorf("listing = %q, want %q", got, want)
	}
	if first != 1 {
		t.Fatalf("first order id = %d", first)
	}
	h.expectState(StateOrdersList)
}

func TestListOrdersEmpty(t *testing.T) {
	h := newHarness(t)
	if got := h.send("2"); got != "Your orders\r\n"+payPromptText {
		t.Errorf("empty listing = %q", got)
	}
}

func TestPayQuestion(t *testing.T) {
	cases := []struct {
		answer string
		want   string
		state  State
	}{
		{"n", payDeclinedText + menuText, StateMainMenu},
		{"y", orderSelectText, StateCouponOrderSelect},
		{"later", menuText, StateMainMenu},
	}
	for _, tc := range cases {
		h := newHarness(t)
		h.send("2")
		if got := h.send(tc.answer); got != tc.want {
			t.Errorf("answer %q wrote %q, want %q", tc.answer, got, tc.want)
		}
		h.expectState(tc.state)
	}
}

func TestPaySuccess(t *testing.T) {
	h := newHarness(t)
	order := h.store.addOrder(testIdentity, redLargeHelloWorld(t), epoch)
	h.store.provision(order, "SPRING-26", "FLAG{fancy}")

	h.sendAll("2", "y")
	if got := h.send("1"); got != couponPromptText {
		t.Fatalf("order select wrote %q", got)
	}
	h.expectState(StateCouponAttempt)

	got := h.send("SPRING-26")
	if want := "You successfully paid the order. Your secret is: FLAG{fancy}\r\n" + menuText; got != want {
		t.Errorf("payment wrote %q, want %q", got, want)
	}
	h.expectState(StateMainMenu)
	if status := h.store.status(order); status != shopstore.StatusPaid {
		t.Errorf("status = %q, want Paid", status)
	}
	if h.session.payCode != nil {
		t.Error("coupon code kept after payment")
	}

	// Paid orders are no longer selectable.
	h.sendAll("2", "y")
	if got := h.send("1"); got != notPayableText+menuText {
		t.Errorf("paying a paid order wrote %q", got)
	}
}

func TestPayWrongCodeThenRight(t *testing.T) {
	h := newHarness(t)
	order := h.store.addOrder(testIdentity, redLargeHelloWorld(t), epoch)
	h.store.provision(order, "CODE", "secret")

	h.sendAll("2", "y", "1")
	if got := h.send("code"); got != "Wrong coupon code. Try again. You have 2 attempts remaining\r\n"+couponPromptText {
		t.Errorf("first wrong code wrote %q", got)
	}
	if got := h.send("CODE"); !strings.Contains(got, "Your secret is: secret\r\n") {
		t.Errorf("second attempt wrote %q", got)
	}
}

func TestPayCodeIgnoresSurroundingWhitespace(t *testing.T) {
	h := newHarness(t)
	order := h.store.addOrder(testIdentity, redLargeHelloWorld(t), epoch)
	h.store.provision(order, "SPRING-26", "FLAG{padded}")

	h.sendAll("2", "y", "1")
	if got := h.send("  SPRING-26 \t"); !strings.Contains(got, "Your secret is: FLAG{padded}\r\n") {
		t.Errorf("padded code wrote %q", got)
	}
	if status := h.store.status(order); status != shopstore.StatusPaid {
		t.Errorf("status = %q, want Paid", status)
	}
}

func TestPayAttemptsExhausted(t *testing.T) {
	h := newHarness(t)
	order := h.store.addOrder(testIdentity, redLargeHelloWorld(t), epoch)
	h.store.provision(order, "RIGHT", "FLAG{never}")

	h.sendAll("2", "y", "1")
	outputs := []string{h.send("wrong-1"), h.send("wrong-2"), h.send("wrong-3")}

	wants := []string{
		"Wrong coupon code. Try again. You have 2 attempts remaining\r\n" + couponPromptText,
		"Wrong coupon code. Try again. You have 1 attempts remaining\r\n" + couponPromptText,
		"Wrong coupon code. You have no attempts remaining\r\n" + menuText,
	}
	for i := range wants {
		if outputs[i] != wants[i] {
			t.Errorf("attempt %d wrote %q, want %q", i+1, outputs[i], wants[i])
		}
	}
	h.expectState(StateMainMenu)

	// The correct code now lands on the main menu and discloses
	// nothing.
	if got := h.send("RIGHT"); got != menuText {
		t.Errorf("code after exhaustion wrote %q", got)
	}
	if status := h.store.status(order); status != shopstore.StatusNew {
		t.Errorf("status = %q, want New", status)
	}
}

func TestPayCustomAttempts(t *testing.T) {
	store := newFakeStore()
	order := store.addOrder(testIdentity, redLargeHelloWorld(t), epoch)
	store.provision(order, "RIGHT", "x")
	session, err := New(Config{Store: store, Renderer: &fakeRenderer{}, CouponAttempts: 1, Logger: testLogger()}, testIdentity)
	if err != nil {
		t.Fatal(err)
	}

	var out strings.Builder
	for _, line := range []string{"2", "y", "1", "nope"} {
		out.Reset()
		if err := session.Handle(context.Background(), &out, line); err != nil {
			t.Fatal(err)
		}
	}
	if out.String() != couponExhaustedText+menuText {
		t.Errorf("single attempt wrote %q", out.String())
	}
}

func TestPayRejectsUnusableOrders(t *testing.T) {
	h := newHarness(t)
	mine := h.store.addOrder(testIdentity, redLargeHelloWorld(t), epoch)
	foreign := h.store.addOrder(otherIdentity, redLargeHelloWorld(t), epoch)
	h.store.provision(foreign, "F", "foreign secret")
	// mine has no coupon.

	for _, input := range []string{"", "abc", "0", "-1", "+1", "99", "2", "1"} {
		h.sendAll("2", "y")
		got := h.send(input)
		if got != notPayableText+menuText {
			t.Errorf("order id %q wrote %q", input, got)
		}
		h.expectState(StateMainMenu)
	}
	if h.store.status(mine) != shopstore.StatusNew || h.store.status(foreign) != shopstore.StatusNew {
		t.Error("a rejected selection changed an order status")
	}
}

func TestPayRacedByOtherSession(t *testing.T) {
	h := newHarness(t)
	order := h.store.addOrder(testIdentity, redLargeHelloWorld(t), epoch)
	h.store.provision(order, "CODE", "secret")

	h.sendAll("2", "y", "1")
	h.store.stealPayment = true
	got := h.send("CODE")
	if got != notPayableText+menuText {
		t.Errorf("raced payment wrote %q", got)
	}
	if strings.Contains(got, "secret") {
		t.Error("raced payment disclosed the secret")
	}
}

func TestExit(t *testing.T) {
	h := newHarness(t)
	if got := h.send("3"); got != farewellText {
		t.Errorf("exit wrote %q", got)
	}
	if !h.session.Closed() {
		t.Error("session not closed after exit")
	}

	var out strings.Builder
	if err := h.session.Handle(context.Background(), &out, "1"); err == nil {
		t.Error("Handle after close succeeded")
	}
}

func TestStoreFailureClosesSession(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("disk I/O error")

	var out strings.Builder
	err := h.session.Handle(context.Background(), &out, "2")
	if err == nil {
		t.Fatal("Handle succeeded with a failing store")
	}
	if !errors.Is(err, h.store.err) {
		t.Errorf("error %v does not wrap the store error", err)
	}
	if out.String() != UnavailableText {
		t.Errorf("wrote %q, want the unavailable notice", out.String())
	}
	if !h.session.Closed() {
		t.Error("session still open after store failure")
	}
}

func TestStoreFailureOnCreate(t *testing.T) {
	h := newHarness(t)
	h.sendAll("1", "4", "3", "Hello", "World", "2")
	h.store.err = errors.New("database is locked")

	var out strings.Builder
	if err := h.session.Handle(context.Background(), &out, "y"); err == nil {
		t.Fatal("Handle succeeded with a failing store")
	}
	if !strings.HasSuffix(out.String(), UnavailableText) {
		t.Errorf("wrote %q", out.String())
	}
}

func TestCreatedAtFromClock(t *testing.T) {
	h := newHarness(t)
	h.clock.Advance(90 * time.Minute)
	h.sendAll("1", "1", "1", "", "", "2", "y")

	if want := epoch.Add(90 * time.Minute); !h.store.orders[0].CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", h.store.orders[0].CreatedAt, want)
	}
}

func TestNewValidation(t *testing.T) {
	cases := []Config{
		{Renderer: &fakeRenderer{}, Logger: testLogger()},
		{Store: newFakeStore(), Logger: testLogger()},
		{Store: newFakeStore(), Renderer: &fakeRenderer{}},
	}
	for i, cfg := range cases {
		if _, err := New(cfg, testIdentity); err == nil {
			t.Errorf("case %d: New succeeded", i)
		}
	}
}

func TestStateString(t *testing.T) {
	if got := StateCouponAttempt.String(); got != "coupon-attempt" {
		t.Errorf("String() = %q", got)
	}
	if got := State(42).String(); got != "state(42)" {
		t.Errorf("String() = %q", got)
	}
}
