// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bakhtin/ctf-tshirt/lib/render"
	"github.com/bakhtin/ctf-tshirt/lib/secret"
	"github.com/bakhtin/ctf-tshirt/lib/shopstore"
	"github.com/bakhtin/ctf-tshirt/lib/tshirt"
)

var epoch = time.Date(2026, 3, 1, 9, 30, 15, 250000000, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore keeps orders in memory with the same ownership and status
// rules as shopstore.
type fakeStore struct {
	mu      sync.Mutex
	orders  []shopstore.Order
	coupons map[shopstore.OrderID]string
	secrets map[shopstore.OrderID]string

	// err, when set, fails every call.
	err error
	// stealPayment makes MarkPaidAndDisclose behave as if another
	// session paid the order first.
	stealPayment bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		coupons: make(map[shopstore.OrderID]string),
		secrets: make(map[shopstore.OrderID]string),
	}
}

func (f *fakeStore) provision(order shopstore.OrderID, code, payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coupons[order] = code
	f.secrets[order] = payload
}

// addOrder inserts an order for identity directly.
func (f *fakeStore) addOrder(identity shopstore.IdentityID, design tshirt.Design, createdAt time.Time) shopstore.OrderID {
	blob, err := tshirt.Encode(design)
	if err != nil {
		panic(err)
	}
	order, err := f.CreateOrder(context.Background(), shopstore.NewOrder{IdentityID: identity, Design: blob, CreatedAt: createdAt})
	if err != nil {
		panic(err)
	}
	return order.ID
}

func (f *fakeStore) status(id shopstore.OrderID) shopstore.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.ID == id {
			return order.Status
		}
	}
	return ""
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeStore) CreateOrder(_ context.Context, order shopstore.NewOrder) (shopstore.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return shopstore.Order{}, f.err
	}
	created := shopstore.Order{
		ID:          shopstore.OrderID(len(f.orders) + 1),
		IdentityID:  order.IdentityID,
		Design:      order.Design,
		CreatedAt:   order.CreatedAt.UTC(),
		Fingerprint: tshirt.Fingerprint(order.Design, order.CreatedAt),
		Status:      shopstore.StatusNew,
	}
	f.orders = append(f.orders, created)
	return created, nil
}

func (f *fakeStore) ListOrders(_ context.Context, identity shopstore.IdentityID) ([]shopstore.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var owned []shopstore.Order
	for _, order := range f.orders {
		if order.IdentityID == identity {
			owned = append(owned, order)
		}
	}
	return owned, nil
}

func (f *fakeStore) EligibleForPayment(_ context.Context, identity shopstore.IdentityID) ([]shopstore.OrderID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var ids []shopstore.OrderID
	for _, order := range f.orders {
		if order.IdentityID == identity && order.Status == shopstore.StatusNew {
			ids = append(ids, order.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) LookupCoupon(_ context.Context, order shopstore.OrderID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	code, ok := f.coupons[order]
	if !ok {
		return "", shopstore.ErrNoCoupon
	}
	return code, nil
}

func (f *fakeStore) MarkPaidAndDisclose(_ context.Context, identity shopstore.IdentityID, id shopstore.OrderID) (*secret.Buffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.stealPayment {
		return nil, shopstore.ErrNotPayable
	}
	index := slices.IndexFunc(f.orders, func(order shopstore.Order) bool {
		return order.ID == id && order.IdentityID == identity && order.Status == shopstore.StatusNew
	})
	if index < 0 {
		return nil, shopstore.ErrNotPayable
	}
	payload, ok := f.secrets[id]
	if !ok {
		return nil, shopstore.ErrNoCoupon
	}
	f.orders[index].Status = shopstore.StatusPaid
	return secret.NewFromBytes([]byte(payload))
}

type renderCall struct {
	design tshirt.Design
	name   string
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls []renderCall
	err   error
}

func (f *fakeRenderer) Render(_ context.Context, design tshirt.Design, name string) (render.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, renderCall{design: design, name: name})
	if f.err != nil {
		return render.Artifact{}, f.err
	}
	return render.Artifact{Path: fmt.Sprintf("/artifacts/%s.jpg", name)}, nil
}
