// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package provision loads out-of-band coupon provisioning files and
// applies them to the shop store.
//
// A provisioning file is JSONC (JSON with // and /* */ comments and
// trailing commas):
//
//	{
//	    // Secret disclosed when order 42 is paid.
//	    "coupons": [
//	        {"order_id": 42, "code": "GOLD-2026", "secret": "FLAG{...}"},
//	    ],
//	}
//
// All coupons in a file are provisioned in one transaction: if any
// order already has a coupon, none are written.
package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/bakhtin/ctf-tshirt/lib/shopstore"
	"github.com/bakhtin/ctf-tshirt/lib/tshirt"
)

// File is the parsed content of a provisioning file.
type File struct {
	Coupons []Entry `json:"coupons"`
}

// Entry is one coupon to provision.
type Entry struct {
	OrderID int64  `json:"order_id"`
	Code    string `json:"code"`
	Secret  string `json:"secret"`
}

// Store is the part of the shop store provisioning writes to.
// *shopstore.Store implements it.
type Store interface {
	ProvisionCoupons(ctx context.Context, coupons []shopstore.Coupon) error
}

// Parse strips JSONC comments and trailing commas from data, then
// decodes it. Unknown fields are rejected so a misspelled key does not
// silently provision an empty value.
func Parse(data []byte) (*File, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var file File
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("provision: parsing: %w", err)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, fmt.Errorf("provision: parsing: trailing data after the top-level object")
	}
	return &file, nil
}

// ReadFile reads and parses the provisioning file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("provision: %w", err)
	}
	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// Validate reports every malformed entry at once. Entries are named by
// position and order id; codes and secrets never appear in errors.
func (f *File) Validate() error {
	if len(f.Coupons) == 0 {
		return fmt.Errorf("provision: no coupons")
	}

	var errs []error
	seen := make(map[int64]int, len(f.Coupons))
	for index, entry := range f.Coupons {
		if entry.OrderID <= 0 {
			errs = append(errs, fmt.Errorf("coupons[%d]: order_id must be positive", index))
		} else if first, duplicate := seen[entry.OrderID]; duplicate {
			errs = append(errs, fmt.Errorf("coupons[%d]: order %d already listed at coupons[%d]", index, entry.OrderID, first))
		} else {
			seen[entry.OrderID] = index
		}

		if entry.Code == "" {
			errs = append(errs, fmt.Errorf("coupons[%d]: code is required", index))
		} else if cleaned, err := tshirt.CleanText(entry.Code); err != nil || cleaned != entry.Code {
			errs = append(errs, fmt.Errorf("coupons[%d]: code must be at most %d printable characters without surrounding space", index, tshirt.MaxTextLength))
		}

		if entry.Secret == "" {
			errs = append(errs, fmt.Errorf("coupons[%d]: secret is required", index))
		}
	}
	return errors.Join(errs...)
}

// StoreCoupons converts the entries to store coupons.
func (f *File) StoreCoupons() []shopstore.Coupon {
	coupons := make([]shopstore.Coupon, len(f.Coupons))
	for index, entry := range f.Coupons {
		coupons[index] = shopstore.Coupon{
			OrderID: shopstore.OrderID(entry.OrderID),
			Code:    entry.Code,
			Secret:  []byte(entry.Secret),
		}
	}
	return coupons
}

// Apply validates file and provisions all of its coupons. It returns
// the number provisioned.
func Apply(ctx context.Context, store Store, file *File) (int, error) {
	if err := file.Validate(); err != nil {
		return 0, err
	}

	coupons := file.StoreCoupons()
	defer func() {
		for _, coupon := range coupons {
			clear(coupon.Secret)
		}
	}()

	if err := store.ProvisionCoupons(ctx, coupons); err != nil {
		return 0, err
	}
	return len(coupons), nil
}
