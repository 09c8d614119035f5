// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package tshirt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSelection is the sentinel wrapped by every SelectionError.
// Callers that only need to know "re-prompt" test with errors.Is.
var ErrInvalidSelection = errors.New("tshirt: invalid selection")

// SelectionError reports a rejected enumeration choice. Field names the
// prompt ("color", "size", "font color") and Input is the raw text the
// peer sent.
type SelectionError struct {
	Field string
	Input string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("tshirt: %q is not a valid %s", e.Input, e.Field)
}

func (e *SelectionError) Unwrap() error { return ErrInvalidSelection }

// Size is a garment size. Codes are stable protocol and storage
// constants.
type Size uint8

const (
	SizeS    Size = 1
	SizeM    Size = 2
	SizeL    Size = 3
	SizeXL   Size = 4
	SizeXXL  Size = 5
	SizeXXXL Size = 6
)

var sizeNames = map[Size]string{
	SizeS:    "S",
	SizeM:    "M",
	SizeL:    "L",
	SizeXL:   "XL",
	SizeXXL:  "XXL",
	SizeXXXL: "XXXL",
}

// Sizes returns every size in code order.
func Sizes() []Size {
	return []Size{SizeS, SizeM, SizeL, SizeXL, SizeXXL, SizeXXXL}
}

// Valid reports whether s is a member of the enumeration.
func (s Size) Valid() bool {
	_, ok := sizeNames[s]
	return ok
}

func (s Size) String() string {
	if name, ok := sizeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Size(%d)", uint8(s))
}

// Color is a shirt or font color. Codes are stable protocol and storage
// constants.
type Color uint8

const (
	ColorWhite  Color = 1
	ColorBlack  Color = 2
	ColorBlue   Color = 3
	ColorRed    Color = 4
	ColorYellow Color = 5
)

var colorNames = map[Color]string{
	ColorWhite:  "WHITE",
	ColorBlack:  "BLACK",
	ColorBlue:   "BLUE",
	ColorRed:    "RED",
	ColorYellow: "YELLOW",
}

// Colors returns every color in code order.
func Colors() []Color {
	return []Color{ColorWhite, ColorBlack, ColorBlue, ColorRed, ColorYellow}
}

// Valid reports whether c is a member of the enumeration.
func (c Color) Valid() bool {
	_, ok := colorNames[c]
	return ok
}

func (c Color) String() string {
	if name, ok := colorNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Color(%d)", uint8(c))
}

// ParseSize parses a decimal size code as typed by a peer.
func ParseSize(input string) (Size, error) {
	code, ok := parseCode(input)
	if ok && Size(code).Valid() {
		return Size(code), nil
	}
	return 0, &SelectionError{Field: "size", Input: input}
}

// ParseColor parses a decimal shirt color code as typed by a peer.
func ParseColor(input string) (Color, error) {
	return parseColor("color", input)
}

// ParseFontColor parses a decimal font color code. It accepts the same
// codes as ParseColor and differs only in the field reported on error.
func ParseFontColor(input string) (Color, error) {
	return parseColor("font color", input)
}

func parseColor(field, input string) (Color, error) {
	code, ok := parseCode(input)
	if ok && Color(code).Valid() {
		return Color(code), nil
	}
	return 0, &SelectionError{Field: field, Input: input}
}

// sizeByName and colorByName back design blob decoding.
func sizeByName(name string) (Size, bool) {
	for size, sizeName := range sizeNames {
		if sizeName == name {
			return size, true
		}
	}
	return 0, false
}

func colorByName(name string) (Color, bool) {
	for color, colorName := range colorNames {
		if colorName == name {
			return color, true
		}
	}
	return 0, false
}

// parseCode accepts an optionally space-padded decimal integer that
// fits in a uint8. Signs and other bases are rejected.
func parseCode(input string) (uint8, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || trimmed[0] == '+' || trimmed[0] == '-' {
		return 0, false
	}
	value, err := strconv.ParseUint(trimmed, 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(value), true
}

// SizeMenu renders the size listing shown at the size prompt, e.g.
// "1: S, 2: M, 3: L".
func SizeMenu() string {
	entries := make([]string, 0, len(sizeNames))
	for _, size := range Sizes() {
		entries = append(entries, fmt.Sprintf("%d: %s", uint8(size), size))
	}
	return strings.Join(entries, ", ")
}

// ColorMenu renders the color listing shown at the color prompts.
func ColorMenu() string {
	entries := make([]string, 0, len(colorNames))
	for _, color := range Colors() {
		entries = append(entries, fmt.Sprintf("%d: %s", uint8(color), color))
	}
	return strings.Join(entries, ", ")
}
