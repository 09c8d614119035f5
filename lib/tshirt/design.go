// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package tshirt

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTextLength is the longest print text accepted for either side of
// the shirt, in characters. The render canvas fits roughly this many
// glyphs at the default font size.
const MaxTextLength = 64

// ErrInvalidText reports print text that is too long, not valid UTF-8,
// or contains non-printable characters.
var ErrInvalidText = errors.New("tshirt: invalid print text")

// Design is a finished, validated garment design. The zero value is
// not a valid design; construct one with NewDesign or Builder.Design.
type Design struct {
	Size      Size
	Color     Color
	TextFront string
	TextBack  string
	FontColor Color
}

// NewDesign validates every field and returns the assembled design.
// Text is trimmed of surrounding whitespace; blank text is allowed.
func NewDesign(size Size, color Color, textFront, textBack string, fontColor Color) (Design, error) {
	if !size.Valid() {
		return Design{}, &SelectionError{Field: "size", Input: fmt.Sprint(uint8(size))}
	}
	if !color.Valid() {
		return Design{}, &SelectionError{Field: "color", Input: fmt.Sprint(uint8(color))}
	}
	if !fontColor.Valid() {
		return Design{}, &SelectionError{Field: "font color", Input: fmt.Sprint(uint8(fontColor))}
	}
	front, err := CleanText(textFront)
	if err != nil {
		return Design{}, err
	}
	back, err := CleanText(textBack)
	if err != nil {
		return Design{}, err
	}
	return Design{
		Size:      size,
		Color:     color,
		TextFront: front,
		TextBack:  back,
		FontColor: fontColor,
	}, nil
}

// CleanText trims surrounding whitespace and checks the remaining text
// against MaxTextLength and the printable-character rule. The empty
// string is valid.
func CleanText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if !utf8.ValidString(trimmed) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidText)
	}
	if count := utf8.RuneCountInString(trimmed); count > MaxTextLength {
		return "", fmt.Errorf("%w: %d characters, at most %d allowed", ErrInvalidText, count, MaxTextLength)
	}
	for _, r := range trimmed {
		if !unicode.IsPrint(r) {
			return "", fmt.Errorf("%w: non-printable character %U", ErrInvalidText, r)
		}
	}
	return trimmed, nil
}

// String is the one-line summary shown before order confirmation and
// in order listings.
func (d Design) String() string {
	return fmt.Sprintf("Color - %s, Size - %s, Text front - %s, Text back - %s, Font color - %s",
		d.Color, d.Size, d.TextFront, d.TextBack, d.FontColor)
}

// Builder accumulates selections one prompt at a time. Each setter
// validates its input and leaves the builder unchanged on error, so a
// failed prompt can simply be asked again.
type Builder struct {
	color     Color
	size      Size
	textFront string
	textBack  string
	fontColor Color
}

// SetColor records the shirt color from a raw selection.
func (b *Builder) SetColor(input string) (Color, error) {
	color, err := ParseColor(input)
	if err != nil {
		return 0, err
	}
	b.color = color
	return color, nil
}

// SetSize records the size from a raw selection.
func (b *Builder) SetSize(input string) (Size, error) {
	size, err := ParseSize(input)
	if err != nil {
		return 0, err
	}
	b.size = size
	return size, nil
}

// SetTextFront records the front print text.
func (b *Builder) SetTextFront(input string) error {
	text, err := CleanText(input)
	if err != nil {
		return err
	}
	b.textFront = text
	return nil
}

// SetTextBack records the back print text.
func (b *Builder) SetTextBack(input string) error {
	text, err := CleanText(input)
	if err != nil {
		return err
	}
	b.textBack = text
	return nil
}

// SetFontColor records the font color from a raw selection.
func (b *Builder) SetFontColor(input string) (Color, error) {
	color, err := ParseFontColor(input)
	if err != nil {
		return 0, err
	}
	b.fontColor = color
	return color, nil
}

// Design assembles the recorded selections. It fails if any
// enumerated field has not been set.
func (b *Builder) Design() (Design, error) {
	return NewDesign(b.size, b.color, b.textFront, b.textBack, b.fontColor)
}

// Reset discards every recorded selection.
func (b *Builder) Reset() {
	*b = Builder{}
}
