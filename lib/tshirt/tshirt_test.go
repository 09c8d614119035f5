// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package tshirt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		input string
		want  Color
		ok    bool
	}{
		{"1", ColorWhite, true},
		{"2", ColorBlack, true},
		{"3", ColorBlue, true},
		{"4", ColorRed, true},
		{"5", ColorYellow, true},
		{" 4 ", ColorRed, true},
		{"0", 0, false},
		{"6", 0, false},
		{"-1", 0, false},
		{"+4", 0, false},
		{"256", 0, false},
		{"red", 0, false},
		{"", 0, false},
		{"4.0", 0, false},
		{"0x4", 0, false},
	}

	for _, test := range tests {
		got, err := ParseColor(test.input)
		if test.ok {
			if err != nil {
				t.Errorf("ParseColor(%q) error: %v", test.input, err)
				continue
			}
			if got != test.want {
				t.Errorf("ParseColor(%q) = %v, want %v", test.input, got, test.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidSelection) {
			t.Errorf("ParseColor(%q) error = %v, want ErrInvalidSelection", test.input, err)
		}
	}
}

func TestParseSize(t *testing.T) {
	for code, want := range map[string]Size{"1": SizeS, "2": SizeM, "3": SizeL, "4": SizeXL, "5": SizeXXL, "6": SizeXXXL} {
		got, err := ParseSize(code)
		if err != nil || got != want {
			t.Errorf("ParseSize(%q) = %v, %v; want %v", code, got, err, want)
		}
	}
	for _, bad := range []string{"0", "7", "XL", " ", "99999999999999999999"} {
		_, err := ParseSize(bad)
		var selectionError *SelectionError
		if !errors.As(err, &selectionError) {
			t.Errorf("ParseSize(%q) error = %v, want *SelectionError", bad, err)
			continue
		}
		if selectionError.Field != "size" || selectionError.Input != bad {
			t.Errorf("ParseSize(%q) error fields = %+v", bad, selectionError)
		}
	}
}

func TestParseFontColorReportsField(t *testing.T) {
	_, err := ParseFontColor("9")
	var selectionError *SelectionError
	if !errors.As(err, &selectionError) {
		t.Fatalf("error = %v, want *SelectionError", err)
	}
	if selectionError.Field != "font color" {
		t.Errorf("Field = %q, want %q", selectionError.Field, "font color")
	}
}

func TestMenus(t *testing.T) {
	if got, want := ColorMenu(), "1: WHITE, 2: BLACK, 3: BLUE, 4: RED, 5: YELLOW"; got != want {
		t.Errorf("ColorMenu() = %q, want %q", got, want)
	}
	if got, want := SizeMenu(), "1: S, 2: M, 3: L, 4: XL, 5: XXL, 6: XXXL"; got != want {
		t.Errorf("SizeMenu() = %q, want %q", got, want)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"blank", "", "", true},
		{"whitespace only", "   \t", "", true},
		{"trimmed", "  Hello  ", "Hello", true},
		{"unicode", "Привет, мир", "Привет, мир", true},
		{"max length", strings.Repeat("x", MaxTextLength), strings.Repeat("x", MaxTextLength), true},
		{"too long", strings.Repeat("x", MaxTextLength+1), "", false},
		{"control character", "bell\a", "", false},
		{"escape sequence", "\x1b[31mred", "", false},
		{"invalid utf8", "ab\xffcd", "", false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := CleanText(test.input)
			if !test.ok {
				if !errors.Is(err, ErrInvalidText) {
					t.Fatalf("CleanText(%q) error = %v, want ErrInvalidText", test.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanText(%q): %v", test.input, err)
			}
			if got != test.want {
				t.Errorf("CleanText(%q) = %q, want %q", test.input, got, test.want)
			}
		})
	}
}

func TestBuilderKeepsStateOnError(t *testing.T) {
	var builder Builder
	if _, err := builder.SetColor("4"); err != nil {
		t.Fatal(err)
	}
	if _, err := builder.SetColor("nope"); err == nil {
		t.Fatal("expected error for invalid color")
	}
	if _, err := builder.SetSize("3"); err != nil {
		t.Fatal(err)
	}
	if err := builder.SetTextFront("Hello"); err != nil {
		t.Fatal(err)
	}
	if err := builder.SetTextBack("World"); err != nil {
		t.Fatal(err)
	}
	if _, err := builder.SetFontColor("2"); err != nil {
		t.Fatal(err)
	}

	design, err := builder.Design()
	if err != nil {
		t.Fatalf("Design: %v", err)
	}
	want := Design{Size: SizeL, Color: ColorRed, TextFront: "Hello", TextBack: "World", FontColor: ColorBlack}
	if design != want {
		t.Errorf("Design() = %+v, want %+v", design, want)
	}

	builder.Reset()
	if _, err := builder.Design(); !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("Design() after Reset error = %v, want ErrInvalidSelection", err)
	}
}

func TestNewDesignRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		size      Size
		color     Color
		fontColor Color
	}{
		{0, ColorRed, ColorBlack},
		{7, ColorRed, ColorBlack},
		{SizeL, 0, ColorBlack},
		{SizeL, 6, ColorBlack},
		{SizeL, ColorRed, 0},
		{SizeL, ColorRed, 9},
	}
	for _, c := range cases {
		if _, err := NewDesign(c.size, c.color, "", "", c.fontColor); !errors.Is(err, ErrInvalidSelection) {
			t.Errorf("NewDesign(%d, %d, %d) error = %v, want ErrInvalidSelection", c.size, c.color, c.fontColor, err)
		}
	}
}

func TestDesignString(t *testing.T) {
	design := Design{Size: SizeL, Color: ColorRed, TextFront: "Hello", TextBack: "World", FontColor: ColorBlack}
	want := "Color - RED, Size - L, Text front - Hello, Text back - World, Font color - BLACK"
	if got := design.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestEncodeDecode(t *testing.T) {
	design := Design{Size: SizeXXXL, Color: ColorYellow, TextFront: "", TextBack: "back", FontColor: ColorBlue}
	blob, err := Encode(design)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded != design {
		t.Errorf("Decode(Encode(d)) = %+v, want %+v", decoded, design)
	}

	again, err := Encode(design)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(again) != string(blob) {
		t.Error("Encode is not deterministic")
	}
}

func TestEncodeRejectsIncompleteDesign(t *testing.T) {
	if _, err := Encode(Design{}); err == nil {
		t.Error("expected error encoding zero Design")
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	blob, err := Encode(Design{Size: SizeS, Color: ColorWhite, FontColor: ColorBlack})
	if err != nil {
		t.Fatal(err)
	}
	// The version is the first map entry ("v" sorts before the longer
	// keys) and encodes as the two bytes 0x61 'v' followed by 0x01.
	index := strings.Index(string(blob), "v\x01")
	if index < 0 {
		t.Fatalf("version marker not found in %x", blob)
	}
	tampered := []byte(string(blob))
	tampered[index+1] = 0x02
	if _, err := Decode(tampered); err == nil || !strings.Contains(err.Error(), "version 2") {
		t.Errorf("Decode(version 2) error = %v", err)
	}
}

func TestDecodeReportsDiagnostic(t *testing.T) {
	// A well-formed CBOR array where a map is expected.
	_, err := Decode([]byte{0x82, 0x01, 0x02})
	if err == nil {
		t.Fatal("expected error decoding an array")
	}
	if !strings.Contains(err.Error(), "[1, 2]") {
		t.Errorf("Decode error = %v, want diagnostic notation", err)
	}
}

func TestFingerprint(t *testing.T) {
	blob, err := Encode(Design{Size: SizeM, Color: ColorBlue, TextFront: "a", TextBack: "b", FontColor: ColorWhite})
	if err != nil {
		t.Fatal(err)
	}
	createdAt := time.Date(2026, 4, 2, 10, 0, 0, 123456789, time.UTC)

	first := Fingerprint(blob, createdAt)
	if len(first) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex characters", len(first))
	}
	if again := Fingerprint(blob, createdAt.In(time.FixedZone("UTC+3", 3*3600))); again != first {
		t.Error("fingerprint depends on the time zone of createdAt")
	}
	if other := Fingerprint(blob, createdAt.Add(time.Nanosecond)); other == first {
		t.Error("fingerprint ignores createdAt")
	}
	if other := Fingerprint(append([]byte{}, blob[:len(blob)-1]...), createdAt); other == first {
		t.Error("fingerprint ignores the design blob")
	}
}
