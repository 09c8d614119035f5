// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

// Package render turns a finished t-shirt design into a print preview:
// the JPEG template for the shirt color with the front and back texts
// drawn at fixed positions in the font color.
//
// Rendering is the only CPU-heavy step of an order, so an
// [ImageRenderer] bounds how many renders run at once. Artifacts are
// written to a temporary file and renamed into place; a reader never
// sees a partial JPEG.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/bakhtin/ctf-tshirt/lib/tshirt"
)

// Text anchor points on the templates, top-left of the first glyph.
var (
	FrontPosition = image.Pt(253, 276)
	BackPosition  = image.Pt(879, 276)
)

const (
	DefaultFontSize    = 48
	DefaultConcurrency = 2

	// JPEGQuality is used for artifacts and generated templates.
	JPEGQuality = 90

	// ArtifactExtension is appended to the name given to Render.
	ArtifactExtension = ".jpg"
)

// Artifact identifies a rendered print.
type Artifact struct {
	Path string
}

// Renderer produces an artifact for a design. name is a bare file
// stem, unique per order.
type Renderer interface {
	Render(ctx context.Context, design tshirt.Design, name string) (Artifact, error)
}

// Config holds the parameters for NewImageRenderer.
type Config struct {
	// TemplateDir contains tshirt_<color>.jpeg for every shirt color.
	TemplateDir string

	// OutputDir receives artifacts. Created if missing.
	OutputDir string

	// FontPath is a TrueType or OpenType font. Empty selects the
	// built-in 7x13 bitmap face, which ignores FontSize.
	FontPath string

	// FontSize in points at 72 DPI. Defaults to DefaultFontSize.
	FontSize float64

	// Concurrency bounds simultaneous renders. Defaults to
	// DefaultConcurrency.
	Concurrency int

	// Logger is required.
	Logger *slog.Logger
}

// ImageRenderer renders designs onto JPEG templates. Safe for
// concurrent use.
type ImageRenderer struct {
	templateDir string
	outputDir   string
	font        *opentype.Font
	fontSize    float64
	slots       chan struct{}
	logger      *slog.Logger
}

// NewImageRenderer validates the configuration, parses the font, and
// creates the output directory. Templates are read per render so they
// can be replaced without a restart.
func NewImageRenderer(cfg Config) (*ImageRenderer, error) {
	if cfg.TemplateDir == "" {
		return nil, fmt.Errorf("render: TemplateDir is required")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("render: OutputDir is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("render: Logger is required")
	}
	if cfg.FontSize <= 0 {
		cfg.FontSize = DefaultFontSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}

	renderer := &ImageRenderer{
		templateDir: cfg.TemplateDir,
		outputDir:   cfg.OutputDir,
		fontSize:    cfg.FontSize,
		slots:       make(chan struct{}, cfg.Concurrency),
		logger:      cfg.Logger,
	}

	if cfg.FontPath != "" {
		data, err := os.ReadFile(cfg.FontPath)
		if err != nil {
			return nil, fmt.Errorf("render: reading font: %w", err)
		}
		renderer.font, err = opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("render: parsing font %s: %w", cfg.FontPath, err)
		}
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("render: creating output directory: %w", err)
	}
	return renderer, nil
}

// TemplateName is the template file for a shirt color.
func TemplateName(shirt tshirt.Color) string {
	return "tshirt_" + strings.ToLower(shirt.String()) + ".jpeg"
}

// Render draws the design and writes <OutputDir>/<name>.jpg. It waits
// for a free render slot or for ctx to end.
func (r *ImageRenderer) Render(ctx context.Context, design tshirt.Design, name string) (Artifact, error) {
	if err := validateName(name); err != nil {
		return Artifact{}, err
	}
	if !design.Color.Valid() || !design.FontColor.Valid() {
		return Artifact{}, fmt.Errorf("render: incomplete design")
	}

	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		return Artifact{}, fmt.Errorf("render: waiting for a render slot: %w", ctx.Err())
	}
	defer func() { <-r.slots }()

	canvas, err := r.loadTemplate(design.Color)
	if err != nil {
		return Artifact{}, err
	}

	face, err := r.newFace()
	if err != nil {
		return Artifact{}, err
	}
	defer face.Close()

	ink := image.NewUniform(inkColor(design.FontColor))
	drawText(canvas, face, ink, FrontPosition, design.TextFront)
	drawText(canvas, face, ink, BackPosition, design.TextBack)

	path := filepath.Join(r.outputDir, name+ArtifactExtension)
	if err := writeJPEG(path, canvas); err != nil {
		return Artifact{}, err
	}

	r.logger.Debug("artifact rendered", "path", path, "color", design.Color.String())
	return Artifact{Path: path}, nil
}

func (r *ImageRenderer) loadTemplate(shirt tshirt.Color) (*image.RGBA, error) {
	path := filepath.Join(r.templateDir, TemplateName(shirt))
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("render: opening template: %w", err)
	}
	defer file.Close()

	template, err := jpeg.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("render: decoding template %s: %w", path, err)
	}

	bounds := template.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, template, bounds.Min, draw.Src)
	return canvas, nil
}

// newFace returns a face owned by one render: opentype faces keep
// per-face glyph buffers and must not be shared between goroutines.
func (r *ImageRenderer) newFace() (font.Face, error) {
	if r.font == nil {
		return basicfont.Face7x13, nil
	}
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    r.fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("render: creating font face: %w", err)
	}
	return face, nil
}

// drawText places text with its ascender line at the anchor's y.
func drawText(canvas draw.Image, face font.Face, ink image.Image, anchor image.Point, text string) {
	if text == "" {
		return
	}
	drawer := font.Drawer{
		Dst:  canvas,
		Src:  ink,
		Face: face,
		Dot:  fixed.P(anchor.X, anchor.Y).Add(fixed.Point26_6{Y: face.Metrics().Ascent}),
	}
	drawer.DrawString(text)
}

// inkColor maps a shirt color to the RGB value of its name.
func inkColor(c tshirt.Color) color.RGBA {
	switch c {
	case tshirt.ColorWhite:
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	case tshirt.ColorBlue:
		return color.RGBA{B: 0xff, A: 0xff}
	case tshirt.ColorRed:
		return color.RGBA{R: 0xff, A: 0xff}
	case tshirt.ColorYellow:
		return color.RGBA{R: 0xff, G: 0xff, A: 0xff}
	default:
		return color.RGBA{A: 0xff}
	}
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("render: invalid artifact name %q", name)
	}
	return nil
}

// writeJPEG encodes img next to path and renames it into place.
func writeJPEG(path string, img image.Image) error {
	file, err := os.CreateTemp(filepath.Dir(path), ".render-*")
	if err != nil {
		return fmt.Errorf("render: creating temporary file: %w", err)
	}
	temporary := file.Name()
	defer os.Remove(temporary)

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		file.Close()
		return fmt.Errorf("render: encoding %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("render: syncing %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("render: closing %s: %w", path, err)
	}
	if err := os.Chmod(temporary, 0o644); err != nil {
		return fmt.Errorf("render: setting mode on %s: %w", path, err)
	}
	if err := os.Rename(temporary, path); err != nil {
		return fmt.Errorf("render: publishing %s: %w", path, err)
	}
	return nil
}
