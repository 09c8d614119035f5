// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/bakhtin/ctf-tshirt/lib/tshirt"
)

// TemplateSize is the canvas of generated templates. Both text anchors
// fall inside their panel.
var TemplateSize = image.Pt(1400, 800)

var (
	backdrop  = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	frontArea = image.Rect(150, 150, 650, 750)
	backArea  = image.Rect(776, 150, 1276, 750)
)

// WriteTemplates writes a plain template for every shirt color into
// dir: two panels (front and back) in the shirt color on a grey
// backdrop. Existing templates are kept unless overwrite is set.
// It reports the files it wrote.
func WriteTemplates(dir string, overwrite bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("render: creating template directory: %w", err)
	}

	var written []string
	for _, shirt := range tshirt.Colors() {
		path := filepath.Join(dir, TemplateName(shirt))
		if !overwrite {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}

		canvas := image.NewRGBA(image.Rectangle{Max: TemplateSize})
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(backdrop), image.Point{}, draw.Src)
		fabric := image.NewUniform(inkColor(shirt))
		draw.Draw(canvas, frontArea, fabric, image.Point{}, draw.Src)
		draw.Draw(canvas, backArea, fabric, image.Point{}, draw.Src)

		if err := writeJPEG(path, canvas); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// MissingTemplates returns the template file names absent from dir.
func MissingTemplates(dir string) []string {
	var missing []string
	for _, shirt := range tshirt.Colors() {
		name := TemplateName(shirt)
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			missing = append(missing, name)
		}
	}
	return missing
}
