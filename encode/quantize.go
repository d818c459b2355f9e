// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package encode

import (
	"image"
	"image/color"

	"github.com/ericpauley/go-quantize/quantize"
)

// quantizeFrame maps an RGBA frame onto a median-cut palette of at most
// colors entries. With a key, index 0 is the transparent entry and
// receives black, key-colored and translucent pixels.
func quantizeFrame(rgba []byte, w, h int, key *color.RGBA, colors int) *image.Paletted {
	transparentAt := func(r, g, b, a uint8) bool {
		if key == nil {
			return false
		}
		if a < 0x80 || (r == 0 && g == 0 && b == 0) {
			return true
		}
		return r == key.R && g == key.G && b == key.B
	}

	// The quantizer sees the opaque pixels only, packed into one row.
	mask := make([]bool, w*h)
	opaquePix := make([]byte, 0, w*h*4)
	for i, j := 0, 0; j < w*h; i, j = i+4, j+1 {
		if transparentAt(rgba[i], rgba[i+1], rgba[i+2], rgba[i+3]) {
			mask[j] = true
			continue
		}
		opaquePix = append(opaquePix, rgba[i], rgba[i+1], rgba[i+2], 0xff)
	}

	pal := make(color.Palette, 0, colors)
	start := 0
	if key != nil {
		pal = append(pal, color.RGBA{R: key.R, G: key.G, B: key.B, A: 0})
		start = 1
	}
	if n := len(opaquePix) / 4; n > 0 {
		src := &image.RGBA{Pix: opaquePix, Stride: n * 4, Rect: image.Rect(0, 0, n, 1)}
		pal = quantize.MedianCutQuantizer{Aggregation: quantize.Mean}.Quantize(pal, src)
	}
	if len(pal) == start {
		pal = append(pal, color.RGBA{A: 0xff})
	}

	img := image.NewPaletted(image.Rect(0, 0, w, h), pal)
	opaque := pal[start:]
	lookup := make(map[color.RGBA]uint8)
	for i, j := 0, 0; j < w*h; i, j = i+4, j+1 {
		if mask[j] {
			img.Pix[j] = 0
			continue
		}
		c := color.RGBA{R: rgba[i], G: rgba[i+1], B: rgba[i+2], A: 0xff}
		idx, ok := lookup[c]
		if !ok {
			idx = uint8(opaque.Index(c) + start) //nolint:gosec // palettes hold at most 256 colors
			lookup[c] = idx
		}
		img.Pix[j] = idx
	}
	return img
}
