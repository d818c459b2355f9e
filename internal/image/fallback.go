package image

import (
	"image"
	"image/color"
)

var (
	fallbackPaper = color.NRGBA{R: 0xe8, G: 0xe8, B: 0xe8, A: 0xff}
	fallbackCheck = color.NRGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}
	fallbackFrame = color.NRGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xff}
	fallbackCross = color.NRGBA{R: 0xd0, G: 0x30, B: 0x30, A: 0xff}
)

// Fallback draws the "broken image" picture shown when an upload cannot
// be decoded: a checkerboard inside a dark frame, crossed out in red.
// Every pixel is opaque.
func Fallback(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	cell := max(1, min(width, height)/8)
	border := max(1, min(width, height)/28)
	stroke := max(1, min(width, height)/20)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := fallbackPaper
			if (x/cell+y/cell)%2 == 1 {
				c = fallbackCheck
			}
			if x < border || y < border || x >= width-border || y >= height-border {
				c = fallbackFrame
			} else if onDiagonal(x, y, width, height, stroke) {
				c = fallbackCross
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// onDiagonal reports whether (x, y) is within stroke pixels of either
// diagonal of the width x height box.
func onDiagonal(x, y, width, height, stroke int) bool {
	// Distance to the diagonals scaled by the longer side.
	w, h := max(width-1, 1), max(height-1, 1)
	d1 := abs(x*h - y*w)
	d2 := abs(x*h - (h-y)*w)
	limit := stroke * max(w, h)
	return d1 <= limit || d2 <= limit
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
