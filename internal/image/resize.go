package image

import (
	"image"

	"golang.org/x/image/draw"
)

// Fit scales src to exactly width x height with Catmull-Rom resampling and
// returns a non-premultiplied copy. The image is stretched the same way a
// texture is stretched over the full-target quad, so aspect ratio is not
// preserved. A src that already has the requested size is copied as is.
func Fit(src image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	sr := src.Bounds()
	if sr.Dx() == width && sr.Dy() == height {
		draw.Draw(dst, dst.Rect, src, sr.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Rect, src, sr, draw.Src, nil)
	return dst
}
