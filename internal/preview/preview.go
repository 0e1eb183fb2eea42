// Package preview places the render target inside the preview window for
// each scale mode and draws it there.
package preview

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/coreman2200/shadecore/internal/output"
)

// Viewport is the rectangle of a winW x winH window covered by a srcW x srcH
// target. Fill and Pixel may extend past the window; the excess is cropped.
func Viewport(mode output.ScaleMode, srcW, srcH, winW, winH int) image.Rectangle {
	win := image.Rect(0, 0, winW, winH)
	if srcW <= 0 || srcH <= 0 || winW <= 0 || winH <= 0 {
		return image.Rectangle{}
	}
	sx := float64(winW) / float64(srcW)
	sy := float64(winH) / float64(srcH)

	var w, h int
	switch mode {
	case output.Stretch:
		return win
	case output.Fill:
		s := max(sx, sy)
		w, h = round(float64(srcW)*s), round(float64(srcH)*s)
	case output.Pixel:
		s := int(min(sx, sy))
		if s < 1 {
			s = 1
		}
		w, h = srcW*s, srcH*s
	default:
		s := min(sx, sy)
		w, h = round(float64(srcW)*s), round(float64(srcH)*s)
	}
	x0 := (winW - w) / 2
	y0 := (winH - h) / 2
	return image.Rect(x0, y0, x0+w, y0+h)
}

// Present clears dst and scales src into its viewport. Pixel mode uses
// nearest-neighbour sampling.
func Present(dst, src *image.RGBA, mode output.ScaleMode) {
	for i := range dst.Pix {
		dst.Pix[i] = 0
	}
	b := dst.Bounds()
	vp := Viewport(mode, src.Bounds().Dx(), src.Bounds().Dy(), b.Dx(), b.Dy()).Add(b.Min)
	var s draw.Scaler = draw.ApproxBiLinear
	if mode == output.Pixel {
		s = draw.NearestNeighbor
	}
	s.Scale(dst, vp, src, src.Bounds(), draw.Over, nil)
}

func round(f float64) int { return int(f + 0.5) }
