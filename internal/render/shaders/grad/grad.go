package grad

import (
	"math"

	"github.com/coreman2200/shadecore/internal/render"
)

// Grad renders a moving hue gradient. It is the stand-in for
// shaders/default.frag when no GPU program is available.
// Uniforms:
//   - "u_speed" hue cycles per second (default 0.1)
//   - "u_axis"  0 = horizontal, 1 = vertical, 2 = radial (default 0)
//   - "u_zoom"  spatial frequency (default 1)
//   - "u_gain"  brightness (default 1)
type Grad struct {
	name string
}

func New(name string) *Grad { return &Grad{name: name} }

func (g *Grad) Name() string { return g.name }

func (g *Grad) Render(dst []render.Color, dim render.Dimensions, t float64, u *render.Uniforms) {
	speed := u.Get("u_speed", 0.1)
	axis := int(u.Get("u_axis", 0))
	zoom := u.Get("u_zoom", 1)
	gain := float32(u.Get("u_gain", 1))

	for y := 0; y < dim.H; y++ {
		fy := norm(y, dim.H)
		for x := 0; x < dim.W; x++ {
			fx := norm(x, dim.W)
			var v float64
			switch axis {
			case 1:
				v = fy
			case 2:
				v = math.Hypot(fx-0.5, fy-0.5) * 2
			default:
				v = fx
			}
			phase := v*zoom*2*math.Pi + t*2*math.Pi*speed
			dst[y*dim.W+x] = render.Color{
				R: gain * float32(0.5+0.5*math.Sin(phase)),
				G: gain * float32(0.5+0.5*math.Sin(phase+2*math.Pi/3)),
				B: gain * float32(0.5+0.5*math.Sin(phase+4*math.Pi/3)),
			}
		}
	}
}

func norm(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}
