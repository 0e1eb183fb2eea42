package solid

import (
	"math"

	"github.com/coreman2200/shadecore/internal/render"
)

// Solid fills the target with one color taken from "u_r", "u_g", "u_b"
// (defaults are the base color given to New). "u_pulse_hz" modulates
// brightness and "u_gain" scales it.
type Solid struct {
	name string
	c    render.Color
}

func New(name string, c render.Color) *Solid { return &Solid{name: name, c: c} }

func (s *Solid) Name() string { return s.name }

func (s *Solid) Render(dst []render.Color, _ render.Dimensions, t float64, u *render.Uniforms) {
	scale := float32(u.Get("u_gain", 1))
	if hz := u.Get("u_pulse_hz", 0); hz > 0 {
		scale *= float32(0.5 + 0.5*math.Sin(2*math.Pi*hz*t))
	}
	c := render.Color{
		R: float32(u.Get("u_r", float64(s.c.R))) * scale,
		G: float32(u.Get("u_g", float64(s.c.G))) * scale,
		B: float32(u.Get("u_b", float64(s.c.B))) * scale,
	}
	for i := range dst {
		dst[i] = c
	}
}
