package solid

import (
	"testing"

	"github.com/coreman2200/shadecore/internal/render"
	"github.com/coreman2200/shadecore/internal/render/shaders/grad"
	"github.com/stretchr/testify/assert"
)

func TestSolidUniformOverrides(t *testing.T) {
	s := New("solid", render.Color{R: 1, G: 1, B: 1})
	dst := make([]render.Color, 4)

	s.Render(dst, render.Dimensions{W: 2, H: 2}, 0, &render.Uniforms{})
	assert.Equal(t, render.Color{R: 1, G: 1, B: 1}, dst[3])

	u := &render.Uniforms{Params: map[string]float64{"u_g": 0, "u_gain": 0.5}}
	s.Render(dst, render.Dimensions{W: 2, H: 2}, 0, u)
	assert.Equal(t, render.Color{R: 0.5, G: 0, B: 0.5}, dst[0])
}

func TestGradGainScalesOutput(t *testing.T) {
	g := grad.New("default")
	dim := render.Dimensions{W: 8, H: 4}
	full := make([]render.Color, dim.Len())
	dark := make([]render.Color, dim.Len())

	g.Render(full, dim, 1.25, &render.Uniforms{})
	g.Render(dark, dim, 1.25, &render.Uniforms{Params: map[string]float64{"u_gain": 0}})
	for i := range dark {
		assert.Equal(t, render.Color{}, dark[i])
	}
	assert.NotEqual(t, full[0], full[dim.W/2], "gradient varies across the row")
}
