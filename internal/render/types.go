package render

import (
	"path/filepath"
	"sort"
	"strings"
)

type Color struct{ R, G, B float32 }

// Dimensions is the offscreen target size in pixels.
type Dimensions struct{ W, H int }

func (d Dimensions) Len() int { return d.W * d.H }

// Uniforms is what a fragment program sees each frame: the parameter store
// values plus the built-in time/frame/resolution inputs.
type Uniforms struct {
	Time   float64
	Frame  uint64
	Params map[string]float64
}

// Get returns the named uniform or def when it is not set.
func (u *Uniforms) Get(name string, def float64) float64 {
	if u == nil || u.Params == nil {
		return def
	}
	if v, ok := u.Params[name]; ok {
		return v
	}
	return def
}

// Renderer evaluates one fragment program over the whole target. dst is
// row-major, top row first.
type Renderer interface {
	Name() string
	Render(dst []Color, dim Dimensions, t float64, u *Uniforms)
}

type Registry struct {
	m        map[string]Renderer
	fallback string
}

func NewRegistry() *Registry { return &Registry{m: map[string]Renderer{}} }

func (r *Registry) Register(rr Renderer) {
	if rr == nil {
		return
	}
	r.m[rr.Name()] = rr
	if r.fallback == "" {
		r.fallback = rr.Name()
	}
}

// Alias registers rr under an additional name.
func (r *Registry) Alias(name string, rr Renderer) {
	if rr != nil {
		r.m[name] = rr
	}
}

func (r *Registry) Get(name string) (Renderer, bool) { rr, ok := r.m[name]; return rr, ok }

func (r *Registry) List() []string {
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ForShader picks the renderer for a frag path by its file stem
// ("shaders/plasma.frag" -> "plasma"). ok is false when the stem is unknown
// and the first registered renderer was returned instead.
func (r *Registry) ForShader(path string) (Renderer, bool) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if rr, ok := r.m[stem]; ok {
		return rr, true
	}
	return r.m[r.fallback], false
}
