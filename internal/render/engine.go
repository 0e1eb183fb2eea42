package render

import (
	"errors"
	"time"
)

// Driver receives every finished frame (the offscreen texture, a preview, a
// test capture).
type Driver interface {
	Write(buf []Color, dim Dimensions) error
}

// Engine renders frames using an active Renderer, optional next Renderer for
// crossfades between shader variants, applies post-processing, then writes to
// the driver.
type Engine struct {
	Dim Dimensions
	Drv Driver

	RActive Renderer
	RNext   Renderer
	U       *Uniforms

	BufA []Color // active
	BufB []Color // next (during crossfade)
	Out  []Color // mixed + post

	alpha  float64
	fading bool

	t0 time.Time

	post PostPipeline

	// metrics (last durations in ms)
	Last struct {
		RenderMS float64
		PostMS   float64
		TotalMS  float64
	}
}

// PostPipeline groups post stages; all are optional.
type PostPipeline struct {
	ToneMap func([]Color, *Uniforms)
}

func NewEngine(dim Dimensions, drv Driver, r Renderer) (*Engine, error) {
	if dim.Len() == 0 {
		return nil, errors.New("invalid dimensions")
	}
	e := &Engine{
		Drv:     drv,
		RActive: r,
		U:       &Uniforms{Params: map[string]float64{}},
		t0:      time.Now(),
	}
	e.Resize(dim)
	return e, nil
}

// Resize reallocates the framebuffers when the target size changes.
func (e *Engine) Resize(dim Dimensions) {
	if dim == e.Dim && len(e.Out) == dim.Len() {
		return
	}
	n := dim.Len()
	e.Dim = dim
	e.BufA = make([]Color, n)
	e.BufB = make([]Color, n)
	e.Out = make([]Color, n)
}

// Now returns seconds since engine start.
func (e *Engine) Now() float64 { return time.Since(e.t0).Seconds() }

// SetParams replaces the parameter uniforms for the next frame.
func (e *Engine) SetParams(values map[string]float32) {
	clear(e.U.Params)
	for k, v := range values {
		e.U.Params[k] = float64(v)
	}
}

// RenderOnce renders a single frame at absolute time t (seconds).
// If t < 0, it uses Engine.Now().
func (e *Engine) RenderOnce(t float64) error {
	if t < 0 {
		t = e.Now()
	}
	start := time.Now()
	e.U.Time = t

	if e.RActive != nil {
		e.RActive.Render(e.BufA, e.Dim, t, e.U)
	}
	if e.fading && e.RNext != nil {
		e.RNext.Render(e.BufB, e.Dim, t, e.U)
		Mix(e.Out, e.BufA, e.BufB, e.alpha)
	} else {
		copy(e.Out, e.BufA)
	}

	postStart := time.Now()
	if e.post.ToneMap != nil {
		e.post.ToneMap(e.Out, e.U)
	}
	e.Last.PostMS = float64(time.Since(postStart).Microseconds()) / 1000.0

	if e.Drv != nil {
		if err := e.Drv.Write(e.Out, e.Dim); err != nil {
			return err
		}
	}
	e.U.Frame++

	e.Last.RenderMS = float64(time.Since(start).Microseconds()) / 1000.0
	e.Last.TotalMS = e.Last.RenderMS
	return nil
}

func (e *Engine) UseFilmicPost() { e.SetPost(PostPipeline{ToneMap: FilmicToneMap}) }

func (e *Engine) SetPost(p PostPipeline) { e.post = p }

// SetRenderer becomes the active renderer immediately and cancels any fade.
func (e *Engine) SetRenderer(r Renderer) {
	e.RActive = r
	e.RNext = nil
	e.fading = false
	e.alpha = 0
}

// ArmNext prepares r as the crossfade target; SetCrossfade drives the mix.
func (e *Engine) ArmNext(r Renderer) error {
	if r == nil {
		return errors.New("renderer is nil")
	}
	e.RNext = r
	e.fading = true
	return nil
}

// SetCrossfade sets mix alpha 0..1. Reaching 1 promotes the next renderer.
func (e *Engine) SetCrossfade(alpha float64) {
	switch {
	case alpha <= 0:
		e.alpha = 0
		e.fading = false
	case alpha >= 1:
		e.alpha = 1
		e.fading = false
		if e.RNext != nil {
			e.RActive = e.RNext
		}
		e.RNext = nil
	default:
		e.alpha = alpha
		e.fading = true
	}
}

// Fading reports whether a crossfade is in progress.
func (e *Engine) Fading() bool { return e.fading }
