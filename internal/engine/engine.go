// Package engine owns the render thread: it ticks the parameter store, renders
// the active shader into the offscreen texture, publishes it to the current
// output and the recorder, and applies actions and config reloads between
// frames.
package engine

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/coreman2200/shadecore/internal/capture"
	"github.com/coreman2200/shadecore/internal/config"
	"github.com/coreman2200/shadecore/internal/control"
	"github.com/coreman2200/shadecore/internal/gpu"
	"github.com/coreman2200/shadecore/internal/hotkey"
	"github.com/coreman2200/shadecore/internal/logging"
	"github.com/coreman2200/shadecore/internal/midiin"
	"github.com/coreman2200/shadecore/internal/oscin"
	"github.com/coreman2200/shadecore/internal/output"
	"github.com/coreman2200/shadecore/internal/params"
	"github.com/coreman2200/shadecore/internal/preview"
	"github.com/coreman2200/shadecore/internal/profile"
	"github.com/coreman2200/shadecore/internal/recording"
	"github.com/coreman2200/shadecore/internal/render"
)

// Action is a request handled on the render thread.
type Action = control.Action

// crossfade is how long a shader variant switch blends.
const crossfade = 500 * time.Millisecond

type Options struct {
	Assets   config.Assets
	Mode     config.Mode
	Device   gpu.Device
	Registry *render.Registry
	// MIDI is nil when no MIDI backend is available.
	MIDI   drivers.Driver
	Output output.Options
	FPS    int
	// ToneMap applies the filmic post stage to every frame.
	ToneMap bool
	// Window is the preview window size; zero means 1280x720.
	Window image.Point
	// Run hands out recording session ids; nil means a fresh run.
	Run *logging.Run
	// OnEvent is called on the render thread and must not block.
	OnEvent func(Event)
}

type Engine struct {
	opts Options

	file     *params.File
	profiles *profile.Set
	store    *params.Store
	sel      config.Selection
	shader   string
	active   string
	state    config.State

	r      *render.Engine
	tex    *render.TextureDriver
	fading bool
	fade   float64

	router *output.Router
	scale  output.ScaleMode

	rec        *recording.Recorder
	capture    *capture.Pipeline
	pendingRec *recording.Config
	recSession string

	keys *hotkey.Tables
	midi *midiin.Listener

	osc     *oscin.Server
	oscBind string
	oscStop context.CancelFunc
	oscDone chan struct{}

	mtimes map[string]time.Time
	values map[string]float32

	actions chan Action
	keyIn   chan string

	now      func() time.Time
	started  time.Time
	last     time.Time
	frames   uint64
	fpsCount int
	fpsSince time.Time
	fps      float64

	mu     sync.Mutex
	status Status
}

// New loads every config under opts.Assets and prepares the render target.
// Config errors are logged and replaced by defaults; only a failure to create
// the render engine is returned.
func New(opts Options) (*Engine, error) {
	if opts.Device == nil {
		opts.Device = gpu.NewSoft()
	}
	if opts.Registry == nil || len(opts.Registry.List()) == 0 {
		return nil, errors.New("engine: no renderers registered")
	}
	if opts.FPS <= 0 {
		opts.FPS = 60
	}
	if opts.Run == nil {
		opts.Run = logging.NewRun()
	}
	if opts.Window.X <= 0 || opts.Window.Y <= 0 {
		opts.Window = image.Pt(1280, 720)
	}
	e := &Engine{
		opts:    opts,
		mtimes:  map[string]time.Time{},
		values:  map[string]float32{},
		actions: make(chan Action, 64),
		keyIn:   make(chan string, 16),
		now:     time.Now,
	}
	e.started = e.now()
	e.last = e.started
	e.fpsSince = e.started
	paths := opts.Assets.Paths()

	st, err := config.LoadState(opts.Assets.StatePath())
	if err != nil {
		log.Warn().Err(err).Str("tag", "STATE").Msg("state unreadable; starting fresh")
	}
	e.state = st

	e.file = e.loadParams(paths.Params)
	if e.file == nil {
		def := params.DefaultFile()
		e.file = &def
	}
	e.store = params.NewStore(e.file, opts.Assets.Dir)
	e.rebuildProfiles()
	if opts.MIDI != nil {
		e.midi = midiin.New(opts.MIDI, e.store)
	}

	recCfg, ok := e.loadRecording(paths.Recording, paths.RecordingProfiles)
	if !ok {
		recCfg = recording.DefaultConfig()
	}
	e.rec = recording.NewRecorder(recCfg)
	e.capture = capture.New(opts.Device, e.rec)

	outCfg, ok := e.loadOutput(paths.Output)
	if !ok {
		outCfg = output.DefaultConfig()
	}
	e.router = output.NewRouter(outCfg, opts.Device, opts.Output)
	e.scale = outCfg.Preview.ScaleMode
	if m, ok := output.ParseMode(e.state.OutputMode); ok && m != e.router.Current() {
		if outCfg.Allows(m) {
			e.router.SetMode(m, "restored from state")
		} else {
			log.Info().Str("tag", "STATE").Str("mode", string(m)).Msg("saved output mode not enabled in output.json; ignored")
		}
	}

	sel, ok := e.loadRender(paths.Render)
	if !ok {
		sel = config.DefaultSelection(opts.Assets)
	}
	e.sel = e.restoreVariant(sel)

	e.tex = render.NewTextureDriver(opts.Device)
	w, h := recCfg.Size()
	rr, _ := opts.Registry.ForShader(e.sel.Frag)
	e.r, err = render.NewEngine(renderDims(w, h), e.tex, rr)
	if err != nil {
		return nil, err
	}
	if opts.ToneMap {
		e.r.UseFilmicPost()
	}
	e.loadShader(false)

	e.ensureOSC(e.file.OSC)
	e.rebuildKeys()
	e.publishStatus()
	return e, nil
}

// Do queues an action for the render thread. It never blocks.
func (e *Engine) Do(a Action) {
	select {
	case e.actions <- a:
	default:
		log.Warn().Str("tag", "INPUT").Stringer("action", a).Msg("action queue full; dropped")
	}
}

// Key queues a key name for lookup in the hotkey tables.
func (e *Engine) Key(name string) {
	select {
	case e.keyIn <- name:
	default:
	}
}

// Run drives frames at the configured rate until ctx is done or a Quit
// action arrives. changes delivers reload signals; it may be nil.
func (e *Engine) Run(ctx context.Context, changes <-chan struct{}) error {
	tick := time.NewTicker(time.Second / time.Duration(e.opts.FPS))
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case a := <-e.actions:
			if a.Kind == control.Quit {
				return nil
			}
			e.Handle(a)
		case k := <-e.keyIn:
			if k == hotkey.Quit {
				return nil
			}
			a, ok := e.keys.Lookup(k)
			if !ok {
				log.Debug().Str("tag", "INPUT").Str("key", k).Msg("unbound key")
				continue
			}
			if a.Kind == control.Quit {
				return nil
			}
			e.Handle(a)
		case <-changes:
			e.Reload()
		case <-tick.C:
			e.Frame()
		}
	}
}

// Frame renders and publishes one frame.
func (e *Engine) Frame() {
	now := e.now()
	dt := now.Sub(e.last)
	e.last = now

	e.store.Tick()
	e.store.Values(e.values)
	e.r.SetParams(e.values)

	if e.fading {
		e.fade += dt.Seconds() / crossfade.Seconds()
		e.r.SetCrossfade(render.Ease(render.EaseSmooth, e.fade))
		if e.fade >= 1 {
			e.fading = false
		}
	}
	if err := e.r.RenderOnce(now.Sub(e.started).Seconds()); err != nil {
		log.Warn().Err(err).Str("tag", "HOT").Msg("render failed; frame skipped")
		return
	}
	e.frames++

	e.router.Publish(e.tex.Tex)
	if e.rec.IsRecording() && e.capture.Active() {
		e.capture.Frame(e.tex.Tex)
	}

	e.fpsCount++
	if el := now.Sub(e.fpsSince); el >= time.Second {
		e.fps = float64(e.fpsCount) / el.Seconds()
		e.fpsCount = 0
		e.fpsSince = now
		e.emit(Event{Kind: Stats, FPS: e.fps})
	}
	e.publishStatus()
}

func (e *Engine) publishStatus() {
	st := Status{
		Frame:      e.frames,
		Uptime:     e.now().Sub(e.started),
		FPS:        e.fps,
		Output:     e.router.Current(),
		Preview:    e.scale,
		Recording:  e.rec.IsRecording(),
		RecordPath: e.rec.Path(),
		Session:    e.recSession,
		Shader:     e.shader,
		Profile:    e.active,
		Viewport:   preview.Viewport(e.scale, e.r.Dim.W, e.r.Dim.H, e.opts.Window.X, e.opts.Window.Y),
	}
	if e.midi != nil {
		st.MidiPort = e.midi.Port()
	}
	e.mu.Lock()
	e.status = st
	e.mu.Unlock()
}

// Status is safe to call from any goroutine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := e.status
	e.mu.Unlock()
	st.Params = e.store.All()
	return st
}

// Store is shared with the MIDI and OSC listeners.
func (e *Engine) Store() *params.Store { return e.store }

// Close stops recording and every sink and listener, then saves the runtime
// selections.
func (e *Engine) Close() error {
	e.stopRecording("shutdown")
	e.router.Close()
	e.tex.Close()
	if e.midi != nil {
		e.midi.Close()
	}
	e.stopOSC()
	e.state.OutputMode = string(e.router.Current())
	if err := config.SaveState(e.opts.Assets.StatePath(), e.state); err != nil {
		log.Warn().Err(err).Str("tag", "STATE").Msg("could not save state")
		return err
	}
	return nil
}
