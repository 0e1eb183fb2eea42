package output

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/shadecore/internal/gpu"
)

// Options supplies the sinks a Router drives. Zero fields fall back to the
// platform bridges and the real stream/frame senders.
type Options struct {
	Syphon    TextureBridge
	Spout     TextureBridge
	Publisher FramePublisher
	NewStream func(StreamConfig) Sink
	NewFrames func(FrameConfig, FramePublisher) Sink
}

// Router publishes the render target to the current output mode. It is owned
// by the render thread.
type Router struct {
	cfg  Config
	dev  gpu.Device
	opts Options
	mode Mode

	// warned suppresses repeated per-frame warnings until the next mode change.
	warned bool

	shared     TextureHandle
	sharedMode Mode
	sharedW    int
	sharedH    int

	stream Sink
	frames Sink

	log zerolog.Logger
}

func NewRouter(cfg Config, dev gpu.Device, opts Options) *Router {
	if opts.Syphon == nil {
		opts.Syphon = DefaultSyphon()
	}
	if opts.Spout == nil {
		opts.Spout = DefaultSpout()
	}
	if opts.NewStream == nil {
		opts.NewStream = func(c StreamConfig) Sink { return NewStreamSender(c) }
	}
	if opts.NewFrames == nil {
		opts.NewFrames = func(c FrameConfig, p FramePublisher) Sink { return NewFrameSender(c, p) }
	}
	r := &Router{
		cfg:  cfg,
		dev:  dev,
		opts: opts,
		mode: cfg.OutputMode,
		log:  log.With().Str("tag", "OUTPUT").Logger(),
	}
	if r.mode == "" {
		r.mode = DefaultMode()
	}
	r.stream = opts.NewStream(cfg.Stream)
	r.frames = opts.NewFrames(cfg.NDI, opts.Publisher)
	return r
}

func (r *Router) Current() Mode { return r.mode }

func (r *Router) Config() Config { return r.cfg }

func (r *Router) Hotkeys() Hotkeys { return r.cfg.Hotkeys }

// SetMode switches the active output. Sinks owned by the mode being left are
// torn down before m becomes current.
func (r *Router) SetMode(m Mode, reason string) {
	prev := r.mode
	if prev != m {
		switch prev {
		case Stream:
			r.stream.Stop()
		case NDI:
			r.frames.Stop()
		case Syphon, Spout:
			r.destroyShared()
		}
	}
	r.mode = m
	r.warned = false
	r.log.Info().Str("from", prev.String()).Str("to", m.String()).Str("because", reason).Msg("output mode changed")
}

// Publish hands this frame's texture to the current sink. It never fails:
// problems are logged once per activation and the frame is skipped.
func (r *Router) Publish(tex gpu.Texture) {
	switch r.mode {
	case Texture:
	case Syphon:
		if !r.cfg.Syphon.Enabled {
			r.warnOnce("Syphon requested but disabled in output.json; falling back to texture", nil)
			return
		}
		r.publishShared(r.opts.Syphon, r.cfg.Syphon.Name(), tex, false)
	case Spout:
		if !r.cfg.Spout.Enabled {
			r.warnOnce("Spout requested but disabled in output.json; falling back to texture", nil)
			return
		}
		r.publishShared(r.opts.Spout, r.cfg.Spout.Name(), tex, r.cfg.Spout.Invert)
	case Stream:
		if !r.cfg.Stream.Enabled {
			r.warnOnce("Stream requested but disabled in output.json; falling back to texture", nil)
			return
		}
		r.stream.Send(r.dev, tex)
	case NDI:
		if !r.cfg.NDI.Enabled {
			r.warnOnce("NDI requested but disabled in output.json; falling back to texture", nil)
			return
		}
		r.frames.Send(r.dev, tex)
	}
}

func (r *Router) publishShared(b TextureBridge, name string, tex gpu.Texture, invert bool) {
	w, h := tex.Width(), tex.Height()
	if r.shared != nil && (r.sharedMode != r.mode || r.sharedW != w || r.sharedH != h) {
		r.destroyShared()
	}
	if r.shared == nil {
		hd, err := b.Create(name, w, h)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				r.warnOnce(r.mode.String()+" output is not available on this platform", err)
			} else {
				r.warnOnce(r.mode.String()+" sender init failed; will retry", err)
			}
			return
		}
		if inv, ok := hd.(Inverter); ok {
			inv.SetInvert(invert)
		}
		r.shared, r.sharedMode, r.sharedW, r.sharedH = hd, r.mode, w, h
		r.log.Info().Str("mode", r.mode.String()).Str("name", name).Int("w", w).Int("h", h).Msg("shared-texture sender ready")
	}
	if !r.shared.Publish(tex.ID(), w, h) {
		r.warnOnce(r.mode.String()+" send failed", nil)
	}
}

func (r *Router) destroyShared() {
	if r.shared == nil {
		return
	}
	r.shared.Destroy()
	r.shared = nil
	r.sharedMode = ""
}

func (r *Router) warnOnce(msg string, err error) {
	if r.warned {
		return
	}
	r.warned = true
	ev := r.log.Warn()
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Msg(msg)
}

// Reconfigure applies a reloaded output.json. Sinks whose configuration
// changed are stopped and rebuilt; the file's output_mode becomes current.
func (r *Router) Reconfigure(cfg Config) {
	old := r.cfg
	if cfg.Stream != old.Stream {
		r.stream.Stop()
		r.stream = r.opts.NewStream(cfg.Stream)
	}
	if cfg.NDI != old.NDI {
		r.frames.Stop()
		r.frames = r.opts.NewFrames(cfg.NDI, r.opts.Publisher)
	}
	if cfg.Syphon != old.Syphon || cfg.Spout != old.Spout {
		r.destroyShared()
	}
	r.cfg = cfg
	r.SetMode(cfg.OutputMode, "output.json reload")
}

// Close tears down every sink.
func (r *Router) Close() {
	r.stream.Stop()
	r.frames.Stop()
	r.destroyShared()
}
