package engine

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/shadecore/internal/control"
	"github.com/coreman2200/shadecore/internal/profile"
	"github.com/coreman2200/shadecore/internal/recording"
	"github.com/coreman2200/shadecore/internal/render"
)

func renderDims(w, h int) render.Dimensions { return render.Dimensions{W: w, H: h} }

// Handle applies one action. It must run on the render thread.
func (e *Engine) Handle(a Action) {
	log.Debug().Str("tag", "INPUT").Stringer("action", a).Str("source", a.Source).Msg("action")
	switch a.Kind {
	case control.SetOutput:
		e.router.SetMode(a.Mode, a.Source)
		e.state.OutputMode = string(e.router.Current())
	case control.SetPreviewScale:
		e.scale = a.Scale
		log.Info().Str("tag", "OUTPUT").Str("scale", string(a.Scale)).Msg("preview scale")
	case control.RecordToggle:
		if e.rec.IsRecording() {
			e.stopRecording(a.Source)
		} else {
			e.startRecording(a.Source)
		}
	case control.RecordStart:
		e.startRecording(a.Source)
	case control.RecordStop:
		e.stopRecording(a.Source)
	case control.ProfileNext:
		e.cycleProfile(1)
	case control.ProfilePrev:
		e.cycleProfile(-1)
	case control.ProfileSet:
		e.applyProfile(a.Name, a.Source)
	case control.ShaderNext:
		e.stepShader(1)
	case control.ShaderPrev:
		e.stepShader(-1)
	case control.SetParam:
		if !e.store.SetTarget(a.Name, a.Value) {
			log.Warn().Str("tag", "PARAMS").Str("param", a.Name).Msg("unknown param")
		}
	case control.SetParamNorm:
		if !e.store.SetNormalized(a.Name, a.Value) {
			log.Warn().Str("tag", "PARAMS").Str("param", a.Name).Msg("unknown param")
		}
	}
	e.publishStatus()
}

// loadShader makes e.sel.Frag the running shader and applies its initial
// profile. With fade the previous renderer blends out.
func (e *Engine) loadShader(fade bool) {
	e.shader = e.sel.Frag
	e.state.ShaderVariant = e.shader
	rr, ok := e.opts.Registry.ForShader(e.shader)
	if !ok {
		log.Warn().Str("tag", "HOT").Str("frag", e.shader).Str("renderer", rr.Name()).
			Msg("no renderer for shader; using fallback")
	}
	if fade && e.r.RActive != nil && e.r.RActive != rr {
		_ = e.r.ArmNext(rr)
		e.fading, e.fade = true, 0
	} else {
		e.r.SetRenderer(rr)
		e.fading = false
	}

	name := e.initialProfile()
	if name == "" {
		e.active = ""
		e.ensureMidi(e.file.Midi)
		log.Info().Str("tag", "HOT").Str("frag", e.shader).Msg("shader loaded (no profiles)")
		return
	}
	e.applyProfile(name, "shader load")
}

// initialProfile is the runtime choice for the shader when one was made,
// else its render.json frag_profile_map entry, else the resolver's pick.
func (e *Engine) initialProfile() string {
	if _, chosen := e.state.ActiveProfiles[e.shader]; !chosen {
		if name, ok := e.sel.ProfileMap[e.shader]; ok {
			if _, _, ok := e.profiles.Resolve(e.shader, name); ok {
				return name
			}
			log.Warn().Str("tag", "PARAMS").Str("profile", name).Msg("frag_profile_map names an unknown profile")
		}
	}
	name, _ := e.profiles.Initial(e.shader)
	return name
}

func (e *Engine) applyProfile(name, reason string) {
	if _, _, ok := e.profiles.Resolve(e.shader, name); !ok {
		log.Warn().Str("tag", "PARAMS").Str("profile", name).Str("reason", reason).Msg("profile not found")
		return
	}
	midi := e.store.ApplyProfile(e.file, e.shader, name)
	e.active = name
	e.profiles.SetActive(e.shader, name)
	e.state.ActiveProfiles[e.shader] = name
	e.ensureMidi(midi)
}

func (e *Engine) cycleProfile(step int) {
	names := e.profiles.Names(e.shader)
	if len(names) == 0 {
		log.Info().Str("tag", "PARAMS").Msg("no profiles to cycle")
		return
	}
	e.applyProfile(profile.Cycle(names, e.active, step), "cycle")
}

func (e *Engine) stepShader(step int) {
	if len(e.sel.Variants) < 2 {
		log.Info().Str("tag", "HOT").Msg("only one shader variant configured")
		return
	}
	e.sel.Index, e.sel.Frag = e.sel.Variant(step)
	log.Info().Str("tag", "HOT").Int("index", e.sel.Index).Str("frag", e.sel.Frag).Msg("shader variant")
	e.loadShader(true)
}

// startRecording spawns the encoder and opens a capture session at the
// record resolution.
func (e *Engine) startRecording(reason string) {
	if e.rec.IsRecording() {
		log.Info().Str("tag", "RECORDING").Msg("already recording")
		return
	}
	path, err := e.rec.Start(e.opts.Assets.Dir)
	switch {
	case errors.Is(err, recording.ErrDisabled):
		log.Info().Str("tag", "RECORDING").Msg("recording is disabled in the recording config")
		return
	case err != nil:
		log.Warn().Err(err).Str("tag", "RECORDING").Msg("recording failed to start")
		return
	}
	w, h := e.rec.Config().Size()
	e.r.Resize(renderDims(w, h))
	if err := e.capture.Begin(w, h); err != nil {
		log.Warn().Err(err).Str("tag", "RECORDING").Msg("capture session failed; stopping")
		e.rec.Stop()
		return
	}
	e.recSession = e.opts.Run.SessionID("rec")
	log.Info().Str("tag", "RECORDING").Str("sid", e.recSession).Str("path", path).
		Int("w", w).Int("h", h).Str("reason", reason).Msg("recording started")
}

// stopRecording joins the writer, then applies a config deferred while
// recording.
func (e *Engine) stopRecording(reason string) {
	if !e.rec.IsRecording() {
		return
	}
	e.capture.End()
	e.rec.Stop()
	written, dropped := e.rec.Counts()
	st := e.capture.Stats()
	log.Info().Str("tag", "RECORDING").Str("sid", e.recSession).Str("path", e.rec.Path()).Uint64("written", written).
		Uint64("dropped", dropped).Uint64("forwarded", st.Forwarded).Str("reason", reason).Msg("recording stopped")
	if e.pendingRec != nil {
		e.applyRecording(*e.pendingRec)
		e.rebuildKeys()
	}
}
