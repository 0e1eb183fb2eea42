package engine

import (
	"context"
	"reflect"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/shadecore/internal/config"
	"github.com/coreman2200/shadecore/internal/diagnostics"
	"github.com/coreman2200/shadecore/internal/hotkey"
	"github.com/coreman2200/shadecore/internal/oscin"
	"github.com/coreman2200/shadecore/internal/output"
	"github.com/coreman2200/shadecore/internal/params"
	"github.com/coreman2200/shadecore/internal/profile"
	"github.com/coreman2200/shadecore/internal/recording"
)

// changed records path's mtime and reports whether it moved since the last
// call. A file that disappears counts as changed once.
func (e *Engine) changed(path string) bool {
	mt := config.ModTime(path)
	prev, seen := e.mtimes[path]
	e.mtimes[path] = mt
	return !seen || !mt.Equal(prev)
}

func (e *Engine) loadParams(path string) *params.File {
	e.changed(path)
	f, err := params.LoadFile(path, e.opts.Mode)
	if err != nil {
		log.Warn().Err(err).Str("tag", "PARAMS").Str("path", path).Msg("params.json unusable")
		e.failed("params", path, err)
		return nil
	}
	var ds []diagnostics.Diagnostic
	if doc, err := config.LoadRaw(path); err == nil {
		ds = diagnostics.ValidateParams(doc)
		diagnostics.Emit("CONFIG", ds)
		diagnostics.Summary("CONFIG", "params.json", ds)
	}
	e.loaded("params", path, ds)
	return f
}

func (e *Engine) loadRecording(path, profilesPath string) (recording.Config, bool) {
	e.changed(path)
	e.changed(profilesPath)
	cfg, err := recording.Load(path, e.opts.Mode)
	if err != nil {
		log.Warn().Err(err).Str("tag", "RECORDING").Str("path", path).Msg("recording config unusable; recording uses defaults")
		e.failed("recording", path, err)
		return cfg, false
	}
	e.loaded("recording", path, nil)
	return cfg, true
}

func (e *Engine) loadOutput(path string) (output.Config, bool) {
	e.changed(path)
	cfg, err := output.Load(path, e.opts.Mode)
	if err != nil {
		log.Warn().Err(err).Str("tag", "OUTPUT").Str("path", path).Msg("output.json unusable; falling back to defaults")
		e.failed("output", path, err)
		return cfg, false
	}
	e.loaded("output", path, nil)
	return cfg, true
}

func (e *Engine) loadRender(path string) (config.Selection, bool) {
	e.changed(path)
	sel, err := config.LoadRender(e.opts.Assets, e.opts.Mode)
	if err != nil {
		log.Warn().Err(err).Str("tag", "HOT").Str("path", path).Msg("render.json unusable")
		e.failed("render", path, err)
		return sel, false
	}
	e.loaded("render", path, nil)
	return sel, true
}

// restoreVariant selects the saved shader variant when it is still listed.
func (e *Engine) restoreVariant(sel config.Selection) config.Selection {
	if e.state.ShaderVariant == "" {
		return sel
	}
	want := e.opts.Assets.Resolve(e.state.ShaderVariant)
	for i, v := range sel.Variants {
		if v == want {
			sel.Index, sel.Frag = i, v
			break
		}
	}
	return sel
}

// rebuildProfiles refreshes the resolver from the params file and replays the
// profiles chosen at runtime.
func (e *Engine) rebuildProfiles() {
	e.profiles = e.file.ProfileSet(e.opts.Assets.Dir)
	for shader, name := range e.state.ActiveProfiles {
		if _, _, ok := e.profiles.Resolve(shader, name); ok {
			e.profiles.SetActive(shader, name)
		}
	}
}

func (e *Engine) rebuildKeys() {
	e.keys = hotkey.Build(e.router.Config(), e.rec.Config(), e.file.ProfileHotkeys)
}

// Reload re-reads every config whose mtime moved and applies it.
func (e *Engine) Reload() {
	paths := e.opts.Assets.Paths()
	reloaded := false

	if e.changed(paths.Render) {
		if sel, ok := e.loadRender(paths.Render); ok {
			e.applyRender(sel)
		}
		reloaded = true
	}
	if e.changed(paths.Params) {
		if f := e.loadParams(paths.Params); f != nil {
			e.applyParams(f)
		}
		reloaded = true
	}
	if e.changed(paths.Output) {
		if cfg, ok := e.loadOutput(paths.Output); ok {
			e.applyOutput(cfg)
		}
		reloaded = true
	}
	recChanged := e.changed(paths.Recording)
	profChanged := e.changed(paths.RecordingProfiles)
	if recChanged || profChanged {
		if cfg, ok := e.loadRecording(paths.Recording, paths.RecordingProfiles); ok {
			e.applyRecordingReload(cfg)
		}
		reloaded = true
	}
	if reloaded {
		e.rebuildKeys()
	}
}

// applyRender switches to the reloaded selection. When the active frag is
// unchanged, a frag_profile_map entry for it activates that profile.
func (e *Engine) applyRender(sel config.Selection) {
	prev := e.shader
	e.sel = sel
	if sel.Frag != prev {
		log.Info().Str("tag", "HOT").Str("frag", sel.Frag).Msg("render.json selects a new shader")
		e.loadShader(true)
		return
	}
	if name, ok := sel.ProfileMap[e.shader]; ok && name != e.active {
		e.applyProfile(name, "render.json frag_profile_map")
	}
}

func (e *Engine) applyParams(f *params.File) {
	e.file = f
	e.rebuildProfiles()
	active := e.active
	if active != "" {
		if _, _, ok := e.profiles.Resolve(e.shader, active); !ok {
			log.Warn().Str("tag", "PARAMS").Str("profile", active).Msg("active profile no longer defined")
			active = ""
		}
	}
	if active == "" {
		active, _ = e.profiles.Initial(e.shader)
	}
	midi := e.store.ApplyDefinitionsReload(f, e.shader, active)
	e.active = active
	e.ensureMidi(midi)
	e.ensureOSC(f.OSC)
	log.Info().Str("tag", "PARAMS").Int("params", len(f.Params)).Str("profile", active).Msg("params.json reloaded")
}

func (e *Engine) applyOutput(cfg output.Config) {
	if !reflect.DeepEqual(cfg.Preview, e.router.Config().Preview) {
		e.scale = cfg.Preview.ScaleMode
	}
	e.router.Reconfigure(cfg)
	e.state.OutputMode = string(e.router.Current())
}

// applyRecordingReload defers a changed config until the current recording
// stops.
func (e *Engine) applyRecordingReload(cfg recording.Config) {
	if cfg.Equal(e.rec.Config()) {
		return
	}
	if e.rec.IsRecording() {
		e.pendingRec = &cfg
		log.Info().Str("tag", "RECORDING").Msg("recording config changed; applying after the current recording stops")
		return
	}
	e.applyRecording(cfg)
}

func (e *Engine) applyRecording(cfg recording.Config) {
	if !e.rec.SetConfig(cfg) {
		e.pendingRec = &cfg
		return
	}
	e.pendingRec = nil
	w, h := cfg.Size()
	e.r.Resize(renderDims(w, h))
	log.Info().Str("tag", "RECORDING").Bool("enabled", cfg.Enabled).Int("w", w).Int("h", h).
		Str("profile", cfg.Profile).Msg("recording config applied")
}

func (e *Engine) ensureMidi(cfg profile.MidiConfig) {
	if e.midi == nil {
		return
	}
	if err := e.midi.Ensure(cfg); err != nil {
		log.Warn().Err(err).Str("tag", "MIDI").Msg("MIDI input unavailable")
	}
}

// ensureOSC starts, stops or rebinds the OSC listener to match cfg.
func (e *Engine) ensureOSC(cfg params.OSCConfig) {
	if !cfg.Enabled {
		e.stopOSC()
		return
	}
	if e.osc != nil && e.oscBind == cfg.Bind {
		return
	}
	e.stopOSC()
	srv, err := oscin.Listen(cfg.Bind, e.store)
	if err != nil {
		log.Warn().Err(err).Str("tag", "OSC").Str("bind", cfg.Bind).Msg("OSC listener unavailable")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()
	e.osc, e.oscBind, e.oscStop, e.oscDone = srv, cfg.Bind, cancel, done
}

func (e *Engine) stopOSC() {
	if e.osc == nil {
		return
	}
	e.oscStop()
	_ = e.osc.Close()
	<-e.oscDone
	e.osc, e.oscBind, e.oscStop, e.oscDone = nil, "", nil, nil
}
