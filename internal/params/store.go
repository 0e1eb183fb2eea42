package params

import (
	"sort"
	"sync"

	"github.com/coreman2200/shadecore/internal/profile"
	"github.com/rs/zerolog/log"
)

// Wildcard is the channel of a binding that matches any MIDI channel.
const Wildcard uint8 = 255

type CCKey struct {
	Channel uint8
	CC      uint8
}

type Binding struct {
	Name      string
	Min       float32
	Max       float32
	Smoothing float32
}

type BindingInfo struct {
	Key CCKey
	Binding
}

// ParamState is a point-in-time view of one parameter.
type ParamState struct {
	Value     float32 `json:"value"`
	Target    float32 `json:"target"`
	Min       float32 `json:"min"`
	Max       float32 `json:"max"`
	Smoothing float32 `json:"smoothing"`
}

type span struct{ min, max float32 }

// Store holds every uniform parameter. MIDI and OSC listeners move targets
// from their own goroutines; the render loop advances values with Tick once
// per frame. All access goes through mu.
type Store struct {
	mu        sync.RWMutex
	values    map[string]float32
	targets   map[string]float32
	smooth    map[string]float32
	ranges    map[string]span
	bindings  map[CCKey]Binding
	osc       *OSCTable
	midi      profile.MidiConfig
	assetsDir string
}

// NewStore seeds every parameter at its default and builds the MIDI and OSC
// routing from f. No profile is applied.
func NewStore(f *File, assetsDir string) *Store {
	s := &Store{
		values:    map[string]float32{},
		targets:   map[string]float32{},
		smooth:    map[string]float32{},
		ranges:    map[string]span{},
		assetsDir: assetsDir,
	}
	for _, d := range f.Params {
		s.values[d.Name] = d.Default
		s.targets[d.Name] = d.Default
		s.smooth[d.Name] = d.Smoothing
		s.ranges[d.Name] = span{d.Min, d.Max}
	}
	s.midi = f.Midi
	s.bindings = buildBindings(f, f.Midi, nil)
	s.osc = NewOSCTable(f.OSC)
	logBindings("startup", s.bindings)
	return s
}

// NormalizeChannel maps 1..16 to 0..15; anything else passes through, so 0
// stays 0 and Wildcard stays Wildcard.
func NormalizeChannel(ch uint8) uint8 {
	if ch >= 1 && ch <= 16 {
		return ch - 1
	}
	return ch
}

func buildBindings(f *File, midi profile.MidiConfig, ccOverrides map[string]uint8) map[CCKey]Binding {
	out := map[CCKey]Binding{}
	var global *uint8
	if midi.Channel != nil {
		g := NormalizeChannel(*midi.Channel)
		global = &g
	}
	for _, d := range f.Params {
		if d.Midi == nil {
			continue
		}
		ch := Wildcard
		switch {
		case d.Midi.Channel != nil:
			ch = NormalizeChannel(*d.Midi.Channel)
		case global != nil:
			ch = *global
		}
		cc := d.Midi.CC
		if o, ok := ccOverrides[d.Name]; ok {
			cc = o
		}
		out[CCKey{Channel: ch, CC: cc}] = Binding{Name: d.Name, Min: d.Min, Max: d.Max, Smoothing: d.Smoothing}
	}
	return out
}

func logBindings(reason string, b map[CCKey]Binding) {
	log.Info().Str("tag", "MIDI").Str("reason", reason).Int("count", len(b)).Msg("mappings rebuilt")
	for _, bi := range sortedBindings(b) {
		log.Debug().Str("tag", "MIDI").
			Uint8("ch", bi.Key.Channel).Uint8("cc", bi.Key.CC).
			Str("param", bi.Name).Float32("min", bi.Min).Float32("max", bi.Max).Float32("smooth", bi.Smoothing).
			Msg("map")
	}
}

// ApplyCC moves the target of the parameter bound to (channel, cc). Lookup
// is exact first, then the wildcard channel, then any binding with that
// controller number if there is exactly one. Values above 127 are rejected.
func (s *Store) ApplyCC(channel, cc, value uint8) bool {
	if value > 127 || cc > 127 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[CCKey{channel, cc}]
	if !ok {
		b, ok = s.bindings[CCKey{Wildcard, cc}]
	}
	if !ok {
		found := 0
		for k, cand := range s.bindings {
			if k.CC == cc {
				found++
				b = cand
			}
		}
		if found != 1 {
			return false
		}
	}
	x := float32(value) / 127
	s.targets[b.Name] = b.Min + (b.Max-b.Min)*x
	s.smooth[b.Name] = b.Smoothing
	return true
}

// ApplyOSC routes one OSC message: configured routes first, then the
// /<prefix>/param/ and /<prefix>/raw/ fallbacks.
func (s *Store) ApplyOSC(addr string, args []any) (OSCResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.osc.Routes[addr]; ok {
		v, ok := numeric(args)
		if !ok {
			return OSCResult{}, false
		}
		if _, ok := s.values[r.Param]; !ok {
			return OSCResult{}, false
		}
		rng := s.ranges[r.Param]
		mn, mx := rng.min, rng.max
		if r.Min != nil && r.Max != nil {
			mn, mx = *r.Min, *r.Max
		}
		var t float32
		if r.Normalized {
			t = mn + (mx-mn)*clamp(v, 0, 1)
		} else {
			t = clamp(v, min(mn, mx), max(mn, mx))
		}
		s.targets[r.Param] = t
		if r.Smooth != nil {
			s.smooth[r.Param] = *r.Smooth
		}
		return OSCResult{Name: r.Param, Value: t, Normalized: r.Normalized}, true
	}

	name, norm, ok := s.osc.Fallback(addr)
	if !ok {
		return OSCResult{}, false
	}
	v, ok := numeric(args)
	if !ok {
		return OSCResult{}, false
	}
	if norm {
		ok = s.setNormalized(name, v)
	} else {
		ok = s.setTarget(name, v)
	}
	if !ok {
		return OSCResult{}, false
	}
	return OSCResult{Name: name, Value: s.targets[name], Normalized: norm}, true
}

// SetTarget clamps v to the parameter range. Smoothing is unchanged.
func (s *Store) SetTarget(name string, v float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setTarget(name, v)
}

// SetNormalized maps x in [0,1] onto the parameter range.
func (s *Store) SetNormalized(name string, x float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setNormalized(name, x)
}

func (s *Store) setTarget(name string, v float32) bool {
	if _, ok := s.values[name]; !ok {
		return false
	}
	r := s.ranges[name]
	s.targets[name] = clamp(v, r.min, r.max)
	return true
}

func (s *Store) setNormalized(name string, x float32) bool {
	if _, ok := s.values[name]; !ok {
		return false
	}
	r := s.ranges[name]
	s.targets[name] = r.min + (r.max-r.min)*clamp(x, 0, 1)
	return true
}

// Tick advances every value toward its target: alpha is 1 for zero
// smoothing, else 1-smoothing floored at 0.001.
func (s *Store) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, cur := range s.values {
		t, ok := s.targets[name]
		if !ok {
			t = cur
		}
		sm := clamp(s.smooth[name], 0, 1)
		alpha := float32(1)
		if sm > 0 {
			alpha = clamp(1-sm, 0.001, 1)
		}
		s.values[name] = cur + (t-cur)*alpha
	}
}

// ApplyProfile applies the named profile for shader: uniforms land on both
// value and target, the profile's MIDI override and cc overrides rebuild the
// bindings, and the effective MIDI config is returned. An unknown profile
// leaves the bindings alone and returns f.Midi.
func (s *Store) ApplyProfile(f *File, shader, name string) profile.MidiConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	midi, ok := s.applyProfile(f, shader, name)
	if !ok {
		return f.Midi
	}
	return midi
}

func (s *Store) applyProfile(f *File, shader, name string) (profile.MidiConfig, bool) {
	preset, scope, ok := f.ProfileSet(s.assetsDir).Resolve(shader, name)
	if !ok {
		log.Warn().Str("tag", "PARAMS").Str("profile", name).Str("shader", shader).
			Msg("profile not found (keeping existing MIDI mappings)")
		return profile.MidiConfig{}, false
	}
	for k, v := range preset.Uniforms {
		if _, declared := s.values[k]; !declared {
			log.Warn().Str("tag", "PARAMS").Str("profile", name).Str("uniform", k).
				Msg("profile sets an undeclared uniform; skipped")
			continue
		}
		s.values[k] = v
		s.targets[k] = v
	}
	midi := profile.MergeMidi(f.Midi, preset.Midi)
	s.midi = midi
	s.bindings = buildBindings(f, midi, preset.CCOverrides)
	logBindings("profile_apply", s.bindings)
	log.Info().Str("tag", "PARAMS").Str("profile", name).Stringer("scope", scope).Str("shader", shader).
		Msg("applied profile")
	return midi, true
}

// ApplyDefinitionsReload swaps in a new params.json. Parameters that already
// had a target keep value, target and smoothing and take the new range; new
// ones start at their default. Parameters no longer defined are dropped.
// active, when set, is re-applied afterwards.
func (s *Store) ApplyDefinitionsReload(f *File, shader, active string) profile.MidiConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make(map[string]float32, len(f.Params))
	targets := make(map[string]float32, len(f.Params))
	smooth := make(map[string]float32, len(f.Params))
	ranges := make(map[string]span, len(f.Params))
	for _, d := range f.Params {
		ranges[d.Name] = span{d.Min, d.Max}
		if t, ok := s.targets[d.Name]; ok {
			cur, ok := s.values[d.Name]
			if !ok {
				cur = t
			}
			sm, ok := s.smooth[d.Name]
			if !ok {
				sm = d.Smoothing
			}
			values[d.Name], targets[d.Name], smooth[d.Name] = cur, t, sm
			continue
		}
		values[d.Name], targets[d.Name], smooth[d.Name] = d.Default, d.Default, d.Smoothing
	}
	s.values, s.targets, s.smooth, s.ranges = values, targets, smooth, ranges
	s.osc = NewOSCTable(f.OSC)

	if active != "" {
		if midi, ok := s.applyProfile(f, shader, active); ok {
			return midi
		}
	}
	s.midi = f.Midi
	s.bindings = buildBindings(f, f.Midi, nil)
	logBindings("params_reload", s.bindings)
	return f.Midi
}

// Values copies every current value into dst.
func (s *Store) Values(dst map[string]float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.values {
		dst[k] = v
	}
}

func (s *Store) Snapshot(name string) (ParamState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	if !ok {
		return ParamState{}, false
	}
	r := s.ranges[name]
	return ParamState{Value: v, Target: s.targets[name], Min: r.min, Max: r.max, Smoothing: s.smooth[name]}, true
}

// All returns a snapshot of every parameter.
func (s *Store) All() map[string]ParamState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]ParamState, len(s.values))
	for name, v := range s.values {
		r := s.ranges[name]
		out[name] = ParamState{Value: v, Target: s.targets[name], Min: r.min, Max: r.max, Smoothing: s.smooth[name]}
	}
	return out
}

// Names returns the parameter names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Bindings returns the MIDI table ordered by channel then controller.
func (s *Store) Bindings() []BindingInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedBindings(s.bindings)
}

// MidiConfig is the effective MIDI config behind the current bindings.
func (s *Store) MidiConfig() profile.MidiConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.midi
}

// OSC returns the routing table in use.
func (s *Store) OSC() *OSCTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.osc
}

func sortedBindings(b map[CCKey]Binding) []BindingInfo {
	out := make([]BindingInfo, 0, len(b))
	for k, v := range b {
		out = append(out, BindingInfo{Key: k, Binding: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Channel != out[j].Key.Channel {
			return out[i].Key.Channel < out[j].Key.Channel
		}
		return out[i].Key.CC < out[j].Key.CC
	})
	return out
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
