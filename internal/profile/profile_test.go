package profile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestPresetDecodeFlat(t *testing.T) {
	var p Preset
	require.NoError(t, yaml.Unmarshal([]byte(`{"u_gain": 0.3, "u_zoom": 2}`), &p))
	assert.True(t, p.Flat)
	assert.Equal(t, map[string]float32{"u_gain": 0.3, "u_zoom": 2}, p.Uniforms)
	assert.Nil(t, p.Midi)
	assert.Empty(t, p.CCOverrides)
}

func TestPresetDecodeV2(t *testing.T) {
	var p Preset
	src := `{"uniforms": {"u_gain": 1.5}, "midi": {"channel": 2}, "cc_overrides": {"u_gain": 12}}`
	require.NoError(t, yaml.Unmarshal([]byte(src), &p))
	assert.False(t, p.Flat)
	assert.Equal(t, float32(1.5), p.Uniforms["u_gain"])
	require.NotNil(t, p.Midi)
	require.NotNil(t, p.Midi.Channel)
	assert.Equal(t, uint8(2), *p.Midi.Channel)
	assert.Nil(t, p.Midi.PreferredDeviceContains)
	assert.Equal(t, uint8(12), p.CCOverrides["u_gain"])
}

func TestPresetDecodeRejectsScalar(t *testing.T) {
	var p Preset
	assert.Error(t, yaml.Unmarshal([]byte(`3`), &p))
}

func TestMergeMidi(t *testing.T) {
	dev := "akai"
	ch1, ch5 := uint8(1), uint8(5)
	base := MidiConfig{PreferredDeviceContains: &dev, Channel: &ch1}

	assert.Equal(t, base, MergeMidi(base, nil))

	got := MergeMidi(base, &MidiConfig{Channel: &ch5})
	assert.Equal(t, "akai", got.Device())
	assert.Equal(t, uint8(5), *got.Channel)
	assert.True(t, got.Equal(MidiConfig{PreferredDeviceContains: &dev, Channel: &ch5}))
	assert.False(t, got.Equal(base))
}

func newSet(dir string) *Set {
	return &Set{
		AssetsDir: dir,
		Global: map[string]Preset{
			"default": {Uniforms: map[string]float32{"u_gain": 1}},
			"lofi":    {Uniforms: map[string]float32{"u_gain": 0.3}},
		},
		Shader: map[string]map[string]Preset{
			"shaders/a.frag": {
				"wide": {Uniforms: map[string]float32{"u_zoom": 3}},
				"calm": {Uniforms: map[string]float32{"u_zoom": 1}},
			},
		},
		ActiveShader: map[string]string{},
	}
}

func TestResolveShaderShadowsGlobal(t *testing.T) {
	dir := "/assets"
	s := newSet(dir)
	s.Shader["shaders/a.frag"]["lofi"] = Preset{Uniforms: map[string]float32{"u_gain": 0.1}}
	a := filepath.Join(dir, "shaders", "a.frag")

	p, scope, ok := s.Resolve(a, "lofi")
	require.True(t, ok)
	assert.Equal(t, ScopeShader, scope)
	assert.Equal(t, float32(0.1), p.Uniforms["u_gain"])

	p, scope, ok = s.Resolve(filepath.Join(dir, "shaders", "b.frag"), "lofi")
	require.True(t, ok)
	assert.Equal(t, ScopeGlobal, scope)
	assert.Equal(t, float32(0.3), p.Uniforms["u_gain"])
}

func TestResolveFallsBackToGlobal(t *testing.T) {
	dir := "/assets"
	s := newSet(dir)
	p, scope, ok := s.Resolve(filepath.Join(dir, "shaders", "a.frag"), "lofi")
	require.True(t, ok)
	assert.Equal(t, ScopeGlobal, scope)
	assert.Equal(t, float32(0.3), p.Uniforms["u_gain"])

	_, _, ok = s.Resolve(filepath.Join(dir, "shaders", "a.frag"), "missing")
	assert.False(t, ok)
}

func TestInitialPrecedence(t *testing.T) {
	dir := "/assets"
	a := filepath.Join(dir, "shaders", "a.frag")
	b := filepath.Join(dir, "shaders", "b.frag")

	s := newSet(dir)
	name, ok := s.Initial(a)
	require.True(t, ok)
	assert.Equal(t, "calm", name, "first sorted shader profile")

	s.Shader["shaders/a.frag"]["default"] = Preset{}
	name, _ = s.Initial(a)
	assert.Equal(t, "default", name)

	s.ActiveShader["shaders/a.frag"] = "wide"
	name, _ = s.Initial(a)
	assert.Equal(t, "wide", name)

	name, _ = s.Initial(b)
	assert.Equal(t, "default", name, "global default")

	s.Active = "lofi"
	name, _ = s.Initial(b)
	assert.Equal(t, "lofi", name)

	s.Active = ""
	delete(s.Global, "default")
	name, _ = s.Initial(b)
	assert.Equal(t, "lofi", name, "first sorted global")

	empty := &Set{AssetsDir: dir}
	_, ok = empty.Initial(b)
	assert.False(t, ok)
}

func TestNamesAndCycle(t *testing.T) {
	dir := "/assets"
	s := newSet(dir)
	a := filepath.Join(dir, "shaders", "a.frag")

	names := s.Names(a)
	assert.Equal(t, []string{"calm", "wide"}, names)
	assert.Equal(t, []string{"default", "lofi"}, s.Names(filepath.Join(dir, "other.frag")))

	assert.Equal(t, "wide", Cycle(names, "calm", 1))
	assert.Equal(t, "calm", Cycle(names, "wide", 1))
	assert.Equal(t, "wide", Cycle(names, "calm", -1))
	assert.Equal(t, "wide", Cycle(names, "unknown", 1))
	assert.Equal(t, "", Cycle(nil, "x", 1))
}

func TestSetActive(t *testing.T) {
	dir := "/assets"
	a := filepath.Join(dir, "shaders", "a.frag")
	b := filepath.Join(dir, "shaders", "b.frag")
	s := newSet(dir)

	s.SetActive(a, "wide")
	assert.Equal(t, "wide", s.ActiveShader["shaders/a.frag"])

	s.SetActive(a, "calm")
	assert.Equal(t, "calm", s.ActiveShader["shaders/a.frag"])
	assert.Len(t, s.ActiveShader, 1)

	s.SetActive(b, "lofi")
	assert.Equal(t, "lofi", s.ActiveShader[b])

	name, _ := s.Initial(b)
	assert.Equal(t, "lofi", name)
}
