package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDiscoverWalksUp(t *testing.T) {
	t.Setenv(EnvAssets, "")
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0o755))
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	a, err := Discover(deep)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "assets"), a.Dir)
}

func TestDiscoverEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvAssets, dir)
	a, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, dir, a.Dir)
}

func TestDiscoverNotFound(t *testing.T) {
	t.Setenv(EnvAssets, "")
	_, err := Discover(t.TempDir())
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, AssetsNotFound, cerr.Kind)
}

func TestPickPlatform(t *testing.T) {
	a := Assets{Dir: t.TempDir()}
	assert.Equal(t, a.Join("params.json"), a.PickPlatform("params"))

	writeFile(t, a.Join("params."+platformName()+".json"), `{}`)
	assert.Equal(t, a.Join("params."+platformName()+".json"), a.PickPlatform("params"))
}

func TestResolve(t *testing.T) {
	a := Assets{Dir: "/srv/assets"}
	assert.Equal(t, filepath.Join("/srv/assets", "shaders", "a.frag"), a.Resolve("shaders/a.frag"))
	assert.Equal(t, "/abs/b.frag", a.Resolve("/abs/b.frag"))
}

type sample struct {
	Name  string  `yaml:"name"`
	Gain  float32 `yaml:"gain"`
	Flips bool    `yaml:"flips"`
}

func TestLoadLenientKeepsDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "s.json")
	writeFile(t, p, `{"name": "x", "extra": 1}`)

	s := sample{Gain: 0.5, Flips: true}
	require.NoError(t, Load(p, &s, Lenient))
	assert.Equal(t, sample{Name: "x", Gain: 0.5, Flips: true}, s)
}

func TestLoadStrictRejectsUnknown(t *testing.T) {
	p := filepath.Join(t.TempDir(), "s.json")
	writeFile(t, p, `{"name": "x", "extra": 1}`)

	var s sample
	err := Load(p, &s, Strict)
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, Parse, cerr.Kind)
}

func TestLoadRequiresObject(t *testing.T) {
	p := filepath.Join(t.TempDir(), "s.json")
	writeFile(t, p, `[1, 2, 3]`)

	var s sample
	err := Load(p, &s, Lenient)
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, Invalid, cerr.Kind)
}

func TestLoadMissingFile(t *testing.T) {
	var s sample
	err := Load(filepath.Join(t.TempDir(), "nope.json"), &s, Lenient)
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, IO, cerr.Kind)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadRenderDefaults(t *testing.T) {
	a := Assets{Dir: t.TempDir()}
	sel, err := LoadRender(a, Lenient)
	require.NoError(t, err)
	assert.Equal(t, a.Join("shaders", "default.frag"), sel.Frag)
	assert.Equal(t, []string{sel.Frag}, sel.Variants)
	assert.Equal(t, a.Join("shaders", "present.frag"), sel.Present)
}

func TestLoadRenderVariants(t *testing.T) {
	a := Assets{Dir: t.TempDir()}
	writeFile(t, a.Join("render.json"), `{
  "frag_variants": ["shaders/a.frag", "shaders/b.frag", "shaders/c.frag"],
  "active_frag": "shaders/b.frag",
  "frag_profile_map": {"shaders/c.frag": "crunch"}
}`)
	sel, err := LoadRender(a, Lenient)
	require.NoError(t, err)
	assert.Equal(t, 1, sel.Index)
	assert.Equal(t, a.Join("shaders", "b.frag"), sel.Frag)
	assert.Equal(t, "crunch", sel.ProfileMap[a.Join("shaders", "c.frag")])

	i, next := sel.Variant(1)
	assert.Equal(t, 2, i)
	assert.Equal(t, a.Join("shaders", "c.frag"), next)
	i, prev := sel.Variant(-2)
	assert.Equal(t, 2, i)
	assert.Equal(t, next, prev)
}

func TestLoadRenderStrictVersion(t *testing.T) {
	a := Assets{Dir: t.TempDir()}
	writeFile(t, a.Join("render.json"), `{"version": 2, "frag": "x.frag"}`)

	_, err := LoadRender(a, Strict)
	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, Invalid, cerr.Kind)

	sel, err := LoadRender(a, Lenient)
	require.NoError(t, err)
	assert.Equal(t, a.Join("x.frag"), sel.Frag)
}

func TestStatePersistence(t *testing.T) {
	a := Assets{Dir: t.TempDir()}
	st, err := LoadState(a.StatePath())
	require.NoError(t, err)
	assert.Empty(t, st.ActiveProfiles)

	st.OutputMode = "stream"
	st.ActiveProfiles["/x/a.frag"] = "lofi"
	require.NoError(t, SaveState(a.StatePath(), st))

	got, err := LoadState(a.StatePath())
	require.NoError(t, err)
	assert.Equal(t, st, got)
}
