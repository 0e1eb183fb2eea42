package hotkey

import (
	"testing"

	"github.com/eiannone/keyboard"
	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/shadecore/internal/control"
	"github.com/coreman2200/shadecore/internal/output"
	"github.com/coreman2200/shadecore/internal/params"
	"github.com/coreman2200/shadecore/internal/recording"
)

func lookup(t *testing.T, tb *Tables, key string) control.Action {
	t.Helper()
	a, ok := tb.Lookup(key)
	if !ok {
		t.Fatalf("key %s not bound", key)
	}
	return a
}

func TestDefaultTables(t *testing.T) {
	tb := Build(output.DefaultConfig(), recording.DefaultConfig(), params.DefaultFile().ProfileHotkeys)

	a := lookup(t, tb, "Numpad4")
	assert.Equal(t, control.SetOutput, a.Kind)
	assert.Equal(t, output.Stream, a.Mode)
	assert.Equal(t, "hotkey Numpad4", a.Source)
	assert.Equal(t, output.NDI, lookup(t, tb, "Digit6").Mode)
	assert.Equal(t, output.Pixel, lookup(t, tb, "Digit0").Scale)
	assert.Equal(t, control.RecordStart, lookup(t, tb, "KeyR").Kind)
	assert.Equal(t, control.RecordStop, lookup(t, tb, "KeyS").Kind)
	assert.Equal(t, control.ProfileNext, lookup(t, tb, "BracketRight").Kind)
	assert.Equal(t, control.ShaderPrev, lookup(t, tb, "IntlBackslash").Kind)
	assert.Equal(t, control.ShaderNext, lookup(t, tb, "Quote").Kind)

	_, ok := tb.Lookup("Digit5")
	assert.False(t, ok)
}

func TestRecordingNumpadAliasesWin(t *testing.T) {
	rec := recording.DefaultConfig()
	rec.ToggleKeys = []string{"Numpad0"}
	rec.StopKeys = []string{"Numpad9"}
	tb := Build(output.DefaultConfig(), rec, params.ProfileHotkeys{})

	for _, k := range []string{"Numpad0", "Digit0", "Insert"} {
		assert.Equal(t, control.RecordToggle, lookup(t, tb, k).Kind, k)
	}
	for _, k := range []string{"Numpad9", "Digit9", "PageUp"} {
		assert.Equal(t, control.RecordStop, lookup(t, tb, k).Kind, k)
	}
	assert.Equal(t, output.Fit, lookup(t, tb, "Digit7").Scale)
}

func TestProfileHotkeys(t *testing.T) {
	prof := params.ProfileHotkeys{
		Next: []string{"KeyN"},
		Set:  map[string][]string{"lofi": {"KeyL"}, "bright": {"BracketLeft"}},
	}
	tb := Build(output.DefaultConfig(), recording.Config{}, prof)

	assert.Equal(t, control.ProfileNext, lookup(t, tb, "KeyN").Kind)
	assert.Equal(t, control.ProfileNext, lookup(t, tb, "BracketRight").Kind, "default stays when unbound")
	a := lookup(t, tb, "BracketLeft")
	assert.Equal(t, control.ProfileSet, a.Kind, "explicit binding replaces the default")
	assert.Equal(t, "bright", a.Name)
	assert.Equal(t, "lofi", lookup(t, tb, "KeyL").Name)
}

func TestUnknownKeyNamesIgnored(t *testing.T) {
	out := output.DefaultConfig()
	out.Hotkeys.Stream = []string{"Hyper7", "Digit4"}
	tb := Build(out, recording.Config{}, params.ProfileHotkeys{})
	_, ok := tb.Lookup("Hyper7")
	assert.False(t, ok)
	assert.Equal(t, output.Stream, lookup(t, tb, "Digit4").Mode)
	assert.Contains(t, tb.Keys(), "Digit4")
}

func TestKnown(t *testing.T) {
	for _, k := range []string{"Digit0", "Numpad9", "KeyZ", "F12", "PageUp", "IntlBackslash"} {
		assert.True(t, Known(k), k)
	}
	for _, k := range []string{"Digit10", "Keyz", "F13", "", "Numpad"} {
		assert.False(t, Known(k), k)
	}
}

func TestTerminalEventNames(t *testing.T) {
	for _, k := range []keyboard.Key{keyboard.KeyEsc, keyboard.KeyCtrlC} {
		name, ok := eventName(keyboard.KeyEvent{Key: k})
		if !ok || name != Quit {
			t.Fatalf("key %v: got %q %v, want Quit", k, name, ok)
		}
	}
	name, ok := eventName(keyboard.KeyEvent{Rune: '7'})
	assert.True(t, ok)
	assert.Equal(t, "Digit7", name)
	_, ok = eventName(keyboard.KeyEvent{Key: keyboard.KeyArrowUp})
	assert.False(t, ok)
}

func TestKeyName(t *testing.T) {
	cases := []struct {
		ch   rune
		key  keyboard.Key
		want string
	}{
		{'4', 0, "Digit4"},
		{'r', 0, "KeyR"},
		{'R', 0, "KeyR"},
		{']', 0, "BracketRight"},
		{'\'', 0, "Quote"},
		{'\\', 0, "IntlBackslash"},
		{0, keyboard.KeyInsert, "Insert"},
		{0, keyboard.KeyPgup, "PageUp"},
	}
	for _, c := range cases {
		got, ok := KeyName(c.ch, c.key)
		if !ok || got != c.want {
			t.Fatalf("KeyName(%q, %v) = %q, %v; want %q", c.ch, c.key, got, ok, c.want)
		}
	}
	if _, ok := KeyName('~', 0); ok {
		t.Fatal("expected no name for ~")
	}
}
