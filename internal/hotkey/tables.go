// Package hotkey maps physical key names ("Digit4", "KeyR", "BracketRight")
// to engine actions.
package hotkey

import (
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/shadecore/internal/control"
	"github.com/coreman2200/shadecore/internal/output"
	"github.com/coreman2200/shadecore/internal/params"
	"github.com/coreman2200/shadecore/internal/recording"
)

var named = map[string]bool{
	"Insert": true, "PageUp": true, "PageDown": true, "Home": true, "End": true, "Delete": true,
	"BracketLeft": true, "BracketRight": true,
	"Quote": true, "Period": true, "Backquote": true,
	"Semicolon": true, "Comma": true, "IntlBackslash": true,
	"Minus": true, "Equal": true, "Slash": true, "Backslash": true,
	"Space": true, "Enter": true, "Tab": true, "Escape": true,
}

// Known reports whether name is a key name this package understands.
func Known(name string) bool {
	if named[name] {
		return true
	}
	for _, p := range []string{"Digit", "Numpad"} {
		if rest, ok := strings.CutPrefix(name, p); ok {
			return len(rest) == 1 && rest[0] >= '0' && rest[0] <= '9'
		}
	}
	if rest, ok := strings.CutPrefix(name, "Key"); ok {
		return len(rest) == 1 && rest[0] >= 'A' && rest[0] <= 'Z'
	}
	if rest, ok := strings.CutPrefix(name, "F"); ok {
		switch rest {
		case "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12":
			return true
		}
	}
	return false
}

// ShaderNextKeys and ShaderPrevKeys cycle render.json frag variants. Several
// keys are accepted because the physical key differs across layouts.
var (
	ShaderNextKeys = []string{"Quote", "Period", "Backquote"}
	ShaderPrevKeys = []string{"Semicolon", "Comma", "IntlBackslash"}
)

// Tables is the merged key map. Where several config files bind one key the
// more specific wins: recording, then profiles, shader variants, output modes
// and last preview scaling.
type Tables struct {
	keys map[string]control.Action
}

// Build merges the hotkey sections of output.json, recording.json and
// params.json.
func Build(out output.Config, rec recording.Config, prof params.ProfileHotkeys) *Tables {
	t := &Tables{keys: map[string]control.Action{}}

	for _, e := range []struct {
		s output.ScaleMode
		k []string
	}{
		{output.Fit, out.Preview.Hotkeys.Fit},
		{output.Fill, out.Preview.Hotkeys.Fill},
		{output.Stretch, out.Preview.Hotkeys.Stretch},
		{output.Pixel, out.Preview.Hotkeys.Pixel},
	} {
		t.bind(e.k, control.Action{Kind: control.SetPreviewScale, Scale: e.s})
	}

	byMode := out.Hotkeys.Keys()
	for _, m := range output.Modes() {
		t.bind(byMode[m], control.Action{Kind: control.SetOutput, Mode: m})
	}

	t.bind(ShaderNextKeys, control.Action{Kind: control.ShaderNext})
	t.bind(ShaderPrevKeys, control.Action{Kind: control.ShaderPrev})

	t.bind([]string{"BracketRight"}, control.Action{Kind: control.ProfileNext})
	t.bind([]string{"BracketLeft"}, control.Action{Kind: control.ProfilePrev})
	t.bind(prof.Next, control.Action{Kind: control.ProfileNext})
	t.bind(prof.Prev, control.Action{Kind: control.ProfilePrev})
	names := make([]string, 0, len(prof.Set))
	for n := range prof.Set {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		t.bind(prof.Set[n], control.Action{Kind: control.ProfileSet, Name: n})
	}

	t.bindRecording(rec.ToggleKeys, control.RecordToggle)
	t.bindRecording(rec.StartKeys, control.RecordStart)
	t.bindRecording(rec.StopKeys, control.RecordStop)
	return t
}

func (t *Tables) bind(keys []string, a control.Action) {
	for _, k := range keys {
		if !Known(k) {
			log.Warn().Str("tag", "INPUT").Str("key", k).Str("action", a.String()).Msg("unknown key name; binding ignored")
			continue
		}
		t.keys[k] = a
	}
}

// bindRecording also binds the keys that share a physical key with the
// numpad on keyboards without NumLock: Numpad0 adds Digit0 and Insert,
// Numpad9 adds Digit9 and PageUp.
func (t *Tables) bindRecording(keys []string, kind control.Kind) {
	a := control.Action{Kind: kind}
	for _, k := range keys {
		t.bind([]string{k}, a)
		switch k {
		case "Numpad0":
			t.bind([]string{"Digit0", "Insert"}, a)
		case "Numpad9":
			t.bind([]string{"Digit9", "PageUp"}, a)
		}
	}
}

// Lookup returns the action bound to key.
func (t *Tables) Lookup(key string) (control.Action, bool) {
	a, ok := t.keys[key]
	if ok {
		a.Source = "hotkey " + key
	}
	return a, ok
}

// Keys lists every bound key name, sorted.
func (t *Tables) Keys() []string {
	out := make([]string, 0, len(t.keys))
	for k := range t.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
