package config

import (
	"fmt"
	"os"
)

// RenderFile is assets/render.json.
type RenderFile struct {
	Version        int               `yaml:"version"`
	Frag           string            `yaml:"frag,omitempty"`
	FragVariants   []string          `yaml:"frag_variants,omitempty"`
	ActiveFrag     string            `yaml:"active_frag,omitempty"`
	PresentFrag    string            `yaml:"present_frag,omitempty"`
	FragProfileMap map[string]string `yaml:"frag_profile_map,omitempty"`
}

// Selection is the resolved shader selection. Paths are absolute; the active
// frag path is the shader identity used for profile scoping.
type Selection struct {
	Frag       string
	Present    string
	Variants   []string
	Index      int
	ProfileMap map[string]string
}

// Variant returns the variant step positions away from the current one, wrapping.
func (s Selection) Variant(step int) (int, string) {
	n := len(s.Variants)
	if n == 0 {
		return 0, s.Frag
	}
	i := ((s.Index+step)%n + n) % n
	return i, s.Variants[i]
}

// DefaultSelection is the built-in shaders/default.frag + shaders/present.frag pair.
func DefaultSelection(a Assets) Selection {
	frag := a.Join("shaders", "default.frag")
	return Selection{
		Frag:       frag,
		Present:    a.Join("shaders", "present.frag"),
		Variants:   []string{frag},
		ProfileMap: map[string]string{},
	}
}

// LoadRender reads render.json. A missing file yields DefaultSelection.
func LoadRender(a Assets, mode Mode) (Selection, error) {
	defFrag := a.Join("shaders", "default.frag")
	defPresent := a.Join("shaders", "present.frag")
	path := a.Join("render.json")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultSelection(a), nil
	}

	rf := RenderFile{Version: 1}
	if err := Load(path, &rf, mode); err != nil {
		return Selection{}, err
	}
	if mode == Strict && rf.Version != 1 {
		return Selection{}, &Error{Kind: Invalid, Path: path, Msg: fmt.Sprintf("unsupported render.json version %d (expected 1)", rf.Version)}
	}

	sel := Selection{ProfileMap: map[string]string{}}
	for _, v := range rf.FragVariants {
		sel.Variants = append(sel.Variants, a.Resolve(v))
	}
	if len(sel.Variants) == 0 {
		single := defFrag
		if rf.Frag != "" {
			single = a.Resolve(rf.Frag)
		}
		sel.Variants = []string{single}
	}
	// active_frag matches the strings as written, not the resolved paths
	if rf.ActiveFrag != "" {
		for i, v := range rf.FragVariants {
			if v == rf.ActiveFrag && i < len(sel.Variants) {
				sel.Index = i
				break
			}
		}
	}
	sel.Frag = sel.Variants[sel.Index]
	sel.Present = defPresent
	if rf.PresentFrag != "" {
		sel.Present = a.Resolve(rf.PresentFrag)
	}
	for k, v := range rf.FragProfileMap {
		sel.ProfileMap[a.Resolve(k)] = v
	}
	return sel, nil
}
