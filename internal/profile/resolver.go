package profile

import (
	"sort"

	"github.com/coreman2200/shadecore/internal/config"
)

// Scope says where a preset was found.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeShader
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeShader:
		return "shader"
	case ScopeGlobal:
		return "global"
	default:
		return "none"
	}
}

// Set is every profile declared in params.json plus the runtime selection.
// Shader keys are written relative to AssetsDir (or absolute) and compared
// against the resolved frag path that identifies the running shader.
type Set struct {
	Global       map[string]Preset
	Shader       map[string]map[string]Preset
	ActiveShader map[string]string
	Active       string
	AssetsDir    string
}

func (s *Set) resolveKey(k string) string {
	return config.Assets{Dir: s.AssetsDir}.Resolve(k)
}

// shaderScope finds the shader_profiles entry for shader. Keys are scanned in
// sorted order so duplicate spellings of one path resolve deterministically.
func (s *Set) shaderScope(shader string) (string, map[string]Preset, bool) {
	if shader == "" {
		return "", nil, false
	}
	for _, k := range sortedKeys(s.Shader) {
		if s.resolveKey(k) == shader {
			return k, s.Shader[k], true
		}
	}
	return "", nil, false
}

// Resolve looks name up in the shader's own profiles first, then globally.
func (s *Set) Resolve(shader, name string) (Preset, Scope, bool) {
	if _, per, ok := s.shaderScope(shader); ok {
		if p, ok := per[name]; ok {
			return p, ScopeShader, true
		}
	}
	if p, ok := s.Global[name]; ok {
		return p, ScopeGlobal, true
	}
	return Preset{}, ScopeNone, false
}

// Initial picks the profile to apply when shader is (re)loaded.
func (s *Set) Initial(shader string) (string, bool) {
	for _, k := range sortedKeys(s.ActiveShader) {
		if s.resolveKey(k) == shader {
			return s.ActiveShader[k], true
		}
	}
	if _, per, ok := s.shaderScope(shader); ok {
		if _, ok := per["default"]; ok {
			return "default", true
		}
		if names := sortedKeys(per); len(names) > 0 {
			return names[0], true
		}
	}
	if s.Active != "" {
		return s.Active, true
	}
	if _, ok := s.Global["default"]; ok {
		return "default", true
	}
	if names := sortedKeys(s.Global); len(names) > 0 {
		return names[0], true
	}
	return "", false
}

// Names is the cycling list for shader: its own profiles when it has a
// shader_profiles entry, otherwise the global ones. Always sorted.
func (s *Set) Names(shader string) []string {
	if _, per, ok := s.shaderScope(shader); ok {
		return sortedKeys(per)
	}
	return sortedKeys(s.Global)
}

// SetActive records name as the active profile of shader.
func (s *Set) SetActive(shader, name string) {
	if s.ActiveShader == nil {
		s.ActiveShader = map[string]string{}
	}
	for _, k := range sortedKeys(s.ActiveShader) {
		if s.resolveKey(k) == shader {
			s.ActiveShader[k] = name
			return
		}
	}
	for _, k := range sortedKeys(s.Shader) {
		if s.resolveKey(k) == shader {
			if _, ok := s.Shader[k][name]; ok {
				s.ActiveShader[k] = name
				return
			}
		}
	}
	s.ActiveShader[shader] = name
}

// Cycle steps through names from current, wrapping at both ends. An unknown
// current counts as the first entry.
func Cycle(names []string, current string, step int) string {
	n := len(names)
	if n == 0 {
		return ""
	}
	idx := 0
	for i, name := range names {
		if name == current {
			idx = i
			break
		}
	}
	return names[((idx+step)%n+n)%n]
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
