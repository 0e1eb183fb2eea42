package diagnostics

import (
	"fmt"
	"sort"
	"strings"
)

// ValidateParams checks the relationships inside a raw params.json tree:
// param names, profile uniforms, per-shader defaults and the
// active_shader_profiles selections.
func ValidateParams(doc map[string]any) []Diagnostic {
	var out []Diagnostic

	arr, ok := doc["params"].([]any)
	if !ok {
		return append(out, errorf("params.missing", "params.json:/params",
			"missing or non-array 'params'",
			`expected an array like {"params": [{"name": "u_gain", ...}]}`))
	}

	names := map[string]bool{}
	for i, p := range arr {
		m, _ := p.(map[string]any)
		n, ok := m["name"].(string)
		if !ok || n == "" {
			out = append(out, errorf("params.name_missing", fmt.Sprintf("params.json:/params/%d/name", i),
				"missing or non-string param name",
				"each entry in /params must include a string field 'name'"))
			continue
		}
		if names[n] {
			out = append(out, errorf("params.duplicate_name", fmt.Sprintf("params.json:/params/%d", i),
				fmt.Sprintf("duplicate param name '%s'", n),
				"param names must be unique; duplicates make mappings ambiguous"))
		}
		names[n] = true
	}

	if global, ok := doc["profiles"].(map[string]any); ok {
		for _, pname := range sortedKeys(global) {
			base := "params.json:/profiles/" + escapePtr(pname)
			out = append(out, checkUniforms(base, global[pname], names)...)
		}
	}

	shaderProfiles := map[string]map[string]any{}
	raw, present := doc["shader_profiles"]
	sp, isObj := raw.(map[string]any)
	switch {
	case !present:
		out = append(out, info("shader_profiles.missing", "params.json:/shader_profiles",
			"no 'shader_profiles'", "profiles are optional; omit if you don't need per-shader defaults"))
	case !isObj:
		out = append(out, warn("shader_profiles.invalid", "params.json:/shader_profiles",
			"non-object 'shader_profiles'", `expected {"shaders/a.frag": {"default": {...}}}`))
	}
	for _, shader := range sortedKeys(sp) {
		base := "params.json:/shader_profiles/" + escapePtr(shader)
		profiles, ok := sp[shader].(map[string]any)
		if !ok {
			out = append(out, errorf("shader_profiles.entry_invalid", base,
				"shader_profiles entry must be an object of profiles",
				`expected {"default": {"uniforms": {...}}, "lofi": {...}}`))
			continue
		}
		shaderProfiles[shader] = profiles
		if _, ok := profiles["default"]; !ok {
			out = append(out, warn("shader_profiles.no_default", base,
				"no 'default' profile found for this shader",
				"recommended to include a 'default' profile for predictable startup"))
		}
		for _, pname := range sortedKeys(profiles) {
			out = append(out, checkUniforms(base+"/"+escapePtr(pname), profiles[pname], names)...)
		}
	}

	active, ok := doc["active_shader_profiles"].(map[string]any)
	if !ok {
		return out
	}
	for _, shader := range sortedKeys(active) {
		path := "params.json:/active_shader_profiles/" + escapePtr(shader)
		pname, _ := active[shader].(string)
		if pname == "" {
			out = append(out, warn("active_profile.empty", path,
				"active profile name is empty or non-string", `set to a valid profile name, e.g. "default"`))
			continue
		}
		profiles, ok := shaderProfiles[shader]
		if !ok {
			out = append(out, warn("active_profile.unknown_shader", path,
				fmt.Sprintf("active profile '%s' references shader '%s' with no entry under shader_profiles", pname, shader),
				"either add shader_profiles[shader] or remove this active_shader_profiles entry"))
			continue
		}
		if _, ok := profiles[pname]; !ok {
			out = append(out, warn("active_profile.unknown_profile", path,
				fmt.Sprintf("active profile '%s' not found; available: %s", pname, strings.Join(sortedKeys(profiles), ", ")),
				"fix the name, or add that profile under shader_profiles for this shader"))
		}
	}
	return out
}

// checkUniforms accepts both profile shapes: {"uniforms": {...}, ...} and the
// flat {name: number} form.
func checkUniforms(base string, v any, names map[string]bool) []Diagnostic {
	prof, ok := v.(map[string]any)
	if !ok {
		return []Diagnostic{warn("profile.invalid", base, "profile must be an object", "")}
	}
	uniforms := prof
	prefix := base
	if u, ok := prof["uniforms"]; ok {
		um, ok := u.(map[string]any)
		if !ok {
			return []Diagnostic{warn("profile.uniforms_invalid", base+"/uniforms",
				"non-object 'uniforms' for this profile", `expected "uniforms": {"u_gain": 0.5, ...}`)}
		}
		uniforms = um
		prefix = base + "/uniforms"
	} else if _, v2 := prof["midi"]; v2 {
		uniforms = nil
	} else if _, v2 := prof["cc_overrides"]; v2 {
		uniforms = nil
	}
	var out []Diagnostic
	for _, u := range sortedKeys(uniforms) {
		if !names[u] {
			out = append(out, warn("profile.unknown_uniform", prefix+"/"+escapePtr(u),
				fmt.Sprintf("uniform '%s' not declared in params.json:/params", u),
				"add it under /params, or remove it from this profile"))
		}
	}
	return out
}

// ValidateRecording checks that the controller-style recording.json selects
// a profile that recording.profiles.json defines.
func ValidateRecording(rec, profiles map[string]any) []Diagnostic {
	ps, ok := profiles["profiles"].(map[string]any)
	if !ok {
		return []Diagnostic{errorf("recording.profiles_missing", "recording.profiles.json:/profiles",
			"missing or non-object 'profiles'",
			`expected {"profiles": {"1080p_prores": {...}}}`)}
	}
	active, _ := rec["active_profile"].(string)
	avail := strings.Join(sortedKeys(ps), ", ")
	if active == "" {
		return []Diagnostic{warn("recording.active_profile_missing", "recording.json:/active_profile",
			"missing or empty active_profile", "set to one of: "+avail)}
	}
	if _, ok := ps[active]; !ok {
		return []Diagnostic{warn("recording.active_profile_unknown", "recording.json:/active_profile",
			fmt.Sprintf("active_profile '%s' not found", active), "available: "+avail)}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func escapePtr(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}
