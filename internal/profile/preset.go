package profile

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MidiConfig is the device/channel selection of params.json "midi". Either
// field may be absent; a profile override only replaces the fields it sets.
type MidiConfig struct {
	PreferredDeviceContains *string `yaml:"preferred_device_contains,omitempty"`
	Channel                 *uint8  `yaml:"channel,omitempty"`
}

func (m MidiConfig) Device() string {
	if m.PreferredDeviceContains == nil {
		return ""
	}
	return *m.PreferredDeviceContains
}

// Equal reports whether both configs select the same device and channel.
func (m MidiConfig) Equal(o MidiConfig) bool {
	if (m.PreferredDeviceContains == nil) != (o.PreferredDeviceContains == nil) {
		return false
	}
	if m.PreferredDeviceContains != nil && *m.PreferredDeviceContains != *o.PreferredDeviceContains {
		return false
	}
	if (m.Channel == nil) != (o.Channel == nil) {
		return false
	}
	return m.Channel == nil || *m.Channel == *o.Channel
}

// MergeMidi overlays override on base; fields present in override win.
func MergeMidi(base MidiConfig, override *MidiConfig) MidiConfig {
	out := base
	if override == nil {
		return out
	}
	if override.PreferredDeviceContains != nil {
		out.PreferredDeviceContains = override.PreferredDeviceContains
	}
	if override.Channel != nil {
		out.Channel = override.Channel
	}
	return out
}

// Preset is a named profile. Two file shapes decode into it:
//
//	{"u_gain": 1.0, "u_zoom": 2.0}                       (flat, uniforms only)
//	{"uniforms": {...}, "midi": {...}, "cc_overrides": {...}}
type Preset struct {
	Uniforms    map[string]float32
	Midi        *MidiConfig
	CCOverrides map[string]uint8
	// Flat is true when the preset was written in the flat form.
	Flat bool
}

type presetV2 struct {
	Uniforms    map[string]float32 `yaml:"uniforms"`
	Midi        *MidiConfig        `yaml:"midi"`
	CCOverrides map[string]uint8   `yaml:"cc_overrides"`
}

func (p *Preset) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: profile must be an object", n.Line)
	}
	var flat map[string]float32
	if err := n.Decode(&flat); err == nil {
		*p = Preset{Uniforms: flat, CCOverrides: map[string]uint8{}, Flat: true}
		if p.Uniforms == nil {
			p.Uniforms = map[string]float32{}
		}
		return nil
	}
	var v2 presetV2
	if err := n.Decode(&v2); err != nil {
		return fmt.Errorf("line %d: profile is neither {name: number} nor {uniforms, midi, cc_overrides}: %w", n.Line, err)
	}
	*p = Preset{Uniforms: v2.Uniforms, Midi: v2.Midi, CCOverrides: v2.CCOverrides}
	if p.Uniforms == nil {
		p.Uniforms = map[string]float32{}
	}
	if p.CCOverrides == nil {
		p.CCOverrides = map[string]uint8{}
	}
	return nil
}
