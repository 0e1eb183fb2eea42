package params

import (
	"github.com/coreman2200/shadecore/internal/config"
	"github.com/coreman2200/shadecore/internal/profile"
	"gopkg.in/yaml.v3"
)

// MidiBinding is the "midi" block of a param definition.
type MidiBinding struct {
	CC      uint8  `yaml:"cc"`
	Channel *uint8 `yaml:"channel,omitempty"`
}

// Def is one entry of params.json "params".
type Def struct {
	Name      string       `yaml:"name"`
	Type      string       `yaml:"type,omitempty"`
	Default   float32      `yaml:"default"`
	Min       float32      `yaml:"min"`
	Max       float32      `yaml:"max"`
	Smoothing float32      `yaml:"smoothing"`
	Midi      *MidiBinding `yaml:"midi,omitempty"`
}

// UnmarshalYAML applies the max=1 default.
func (d *Def) UnmarshalYAML(n *yaml.Node) error {
	type plain Def
	p := plain{Max: 1}
	if err := n.Decode(&p); err != nil {
		return err
	}
	*d = Def(p)
	return nil
}

type OSCMapping struct {
	Addr   string   `yaml:"addr"`
	Param  string   `yaml:"param"`
	Min    *float32 `yaml:"min,omitempty"`
	Max    *float32 `yaml:"max,omitempty"`
	Smooth *float32 `yaml:"smooth,omitempty"`
	// Mode is "raw", or "normalized"/"norm"/"param"; empty uses OSCConfig.Normalized.
	Mode string `yaml:"mode,omitempty"`
}

type OSCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Bind       string       `yaml:"bind"`
	Prefix     string       `yaml:"prefix"`
	Normalized bool         `yaml:"normalized"`
	Mappings   []OSCMapping `yaml:"mappings"`
}

func DefaultOSC() OSCConfig {
	return OSCConfig{
		Bind:       "0.0.0.0:9000",
		Prefix:     "/shadecore",
		Normalized: true,
	}
}

// ProfileHotkeys are key names bound to profile switching.
type ProfileHotkeys struct {
	Next []string            `yaml:"next"`
	Prev []string            `yaml:"prev"`
	Set  map[string][]string `yaml:"set"`
}

// File is params.json.
type File struct {
	Version              int                                  `yaml:"version"`
	Midi                 profile.MidiConfig                   `yaml:"midi"`
	OSC                  OSCConfig                            `yaml:"osc"`
	Params               []Def                                `yaml:"params"`
	Profiles             map[string]profile.Preset            `yaml:"profiles"`
	ShaderProfiles       map[string]map[string]profile.Preset `yaml:"shader_profiles"`
	ActiveShaderProfiles map[string]string                    `yaml:"active_shader_profiles"`
	ActiveProfile        string                               `yaml:"active_profile"`
	ProfileHotkeys       ProfileHotkeys                       `yaml:"profile_hotkeys"`
}

func DefaultFile() File {
	return File{
		Version:              1,
		OSC:                  DefaultOSC(),
		Profiles:             map[string]profile.Preset{},
		ShaderProfiles:       map[string]map[string]profile.Preset{},
		ActiveShaderProfiles: map[string]string{},
		ProfileHotkeys: ProfileHotkeys{
			Next: []string{"BracketRight"},
			Prev: []string{"BracketLeft"},
			Set:  map[string][]string{},
		},
	}
}

// LoadFile reads params.json over DefaultFile.
func LoadFile(path string, mode config.Mode) (*File, error) {
	f := DefaultFile()
	if err := config.Load(path, &f, mode); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseFile is LoadFile for in-memory content.
func ParseFile(b []byte, mode config.Mode) (*File, error) {
	f := DefaultFile()
	if err := config.Decode("params.json", b, &f, mode); err != nil {
		return nil, err
	}
	return &f, nil
}

// ProfileSet exposes the file's profiles to the resolver.
func (f *File) ProfileSet(assetsDir string) *profile.Set {
	active := make(map[string]string, len(f.ActiveShaderProfiles))
	for k, v := range f.ActiveShaderProfiles {
		active[k] = v
	}
	return &profile.Set{
		Global:       f.Profiles,
		Shader:       f.ShaderProfiles,
		ActiveShader: active,
		Active:       f.ActiveProfile,
		AssetsDir:    assetsDir,
	}
}

// Def returns the definition named name.
func (f *File) Def(name string) (Def, bool) {
	for _, d := range f.Params {
		if d.Name == name {
			return d, true
		}
	}
	return Def{}, false
}
