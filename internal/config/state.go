package config

import (
	"errors"
	"os"
)

// State is runtime selection persisted between runs. Config files themselves
// are never rewritten.
type State struct {
	OutputMode     string            `yaml:"output_mode,omitempty"`
	ShaderVariant  string            `yaml:"shader_variant,omitempty"`
	ActiveProfiles map[string]string `yaml:"active_profiles,omitempty"`
}

func (a Assets) StatePath() string {
	return a.Join(".shadecore", "state.yaml")
}

// LoadState returns an empty State when none was saved yet.
func LoadState(path string) (State, error) {
	st := State{ActiveProfiles: map[string]string{}}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err := Load(path, &st, Lenient); err != nil {
		return State{ActiveProfiles: map[string]string{}}, err
	}
	if st.ActiveProfiles == nil {
		st.ActiveProfiles = map[string]string{}
	}
	return st, nil
}

func SaveState(path string, st State) error {
	return Save(path, st)
}
