package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode controls how strictly config files are decoded.
type Mode int

const (
	// Lenient ignores unknown fields and falls back to defaults for missing ones.
	Lenient Mode = iota
	// Strict rejects unknown fields and obvious shape problems.
	Strict
)

func ParseMode(s string) Mode {
	if s == "strict" {
		return Strict
	}
	return Lenient
}

// Load decodes the file at path into v. v should already hold defaults:
// keys missing from the file leave those fields untouched. The top level must
// be an object.
func Load(path string, v any, mode Mode) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return &Error{Kind: IO, Path: path, Err: err}
	}
	return Decode(path, b, v, mode)
}

// Decode is Load for bytes already in memory; path is only used in errors.
func Decode(path string, b []byte, v any, mode Mode) error {
	var root yaml.Node
	if err := yaml.Unmarshal(b, &root); err != nil {
		return &Error{Kind: Parse, Path: path, Err: err}
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return &Error{Kind: Invalid, Path: path, Msg: filepath.Base(path) + " must be a JSON object"}
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(mode == Strict)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &Error{Kind: Parse, Path: path, Err: err}
	}
	return nil
}

// LoadRaw reads a config file as an untyped tree, used by validation.
func LoadRaw(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: IO, Path: path, Err: err}
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, &Error{Kind: Parse, Path: path, Err: err}
	}
	if m == nil {
		return nil, &Error{Kind: Invalid, Path: path, Msg: filepath.Base(path) + " must be a JSON object"}
	}
	return m, nil
}

func Save(path string, v any) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Error{Kind: IO, Path: path, Err: err}
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return &Error{Kind: IO, Path: path, Err: err}
	}
	return nil
}

// ModTime returns the file's modification time, zero if it does not exist.
func ModTime(path string) time.Time {
	st, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return st.ModTime()
}
