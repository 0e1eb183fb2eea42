package config

import "fmt"

type Kind int

const (
	// AssetsNotFound: no assets/ directory could be located.
	AssetsNotFound Kind = iota
	// IO: the file could not be read or written.
	IO
	// Parse: the file is not valid JSON/YAML or does not fit the typed shape.
	Parse
	// Invalid: syntactically fine but semantically rejected.
	Invalid
)

func (k Kind) String() string {
	switch k {
	case AssetsNotFound:
		return "assets not found"
	case IO:
		return "io"
	case Parse:
		return "parse"
	case Invalid:
		return "invalid config"
	default:
		return "unknown"
	}
}

// Error is returned by every loader in this package.
type Error struct {
	Kind Kind
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == AssetsNotFound:
		return fmt.Sprintf("could not locate assets/ starting from %s", e.Path)
	case e.Err != nil:
		return fmt.Sprintf("%s error for %s: %v", e.Kind, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Path, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }
