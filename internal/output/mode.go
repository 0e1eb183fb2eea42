package output

import (
	"fmt"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects where the rendered texture is published. Exactly one is active.
type Mode string

const (
	Texture Mode = "texture"
	Syphon  Mode = "syphon"
	Spout   Mode = "spout"
	Stream  Mode = "stream"
	NDI     Mode = "ndi"
)

var modes = []Mode{Texture, Syphon, Spout, Stream, NDI}

// Modes lists every output mode in hotkey order.
func Modes() []Mode { return append([]Mode(nil), modes...) }

func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range modes {
		if v == m {
			return m, true
		}
	}
	return "", false
}

// DefaultMode is the mode used when output.json is absent or unreadable:
// the platform's native shared-texture sink, else texture only.
func DefaultMode() Mode { return defaultModeFor(runtime.GOOS) }

func defaultModeFor(goos string) Mode {
	switch goos {
	case "windows":
		return Spout
	case "darwin":
		return Syphon
	}
	return Texture
}

func (m Mode) String() string { return string(m) }

func (m *Mode) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, ok := ParseMode(s)
	if !ok {
		return fmt.Errorf("line %d: unknown output_mode %q", n.Line, s)
	}
	*m = v
	return nil
}

// ScaleMode is how the preview window presents the render target.
type ScaleMode string

const (
	Fit     ScaleMode = "fit"
	Fill    ScaleMode = "fill"
	Stretch ScaleMode = "stretch"
	Pixel   ScaleMode = "pixel"
)

func ParseScaleMode(s string) (ScaleMode, bool) {
	switch m := ScaleMode(strings.ToLower(strings.TrimSpace(s))); m {
	case Fit, Fill, Stretch, Pixel:
		return m, true
	}
	return "", false
}

func (m *ScaleMode) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, ok := ParseScaleMode(s)
	if !ok {
		return fmt.Errorf("line %d: unknown scale_mode %q", n.Line, s)
	}
	*m = v
	return nil
}
