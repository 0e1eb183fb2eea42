// Package control defines the logical actions the engine accepts from
// hotkeys and the websocket control surface.
package control

import (
	"fmt"

	"github.com/coreman2200/shadecore/internal/output"
)

type Kind int

const (
	None Kind = iota
	SetOutput
	SetPreviewScale
	RecordToggle
	RecordStart
	RecordStop
	ProfileNext
	ProfilePrev
	ProfileSet
	ShaderNext
	ShaderPrev
	SetParam
	SetParamNorm
	Quit
)

var kindNames = map[Kind]string{
	None:            "none",
	SetOutput:       "output",
	SetPreviewScale: "preview_scale",
	RecordToggle:    "record_toggle",
	RecordStart:     "record_start",
	RecordStop:      "record_stop",
	ProfileNext:     "profile_next",
	ProfilePrev:     "profile_prev",
	ProfileSet:      "profile_set",
	ShaderNext:      "shader_next",
	ShaderPrev:      "shader_prev",
	SetParam:        "param",
	SetParamNorm:    "param_norm",
	Quit:            "quit",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is one request to the engine. Only the fields relevant to Kind are set.
type Action struct {
	Kind  Kind
	Mode  output.Mode
	Scale output.ScaleMode
	// Name is a profile name (ProfileSet) or a parameter name (SetParam*).
	Name  string
	Value float32
	// Source says where the action came from ("hotkey Digit4", "ws").
	Source string
}

func (a Action) String() string {
	switch a.Kind {
	case SetOutput:
		return "output=" + a.Mode.String()
	case SetPreviewScale:
		return "preview_scale=" + string(a.Scale)
	case ProfileSet:
		return "profile=" + a.Name
	case SetParam, SetParamNorm:
		return fmt.Sprintf("%s %s=%g", a.Kind, a.Name, a.Value)
	}
	return a.Kind.String()
}
