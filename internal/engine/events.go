package engine

import (
	"image"
	"time"

	"github.com/coreman2200/shadecore/internal/diagnostics"
	"github.com/coreman2200/shadecore/internal/output"
	"github.com/coreman2200/shadecore/internal/params"
)

type EventKind string

const (
	ConfigLoaded EventKind = "config_loaded"
	ConfigError  EventKind = "config_error"
	Stats        EventKind = "stats"
)

// Event is pushed to UI clients. File is the config kind ("params",
// "output", "recording", "render").
type Event struct {
	Kind        EventKind                `json:"kind"`
	File        string                   `json:"file,omitempty"`
	Path        string                   `json:"path,omitempty"`
	Err         string                   `json:"error,omitempty"`
	FPS         float64                  `json:"fps,omitempty"`
	Diagnostics []diagnostics.Diagnostic `json:"diagnostics,omitempty"`
}

// Status is a point-in-time view of the engine for health reporting.
type Status struct {
	Frame      uint64                       `json:"frame"`
	Uptime     time.Duration                `json:"uptime"`
	FPS        float64                      `json:"fps"`
	Output     output.Mode                  `json:"output_mode"`
	Preview    output.ScaleMode             `json:"preview_scale"`
	Viewport   image.Rectangle              `json:"preview_viewport"`
	Recording  bool                         `json:"recording"`
	RecordPath string                       `json:"record_path,omitempty"`
	Session    string                       `json:"record_session,omitempty"`
	Shader     string                       `json:"shader"`
	Profile    string                       `json:"active_profile"`
	MidiPort   string                       `json:"midi_port,omitempty"`
	Params     map[string]params.ParamState `json:"params"`
}

func (e *Engine) emit(ev Event) {
	if e.opts.OnEvent != nil {
		e.opts.OnEvent(ev)
	}
}

func (e *Engine) loaded(file, path string, ds []diagnostics.Diagnostic) {
	e.emit(Event{Kind: ConfigLoaded, File: file, Path: path, Diagnostics: ds})
}

func (e *Engine) failed(file, path string, err error) {
	e.emit(Event{Kind: ConfigError, File: file, Path: path, Err: err.Error()})
}
