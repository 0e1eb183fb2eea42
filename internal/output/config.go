package output

import (
	"fmt"
	"strings"

	"github.com/coreman2200/shadecore/internal/config"
)

type SyphonConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ServerName string `yaml:"server_name,omitempty"`
}

type SpoutConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SenderName string `yaml:"sender_name,omitempty"`
	Invert     bool   `yaml:"invert"`
}

type StreamTarget string

const (
	RTSP StreamTarget = "rtsp"
	RTMP StreamTarget = "rtmp"
)

const DefaultRTSPURL = "rtsp://127.0.0.1:8554/shadecore"

type StreamConfig struct {
	Enabled     bool         `yaml:"enabled"`
	Target      StreamTarget `yaml:"target"`
	RTSPURL     string       `yaml:"rtsp_url"`
	RTMPURL     string       `yaml:"rtmp_url,omitempty"`
	FPS         uint32       `yaml:"fps"`
	BitrateKbps uint32       `yaml:"bitrate_kbps"`
	GOP         uint32       `yaml:"gop"`
	VFlip       bool         `yaml:"vflip"`
	FFmpegPath  string       `yaml:"ffmpeg_path,omitempty"`
}

// FrameConfig configures the shared-frame (protocol C) sink, the "ndi" block
// of output.json.
type FrameConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Name       string `yaml:"name,omitempty"`
	Groups     string `yaml:"groups,omitempty"`
	ClockVideo bool   `yaml:"clock_video"`
	FPSN       int32  `yaml:"fps_n"`
	FPSD       int32  `yaml:"fps_d"`
	VFlip      bool   `yaml:"vflip"`
}

// Hotkeys maps each output mode to the key names that select it.
type Hotkeys struct {
	Texture []string `yaml:"texture"`
	Syphon  []string `yaml:"syphon"`
	Spout   []string `yaml:"spout"`
	Stream  []string `yaml:"stream"`
	NDI     []string `yaml:"ndi"`
}

type PreviewHotkeys struct {
	Fit     []string `yaml:"fit"`
	Fill    []string `yaml:"fill"`
	Stretch []string `yaml:"stretch"`
	Pixel   []string `yaml:"pixel"`
}

type Preview struct {
	Enabled   bool           `yaml:"enabled"`
	ScaleMode ScaleMode      `yaml:"scale_mode"`
	Hotkeys   PreviewHotkeys `yaml:"hotkeys"`
}

// Config is output.json.
type Config struct {
	OutputMode Mode         `yaml:"output_mode"`
	Syphon     SyphonConfig `yaml:"syphon"`
	Spout      SpoutConfig  `yaml:"spout"`
	Stream     StreamConfig `yaml:"stream"`
	NDI        FrameConfig  `yaml:"ndi"`
	Hotkeys    Hotkeys      `yaml:"hotkeys"`
	Preview    Preview      `yaml:"preview"`
}

func DefaultStream() StreamConfig {
	return StreamConfig{
		Target:      RTSP,
		RTSPURL:     DefaultRTSPURL,
		FPS:         60,
		BitrateKbps: 8000,
		GOP:         120,
		VFlip:       true,
	}
}

func DefaultFrame() FrameConfig {
	return FrameConfig{ClockVideo: true, FPSN: 60, FPSD: 1, VFlip: true}
}

func DefaultHotkeys() Hotkeys {
	return Hotkeys{
		Texture: []string{"Digit1", "Numpad1"},
		Syphon:  []string{"Digit2", "Numpad2"},
		Spout:   []string{"Digit3", "Numpad3"},
		Stream:  []string{"Digit4", "Numpad4"},
		NDI:     []string{"Digit6", "Numpad6"},
	}
}

func DefaultPreview() Preview {
	return Preview{
		Enabled:   true,
		ScaleMode: Fit,
		Hotkeys: PreviewHotkeys{
			Fit:     []string{"Digit7", "Numpad7"},
			Fill:    []string{"Digit8", "Numpad8"},
			Stretch: []string{"Digit9", "Numpad9"},
			Pixel:   []string{"Digit0", "Numpad0"},
		},
	}
}

// DefaultConfig returns the configuration used when output.json is missing.
func DefaultConfig() Config {
	return Config{
		OutputMode: DefaultMode(),
		Syphon:     SyphonConfig{Enabled: true},
		Spout:      SpoutConfig{Invert: true},
		Stream:     DefaultStream(),
		NDI:        DefaultFrame(),
		Hotkeys:    DefaultHotkeys(),
		Preview:    DefaultPreview(),
	}
}

// Load reads output.json over the defaults. On error the defaults are returned
// together with the error so callers can keep running.
func Load(path string, mode config.Mode) (Config, error) {
	cfg := DefaultConfig()
	if err := config.Load(path, &cfg, mode); err != nil {
		return DefaultConfig(), err
	}
	if err := cfg.Validate(); err != nil {
		if mode == config.Strict {
			return DefaultConfig(), &config.Error{Kind: config.Invalid, Path: path, Err: err}
		}
		cfg.normalize()
	}
	return cfg, nil
}

// Validate reports values that the sinks cannot use.
func (c Config) Validate() error {
	var probs []string
	switch c.Stream.Target {
	case RTSP, RTMP:
	default:
		probs = append(probs, fmt.Sprintf("stream.target %q (want rtsp|rtmp)", c.Stream.Target))
	}
	if c.Stream.FPS == 0 {
		probs = append(probs, "stream.fps must be > 0")
	}
	if c.NDI.FPSN <= 0 || c.NDI.FPSD <= 0 {
		probs = append(probs, "ndi.fps_n and ndi.fps_d must be > 0")
	}
	if len(probs) > 0 {
		return fmt.Errorf("output.json: %s", strings.Join(probs, "; "))
	}
	return nil
}

func (c *Config) normalize() {
	d := DefaultStream()
	if c.Stream.Target != RTSP && c.Stream.Target != RTMP {
		c.Stream.Target = d.Target
	}
	if c.Stream.FPS == 0 {
		c.Stream.FPS = d.FPS
	}
	if c.NDI.FPSN <= 0 || c.NDI.FPSD <= 0 {
		c.NDI.FPSN, c.NDI.FPSD = 60, 1
	}
}

// Lookup returns the mode bound to key.
func (h Hotkeys) Lookup(key string) (Mode, bool) {
	for _, m := range modes {
		for _, k := range h.keys(m) {
			if k == key {
				return m, true
			}
		}
	}
	return "", false
}

func (h Hotkeys) keys(m Mode) []string {
	switch m {
	case Texture:
		return h.Texture
	case Syphon:
		return h.Syphon
	case Spout:
		return h.Spout
	case Stream:
		return h.Stream
	case NDI:
		return h.NDI
	}
	return nil
}

// Keys returns the key names bound to each mode.
func (h Hotkeys) Keys() map[Mode][]string {
	out := make(map[Mode][]string, len(modes))
	for _, m := range modes {
		out[m] = h.keys(m)
	}
	return out
}

// Lookup returns the scale mode bound to key.
func (h PreviewHotkeys) Lookup(key string) (ScaleMode, bool) {
	for _, e := range []struct {
		m    ScaleMode
		keys []string
	}{{Fit, h.Fit}, {Fill, h.Fill}, {Stretch, h.Stretch}, {Pixel, h.Pixel}} {
		for _, k := range e.keys {
			if k == key {
				return e.m, true
			}
		}
	}
	return "", false
}

func (c FrameConfig) SourceName() string {
	if c.Name == "" {
		return "shadecore"
	}
	return c.Name
}

func (c SyphonConfig) Name() string {
	if c.ServerName == "" {
		return "shadecore"
	}
	return c.ServerName
}

func (c SpoutConfig) Name() string {
	if c.SenderName == "" {
		return "shadecore"
	}
	return c.SenderName
}

// Allows reports whether m can be selected with this configuration. Texture
// is always allowed; the other modes need their sink enabled.
func (c Config) Allows(m Mode) bool {
	switch m {
	case Texture:
		return true
	case Syphon:
		return c.Syphon.Enabled
	case Spout:
		return c.Spout.Enabled
	case Stream:
		return c.Stream.Enabled
	case NDI:
		return c.NDI.Enabled
	}
	return false
}
