package recording

import (
	"os"
	"path/filepath"
	"reflect"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/shadecore/internal/config"
	"github.com/coreman2200/shadecore/internal/diagnostics"
)

type Container string

const (
	MP4 Container = "mp4"
	MOV Container = "mov"
)

func (c Container) Ext() string { return string(c) }

type Codec string

const (
	H264   Codec = "h264"
	ProRes Codec = "prores"
)

// Config is the effective recording configuration after any profile merge.
type Config struct {
	Enabled    bool     `yaml:"enabled"`
	ToggleKeys []string `yaml:"toggle_keys"`
	StartKeys  []string `yaml:"start_keys"`
	StopKeys   []string `yaml:"stop_keys"`

	OutDir        string    `yaml:"out_dir"`
	FFmpegPath    string    `yaml:"ffmpeg_path"`
	FPS           uint32    `yaml:"fps"`
	Width         uint32    `yaml:"width"`
	Height        uint32    `yaml:"height"`
	Container     Container `yaml:"container"`
	Codec         Codec     `yaml:"codec"`
	H264CRF       uint32    `yaml:"h264_crf"`
	H264Preset    string    `yaml:"h264_preset"`
	PixFmtOut     string    `yaml:"pix_fmt_out"`
	ProResProfile uint32    `yaml:"prores_profile"`
	VFlip         bool      `yaml:"vflip"`

	// Profile is the recording.profiles.json entry merged in, if any.
	Profile string `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		ToggleKeys:    []string{},
		StartKeys:     []string{"KeyR"},
		StopKeys:      []string{"KeyS"},
		OutDir:        "captures",
		FFmpegPath:    "ffmpeg",
		FPS:           60,
		Width:         1920,
		Height:        1080,
		Container:     MP4,
		Codec:         H264,
		H264CRF:       18,
		H264Preset:    "veryfast",
		PixFmtOut:     "yuv420p",
		ProResProfile: 3,
		VFlip:         true,
	}
}

// Size is the record resolution, never smaller than 1x1.
func (c Config) Size() (w, h int) {
	return int(max(c.Width, 1)), int(max(c.Height, 1))
}

// Equal reports whether two configs are identical.
func (c Config) Equal(o Config) bool {
	return reflect.DeepEqual(c, o)
}

// Profile is a named partial override from recording.profiles.json.
type Profile struct {
	OutDir        *string    `yaml:"out_dir"`
	Container     *Container `yaml:"container"`
	Codec         *Codec     `yaml:"codec"`
	FPS           *uint32    `yaml:"fps"`
	Width         *uint32    `yaml:"width"`
	Height        *uint32    `yaml:"height"`
	FFmpegPath    *string    `yaml:"ffmpeg_path"`
	H264CRF       *uint32    `yaml:"h264_crf"`
	H264Preset    *string    `yaml:"h264_preset"`
	PixFmtOut     *string    `yaml:"pix_fmt_out"`
	ProResProfile *uint32    `yaml:"prores_profile"`
	VFlip         *bool      `yaml:"vflip"`
}

func (p Profile) Apply(dst *Config) {
	set(&dst.OutDir, p.OutDir)
	set(&dst.Container, p.Container)
	set(&dst.Codec, p.Codec)
	set(&dst.FPS, p.FPS)
	set(&dst.Width, p.Width)
	set(&dst.Height, p.Height)
	set(&dst.FFmpegPath, p.FFmpegPath)
	set(&dst.H264CRF, p.H264CRF)
	set(&dst.H264Preset, p.H264Preset)
	set(&dst.PixFmtOut, p.PixFmtOut)
	set(&dst.ProResProfile, p.ProResProfile)
	set(&dst.VFlip, p.VFlip)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

type ProfilesFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

type controllerHotkeys struct {
	Toggle []string `yaml:"toggle"`
	Start  []string `yaml:"start"`
	Stop   []string `yaml:"stop"`
}

type controller struct {
	Enabled       bool              `yaml:"enabled"`
	ActiveProfile string            `yaml:"active_profile"`
	Hotkeys       controllerHotkeys `yaml:"hotkeys"`
}

func (c controller) selected() bool {
	return c.ActiveProfile != "" || len(c.Hotkeys.Toggle) > 0 || len(c.Hotkeys.Start) > 0 || len(c.Hotkeys.Stop) > 0
}

// Load reads recording.json. A controller-shaped file (active_profile or any
// hotkey list) is merged with the profiles file next to it; anything else is
// the legacy single-profile shape. On error the defaults are returned.
func Load(path string, mode config.Mode) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), &config.Error{Kind: config.IO, Path: path, Err: err}
	}

	var ctl controller
	if yaml.Unmarshal(b, &ctl) == nil && ctl.selected() {
		return loadController(path, b, mode)
	}

	cfg := DefaultConfig()
	if err := config.Decode(path, b, &cfg, mode); err != nil {
		return DefaultConfig(), err
	}
	return cfg, nil
}

func loadController(path string, b []byte, mode config.Mode) (Config, error) {
	var ctl controller
	if err := config.Decode(path, b, &ctl, mode); err != nil {
		return DefaultConfig(), err
	}
	cfg := DefaultConfig()
	cfg.Enabled = ctl.Enabled
	cfg.ToggleKeys = ctl.Hotkeys.Toggle
	cfg.StartKeys = ctl.Hotkeys.Start
	cfg.StopKeys = ctl.Hotkeys.Stop

	ppath := filepath.Join(filepath.Dir(path), "recording.profiles.json")
	pb, err := os.ReadFile(ppath)
	if err != nil {
		if ctl.ActiveProfile != "" {
			log.Warn().Str("tag", "RECORDING").Str("path", ppath).Msg("active_profile set but profiles file missing or unreadable")
		}
		return cfg, nil
	}

	var rec, profs map[string]any
	if yaml.Unmarshal(b, &rec) == nil && yaml.Unmarshal(pb, &profs) == nil {
		ds := diagnostics.ValidateRecording(rec, profs)
		diagnostics.Summary("CONFIG", "recording profiles", ds)
		diagnostics.Emit("CONFIG", ds)
	}
	if ctl.ActiveProfile == "" {
		return cfg, nil
	}

	var pf ProfilesFile
	if err := config.Decode(ppath, pb, &pf, mode); err != nil {
		log.Warn().Err(err).Str("tag", "RECORDING").Msg("failed to parse recording profiles")
		return cfg, nil
	}
	p, ok := pf.Profiles[ctl.ActiveProfile]
	if !ok {
		log.Warn().Str("tag", "RECORDING").Str("profile", ctl.ActiveProfile).Str("path", ppath).Msg("active_profile not found")
		return cfg, nil
	}
	p.Apply(&cfg)
	cfg.Profile = ctl.ActiveProfile
	log.Info().Str("tag", "RECORDING").Str("profile", ctl.ActiveProfile).
		Uint32("w", cfg.Width).Uint32("h", cfg.Height).Uint32("fps", cfg.FPS).
		Str("container", string(cfg.Container)).Str("codec", string(cfg.Codec)).
		Msg("active profile")
	return cfg, nil
}
