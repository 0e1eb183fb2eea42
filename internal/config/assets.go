package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// EnvAssets overrides assets discovery when it names an existing directory.
const EnvAssets = "SHADECORE_ASSETS"

// Assets is a located assets/ directory holding the JSON configs and shaders.
type Assets struct {
	Dir string
}

// Discover finds assets/: $SHADECORE_ASSETS first, then a directory named
// "assets" in start or any of its parents.
func Discover(start string) (Assets, error) {
	if p := os.Getenv(EnvAssets); p != "" {
		if p, err := homedir.Expand(p); err == nil && isDir(p) {
			abs, _ := filepath.Abs(p)
			return Assets{Dir: abs}, nil
		}
	}
	cur, err := filepath.Abs(start)
	if err != nil {
		cur = start
	}
	for {
		cand := filepath.Join(cur, "assets")
		if isDir(cand) {
			return Assets{Dir: cand}, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return Assets{}, &Error{Kind: AssetsNotFound, Path: start}
}

// Join returns a path under the assets directory.
func (a Assets) Join(rel ...string) string {
	return filepath.Join(append([]string{a.Dir}, rel...)...)
}

// Resolve interprets a path written in a config file: "~" is expanded,
// absolute paths are kept, anything else is relative to the assets directory.
func (a Assets) Resolve(s string) string {
	if strings.HasPrefix(s, "~") {
		if p, err := homedir.Expand(s); err == nil {
			s = p
		}
	}
	if filepath.IsAbs(s) {
		return filepath.Clean(s)
	}
	return filepath.Join(a.Dir, s)
}

// PickPlatform returns <stem>.<os>.json when present, else <stem>.json.
func (a Assets) PickPlatform(stem string) string {
	p := a.Join(stem + "." + platformName() + ".json")
	if fileExists(p) {
		return p
	}
	return a.Join(stem + ".json")
}

// Paths are the standard config files of one assets directory.
type Paths struct {
	Render            string
	Params            string
	Output            string
	Recording         string
	RecordingProfiles string
}

func (a Assets) Paths() Paths {
	rec := a.PickPlatform("recording")
	return Paths{
		Render:            a.Join("render.json"),
		Params:            a.PickPlatform("params"),
		Output:            a.PickPlatform("output"),
		Recording:         rec,
		RecordingProfiles: filepath.Join(filepath.Dir(rec), "recording.profiles.json"),
	}
}

func platformName() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	case "darwin":
		return "macos"
	case "linux":
		return "linux"
	default:
		return "other"
	}
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}
