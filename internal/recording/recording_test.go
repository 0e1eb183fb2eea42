package recording

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/shadecore/internal/config"
)

// TestHelperProcess stands in for ffmpeg: it drains stdin and writes the
// byte count to the output path (the last argument).
func TestHelperProcess(t *testing.T) {
	if os.Getenv("SHADECORE_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 3 {
		os.Exit(2)
	}
	if os.Getenv("SHADECORE_HELPER_HANG") == "1" {
		time.Sleep(30 * time.Second)
		os.Exit(0)
	}
	n, _ := io.Copy(io.Discard, os.Stdin)
	_ = os.WriteFile(args[len(args)-1], []byte(strconv.FormatInt(n, 10)), 0o644)
	fmt.Fprintf(os.Stderr, "encoded %d bytes\n", n)
	os.Exit(0)
}

func fakeFFmpeg(name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.Command(os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "SHADECORE_HELPER_PROCESS=1")
	return cmd
}

// hungFFmpeg never reads stdin and does not exit on its own.
func hungFFmpeg(name string, args ...string) *exec.Cmd {
	cmd := fakeFFmpeg(name, args...)
	cmd.Env = append(cmd.Env, "SHADECORE_HELPER_HANG=1")
	return cmd
}

func TestArgs(t *testing.T) {
	cfg := DefaultConfig()
	args, err := Args(cfg, "/tmp/out.mp4")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-y", "-f", "rawvideo", "-pix_fmt", "rgba", "-video_size", "1920x1080", "-r", "60", "-i", "pipe:0",
		"-vf", "vflip",
		"-an", "-c:v", "libx264", "-preset", "veryfast", "-crf", "18", "-pix_fmt", "yuv420p", "/tmp/out.mp4",
	}, args)

	cfg.Container, cfg.Codec, cfg.VFlip = MOV, ProRes, false
	args, err = Args(cfg, "out.mov")
	require.NoError(t, err)
	assert.Equal(t, []string{"-an", "-c:v", "prores_ks", "-profile:v", "3", "out.mov"}, args[len(args)-6:])
	assert.NotContains(t, args, "vflip")

	cfg.Codec = H264
	_, err = Args(cfg, "out.mov")
	assert.NoError(t, err, "mov/h264 is allowed")

	cfg.Container, cfg.Codec = MP4, ProRes
	_, err = Args(cfg, "out.mp4")
	assert.ErrorIs(t, err, ErrUnsupportedCombo)
}

func TestFileNameAndOutDir(t *testing.T) {
	assert.Equal(t, "shadecore_capture_1700000000.mov", FileName(MOV, time.Unix(1700000000, 0)))

	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	cfg := DefaultConfig()
	dir, err := OutDir(cfg, "/assets")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/assets", "captures"), dir)

	cfg.OutDir = "~/Movies"
	dir, err = OutDir(cfg, "/assets")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Movies"), dir)
}

func TestStartRequiresEnabled(t *testing.T) {
	r := NewRecorder(DefaultConfig())
	_, err := r.Start(t.TempDir())
	assert.ErrorIs(t, err, ErrDisabled)
	assert.False(t, r.IsRecording())
}

func TestStartFailureLeavesNoState(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.FFmpegPath = filepath.Join(t.TempDir(), "no-such-ffmpeg")
	r := NewRecorder(cfg)
	_, err := r.Start(t.TempDir())
	require.Error(t, err)
	assert.False(t, r.IsRecording())
	assert.False(t, r.TrySend([]byte{1}))

	cfg.Container, cfg.Codec = MP4, ProRes
	require.True(t, r.SetConfig(cfg))
	_, err = r.Start(t.TempDir())
	assert.ErrorIs(t, err, ErrUnsupportedCombo)
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func TestRecordLifecycle(t *testing.T) {
	logs := &lockedBuffer{}
	prev := log.Logger
	log.Logger = zerolog.New(logs)
	t.Cleanup(func() { log.Logger = prev })

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Width, cfg.Height = 1, 1
	r := NewRecorder(cfg)
	r.Command = fakeFFmpeg
	r.now = func() time.Time { return time.Unix(42, 0) }
	assets := t.TempDir()

	out, err := r.Start(assets)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(assets, "captures", "shadecore_capture_42.mp4"), out)
	assert.True(t, r.IsRecording())

	_, err = r.Start(assets)
	assert.ErrorIs(t, err, ErrAlreadyRecording)
	assert.False(t, r.SetConfig(DefaultConfig()), "config is fixed while recording")

	require.True(t, r.TrySend([]byte{1, 2, 3, 4}))
	require.Eventually(t, func() bool { w, _ := r.Counts(); return w == 1 }, 5*time.Second, 5*time.Millisecond)
	require.True(t, r.TrySend([]byte{5, 6, 7, 8}))
	require.Eventually(t, func() bool { w, _ := r.Counts(); return w == 2 }, 5*time.Second, 5*time.Millisecond)

	r.Stop()
	assert.False(t, r.IsRecording())
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "8", string(b))
	assert.Contains(t, logs.String(), "encoded 8 bytes", "ffmpeg's last stderr line is logged before Stop returns")

	r.Stop()
	assert.True(t, r.SetConfig(DefaultConfig()))
}

func TestStopKillsHungEncoder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	r := NewRecorder(cfg)
	r.Command = hungFFmpeg
	r.StopTimeout = 200 * time.Millisecond

	_, err := r.Start(t.TempDir())
	require.NoError(t, err)
	// Larger than a pipe buffer, so the writer blocks on stdin.
	require.True(t, r.TrySend(make([]byte, 1<<20)))

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatalf("Stop blocked on an encoder that never exits")
	}
	assert.False(t, r.IsRecording())
	w, _ := r.Counts()
	assert.Equal(t, uint64(0), w)
}

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadLegacy(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "recording.json")
	write(t, p, `{"enabled": true, "width": 1280, "height": 720, "container": "mov", "start_keys": ["KeyX"]}`)

	cfg, err := Load(p, config.Lenient)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, uint32(1280), cfg.Width)
	assert.Equal(t, MOV, cfg.Container)
	assert.Equal(t, []string{"KeyX"}, cfg.StartKeys)
	assert.Equal(t, []string{"KeyS"}, cfg.StopKeys)
	assert.Equal(t, uint32(18), cfg.H264CRF)
	assert.Empty(t, cfg.Profile)
}

func TestLoadControllerMergesProfile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "recording.json")
	write(t, p, `{"enabled": true, "active_profile": "prores_4k", "hotkeys": {"toggle": ["Numpad0"]}}`)
	write(t, filepath.Join(dir, "recording.profiles.json"), `{"profiles": {
  "prores_4k": {"container": "mov", "codec": "prores", "width": 3840, "height": 2160, "vflip": false},
  "h264_1080p": {"h264_crf": 20}
}}`)

	cfg, err := Load(p, config.Lenient)
	require.NoError(t, err)
	assert.Equal(t, "prores_4k", cfg.Profile)
	assert.Equal(t, []string{"Numpad0"}, cfg.ToggleKeys)
	assert.Empty(t, cfg.StartKeys, "controller hotkeys replace the legacy defaults")
	assert.Equal(t, ProRes, cfg.Codec)
	assert.Equal(t, uint32(3840), cfg.Width)
	assert.False(t, cfg.VFlip)
	assert.Equal(t, uint32(60), cfg.FPS)
}

func TestLoadControllerUnknownProfile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "recording.json")
	write(t, p, `{"enabled": true, "active_profile": "nope"}`)
	write(t, filepath.Join(dir, "recording.profiles.json"), `{"profiles": {"a": {"fps": 30}}}`)

	cfg, err := Load(p, config.Lenient)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Empty(t, cfg.Profile)
	assert.Equal(t, uint32(60), cfg.FPS)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.json"), config.Lenient)
	assert.Error(t, err)
	assert.True(t, cfg.Equal(DefaultConfig()))

	p := filepath.Join(dir, "recording.json")
	write(t, p, `{"enabled": true, "bogus": 1}`)
	_, err = Load(p, config.Strict)
	assert.Error(t, err)
	cfg, err = Load(p, config.Lenient)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
}
