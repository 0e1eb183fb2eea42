// Package recording writes captured frames to a video file through an
// external ffmpeg process.
package recording

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/shadecore/internal/logging"
)

var (
	ErrDisabled         = errors.New("recording is disabled in recording.json")
	ErrAlreadyRecording = errors.New("recorder already started")
	ErrUnsupportedCombo = errors.New("unsupported container/codec combination")
)

// Args builds the ffmpeg command line that encodes raw RGBA from stdin into out.
func Args(cfg Config, out string) ([]string, error) {
	w, h := cfg.Size()
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-r", strconv.FormatUint(uint64(max(cfg.FPS, 1)), 10),
		"-i", "pipe:0",
	}
	if cfg.VFlip {
		args = append(args, "-vf", "vflip")
	}
	switch {
	case cfg.Codec == H264 && (cfg.Container == MP4 || cfg.Container == MOV):
		args = append(args,
			"-an", "-c:v", "libx264",
			"-preset", cfg.H264Preset,
			"-crf", strconv.FormatUint(uint64(cfg.H264CRF), 10),
			"-pix_fmt", cfg.PixFmtOut,
			out)
	case cfg.Codec == ProRes && cfg.Container == MOV:
		args = append(args,
			"-an", "-c:v", "prores_ks",
			"-profile:v", strconv.FormatUint(uint64(cfg.ProResProfile), 10),
			out)
	default:
		return nil, fmt.Errorf("%w: %s/%s", ErrUnsupportedCombo, cfg.Container, cfg.Codec)
	}
	return args, nil
}

// FileName is shadecore_capture_<unix seconds>.<ext>.
func FileName(c Container, now time.Time) string {
	return fmt.Sprintf("shadecore_capture_%d.%s", now.Unix(), c.Ext())
}

// OutDir resolves out_dir: "~" is expanded and relative paths are taken
// relative to the assets directory.
func OutDir(cfg Config, assetsDir string) (string, error) {
	dir, err := homedir.Expand(cfg.OutDir)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(assetsDir, dir)
	}
	return dir, nil
}

// Recorder owns one ffmpeg child per recording. Frames are queued without
// blocking; when the writer falls behind frames are dropped.
type Recorder struct {
	mu        sync.Mutex
	cfg       Config
	recording atomic.Bool

	frames  chan []byte
	stop    chan struct{}
	stopped atomic.Bool
	done    sync.WaitGroup
	pipes   *sync.WaitGroup
	cmd     *exec.Cmd
	stdin   io.Closer
	path    string

	dropped atomic.Uint64
	written atomic.Uint64

	// Command builds the child process. Tests replace it.
	Command func(name string, args ...string) *exec.Cmd
	// StopTimeout bounds each wait in Stop before ffmpeg is killed.
	StopTimeout time.Duration
	now         func() time.Time
}

func NewRecorder(cfg Config) *Recorder {
	return &Recorder{cfg: cfg, Command: exec.Command, StopTimeout: 3 * time.Second, now: time.Now}
}

func (r *Recorder) Config() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// SetConfig replaces the configuration. It reports false while recording.
func (r *Recorder) SetConfig(cfg Config) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording.Load() {
		return false
	}
	r.cfg = cfg
	return true
}

func (r *Recorder) Enabled() bool { return r.Config().Enabled }

func (r *Recorder) IsRecording() bool { return r.recording.Load() }

// Path is the output file of the current or last recording.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Start spawns ffmpeg and the writer goroutine. Nothing is left behind on
// failure.
func (r *Recorder) Start(assetsDir string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cfg.Enabled {
		return "", ErrDisabled
	}
	if r.recording.Load() {
		return "", ErrAlreadyRecording
	}

	dir, err := OutDir(r.cfg, assetsDir)
	if err != nil {
		return "", fmt.Errorf("out_dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	out := filepath.Join(dir, FileName(r.cfg.Container, r.now()))
	args, err := Args(r.cfg, out)
	if err != nil {
		return "", err
	}

	ffmpeg := r.cfg.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	cmd := r.Command(ffmpeg, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("ffmpeg stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start %s: %w", ffmpeg, err)
	}
	pipes := &sync.WaitGroup{}
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		logging.PipeLines(log.Logger, stdout, "FFMPEG_RECORD", false)
	}()
	go func() {
		defer pipes.Done()
		logging.PipeLines(log.Logger, stderr, "FFMPEG_RECORD", true)
	}()

	r.frames = make(chan []byte, 3)
	r.stop = make(chan struct{}, 1)
	r.stopped.Store(false)
	r.dropped.Store(0)
	r.written.Store(0)
	r.cmd = cmd
	r.stdin = stdin
	r.pipes = pipes
	r.path = out
	r.done.Add(1)
	go r.writer(stdin, r.frames, r.stop)
	r.recording.Store(true)
	return out, nil
}

func (r *Recorder) writer(stdin io.WriteCloser, frames <-chan []byte, stop <-chan struct{}) {
	defer r.done.Done()
	// Closing stdin lets ffmpeg finalize the file.
	defer stdin.Close()
	for !r.stopped.Load() {
		select {
		case <-stop:
			return
		case f := <-frames:
			if _, err := stdin.Write(f); err != nil {
				log.Warn().Err(err).Str("tag", "RECORDING").Msg("ffmpeg stdin write failed")
				return
			}
			r.written.Add(1)
		}
	}
}

// TrySend queues a frame. false means it was dropped (queue full or idle).
func (r *Recorder) TrySend(frame []byte) bool {
	if !r.recording.Load() {
		return false
	}
	select {
	case r.frames <- frame:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// Stop ends the recording and waits for ffmpeg to exit. A writer stuck on
// stdin or an encoder that does not exit within StopTimeout is killed.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording.Load() {
		return
	}
	select {
	case r.stop <- struct{}{}:
	default:
	}
	r.stopped.Store(true)
	if !waitFor(&r.done, r.StopTimeout) {
		log.Warn().Str("tag", "RECORDING").Msg("ffmpeg stopped reading frames; killing it")
		r.kill()
		r.done.Wait()
	}

	exited := make(chan error, 1)
	cmd, pipes := r.cmd, r.pipes
	go func() {
		// Wait closes the pipes; let the log readers finish first.
		pipes.Wait()
		exited <- cmd.Wait()
	}()
	select {
	case err := <-exited:
		if err != nil {
			log.Warn().Err(err).Str("tag", "RECORDING").Msg("ffmpeg exited with error")
		}
	case <-time.After(r.StopTimeout):
		log.Warn().Str("tag", "RECORDING").Dur("timeout", r.StopTimeout).Msg("ffmpeg did not exit; killing it")
		r.kill()
		select {
		case <-exited:
		case <-time.After(r.StopTimeout):
			log.Error().Str("tag", "RECORDING").Int("pid", cmd.Process.Pid).Msg("ffmpeg still running after kill; abandoning it")
		}
	}
	log.Info().Str("tag", "RECORDING").Str("path", r.path).
		Uint64("frames", r.written.Load()).Uint64("dropped", r.dropped.Load()).Msg("recording finished")
	r.cmd = nil
	r.stdin = nil
	r.recording.Store(false)
}

// kill terminates ffmpeg and closes its stdin so a blocked write returns.
func (r *Recorder) kill() {
	if r.cmd != nil && r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	if r.stdin != nil {
		_ = r.stdin.Close()
	}
}

func waitFor(wg *sync.WaitGroup, d time.Duration) bool {
	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return true
	case <-time.After(d):
		return false
	}
}

// Counts returns frames written and dropped in the current or last recording.
func (r *Recorder) Counts() (written, dropped uint64) {
	return r.written.Load(), r.dropped.Load()
}
