package output

import (
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/shadecore/internal/gpu"
	"github.com/coreman2200/shadecore/internal/logging"
)

// Sink is a network sink fed from the render thread.
type Sink interface {
	// Send is called once per frame while the sink's mode is current.
	Send(dev gpu.Device, tex gpu.Texture)
	Stop()
}

// StreamArgs builds the ffmpeg command line for pushing raw RGBA frames of
// w x h. ok is false when the target has no usable URL.
func StreamArgs(cfg StreamConfig, w, h int) (args []string, ok bool) {
	args = []string{
		"-hide_banner", "-loglevel", "warning",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", w, h),
		"-r", strconv.FormatUint(uint64(cfg.FPS), 10),
		"-i", "-",
	}
	if cfg.VFlip {
		args = append(args, "-vf", "vflip")
	}
	args = append(args,
		"-an", "-c:v", "libx264",
		"-preset", "veryfast", "-tune", "zerolatency",
		"-pix_fmt", "yuv420p",
		"-g", strconv.FormatUint(uint64(cfg.GOP), 10),
		"-b:v", fmt.Sprintf("%dk", cfg.BitrateKbps),
	)
	switch cfg.Target {
	case RTMP:
		if cfg.RTMPURL == "" {
			return nil, false
		}
		args = append(args, "-f", "flv", cfg.RTMPURL)
	default:
		url := cfg.RTSPURL
		if url == "" {
			url = DefaultRTSPURL
		}
		args = append(args, "-f", "rtsp", "-rtsp_transport", "tcp", "-muxdelay", "0.1", url)
	}
	return args, true
}

type streamJob struct {
	path   string
	args   []string
	w, h   int
	frames <-chan []byte
	stop   <-chan struct{}
}

// StreamSender pushes frames to an ffmpeg child which encodes H.264 and
// publishes over RTSP or RTMP. Stop does not wait for the child: ffmpeg may
// be blocked connecting to a server that is not there.
type StreamSender struct {
	cfg     StreamConfig
	running bool
	w, h    int
	last    time.Time
	warned  bool
	frames  chan []byte
	stop    chan struct{}

	now   func() time.Time
	spawn func(streamJob)
	// Dropped counts frames discarded because the worker was busy.
	Dropped uint64
}

func NewStreamSender(cfg StreamConfig) *StreamSender {
	s := &StreamSender{cfg: cfg, now: time.Now}
	s.spawn = func(j streamJob) { go runStream(j) }
	return s
}

func (s *StreamSender) Running() bool { return s.running }

func (s *StreamSender) Config() StreamConfig { return s.cfg }

func (s *StreamSender) Send(dev gpu.Device, tex gpu.Texture) {
	if !s.ensureRunning(tex.Width(), tex.Height()) {
		return
	}
	fps := s.cfg.FPS
	if fps == 0 {
		fps = 60
	}
	now := s.now()
	if now.Sub(s.last) < time.Second/time.Duration(fps) {
		return
	}
	s.last = now

	buf := make([]byte, gpu.FrameBytes(s.w, s.h))
	if err := dev.ReadPixels(tex, buf); err != nil {
		log.Debug().Err(err).Str("tag", "OUTPUT").Msg("stream readback failed")
		return
	}
	select {
	case s.frames <- buf:
	default:
		s.Dropped++
	}
}

func (s *StreamSender) ensureRunning(w, h int) bool {
	if !s.cfg.Enabled {
		s.Stop()
		return false
	}
	if s.running && s.w == w && s.h == h {
		return true
	}
	s.Stop()
	s.start(w, h)
	return s.running
}

func (s *StreamSender) start(w, h int) {
	args, ok := StreamArgs(s.cfg, w, h)
	if !ok {
		if !s.warned {
			log.Warn().Str("tag", "OUTPUT").Msg("target=rtmp but rtmp_url is missing in output.json")
			s.warned = true
		}
		return
	}
	if s.cfg.Target != RTMP && !s.warned {
		log.Info().Str("tag", "OUTPUT").Str("url", args[len(args)-1]).
			Msg("RTSP mode is push: an RTSP server must be listening at this url (e.g. MediaMTX)")
		s.warned = true
	}
	path := s.cfg.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	s.frames = make(chan []byte, 2)
	s.stop = make(chan struct{}, 1)
	s.w, s.h = w, h
	s.last = time.Time{}
	s.running = true
	s.spawn(streamJob{path: path, args: args, w: w, h: h, frames: s.frames, stop: s.stop})
}

// Stop asks the worker to exit without waiting for it.
func (s *StreamSender) Stop() {
	if !s.running {
		return
	}
	select {
	case s.stop <- struct{}{}:
	default:
	}
	s.running = false
	s.frames, s.stop = nil, nil
}

func runStream(j streamJob) {
	l := log.With().Str("tag", "OUTPUT").Logger()
	cmd := exec.Command(j.path, j.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		l.Error().Err(err).Msg("ffmpeg stdin")
		return
	}
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		l.Error().Err(err).Msg("failed to start ffmpeg; install it or set stream.ffmpeg_path in output.json")
		return
	}
	var pipes sync.WaitGroup
	pipes.Add(2)
	go func() {
		defer pipes.Done()
		logging.PipeLines(log.Logger, stdout, "FFMPEG_STREAM", false)
	}()
	go func() {
		defer pipes.Done()
		logging.PipeLines(log.Logger, stderr, "FFMPEG_STREAM", true)
	}()
	l.Info().Int("w", j.w).Int("h", j.h).Msg("ffmpeg started, writing frames")

loop:
	for {
		select {
		case <-j.stop:
			break loop
		case f := <-j.frames:
			if _, err := stdin.Write(f); err != nil {
				l.Warn().Err(err).Msg("ffmpeg stdin write failed")
				break loop
			}
		}
	}
	_ = stdin.Close()
	_ = cmd.Process.Kill()
	pipes.Wait()
	_ = cmd.Wait()
	l.Info().Msg("ffmpeg stopped")
}
