package output

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/shadecore/internal/gpu"
)

// Frame is one BGRA picture handed to a FramePublisher.
type Frame struct {
	Source string
	Groups string
	Seq    uint64
	Width  int
	Height int
	FPSN   int32
	FPSD   int32
	BGRA   []byte
}

// FramePublisher receives frames from the frame sink worker.
type FramePublisher interface {
	PublishFrame(f Frame) error
}

// FrameSender converts readbacks to BGRA and hands them to a publisher on
// its own goroutine. Stop waits for the worker.
type FrameSender struct {
	cfg     FrameConfig
	pub     FramePublisher
	running bool
	w, h    int
	last    time.Time
	warned  bool
	seq     uint64

	frames chan Frame
	stop   chan struct{}
	wg     sync.WaitGroup

	now func() time.Time
	// Dropped counts frames discarded because the publisher was busy.
	Dropped uint64
}

func NewFrameSender(cfg FrameConfig, pub FramePublisher) *FrameSender {
	return &FrameSender{cfg: cfg, pub: pub, now: time.Now}
}

func (s *FrameSender) Running() bool { return s.running }

func (s *FrameSender) Config() FrameConfig { return s.cfg }

func (s *FrameSender) interval() time.Duration {
	n, d := s.cfg.FPSN, s.cfg.FPSD
	if n <= 0 || d <= 0 {
		n, d = 60, 1
	}
	return time.Duration(int64(time.Second) * int64(d) / int64(n))
}

func (s *FrameSender) Send(dev gpu.Device, tex gpu.Texture) {
	if !s.cfg.Enabled {
		s.Stop()
		return
	}
	w, h := tex.Width(), tex.Height()
	if !s.running || s.w != w || s.h != h {
		s.Stop()
		s.start(w, h)
	}
	now := s.now()
	if !s.last.IsZero() && now.Sub(s.last) < s.interval() {
		return
	}
	s.last = now

	buf := make([]byte, gpu.FrameBytes(w, h))
	if err := dev.ReadPixels(tex, buf); err != nil {
		log.Debug().Err(err).Str("tag", "OUTPUT").Msg("frame sink readback failed")
		return
	}
	if s.cfg.VFlip {
		FlipRows(buf, w*4)
	}
	RGBAToBGRA(buf)

	s.seq++
	f := Frame{
		Source: s.cfg.SourceName(), Groups: s.cfg.Groups, Seq: s.seq,
		Width: w, Height: h, FPSN: s.cfg.FPSN, FPSD: s.cfg.FPSD, BGRA: buf,
	}
	select {
	case s.frames <- f:
	default:
		s.Dropped++
		if !s.warned {
			log.Warn().Str("tag", "OUTPUT").Str("source", f.Source).Msg("dropping frames (sender busy)")
			s.warned = true
		}
	}
}

func (s *FrameSender) start(w, h int) {
	s.w, s.h = w, h
	s.warned = false
	s.last = time.Time{}
	s.frames = make(chan Frame, 2)
	s.stop = make(chan struct{})
	s.running = true
	log.Info().Str("tag", "OUTPUT").Str("source", s.cfg.SourceName()).Int("w", w).Int("h", h).Msg("frame sink started")

	s.wg.Add(1)
	go s.worker(s.frames, s.stop, s.cfg.ClockVideo, s.interval())
}

func (s *FrameSender) worker(frames <-chan Frame, stop <-chan struct{}, clock bool, every time.Duration) {
	defer s.wg.Done()
	var next time.Time
	for {
		select {
		case <-stop:
			return
		case f := <-frames:
			if clock {
				if d := time.Until(next); d > 0 {
					select {
					case <-time.After(d):
					case <-stop:
						return
					}
				}
				next = time.Now().Add(every)
			}
			if s.pub == nil {
				continue
			}
			if err := s.pub.PublishFrame(f); err != nil {
				log.Debug().Err(err).Str("tag", "OUTPUT").Msg("publish frame")
			}
		}
	}
}

// Stop signals the worker and waits for it.
func (s *FrameSender) Stop() {
	if !s.running {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.running = false
	s.frames, s.stop = nil, nil
	log.Info().Str("tag", "OUTPUT").Msg("frame sink stopped")
}

// FlipRows reverses the row order of a tightly packed image in place.
func FlipRows(pix []byte, stride int) {
	if stride <= 0 {
		return
	}
	rows := len(pix) / stride
	tmp := make([]byte, stride)
	for top, bot := 0, rows-1; top < bot; top, bot = top+1, bot-1 {
		a := pix[top*stride : (top+1)*stride]
		b := pix[bot*stride : (bot+1)*stride]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

// RGBAToBGRA swaps red and blue in place.
func RGBAToBGRA(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}
