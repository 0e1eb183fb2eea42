// Package capture reads the render target back to host memory for recording.
// Readback is double buffered: the buffer written this frame is mapped on the
// next one, so the GPU never stalls the render thread and the first frame of
// a session produces no output.
package capture

import (
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/shadecore/internal/gpu"
)

// FrameSink accepts owned RGBA frames without blocking. false means the
// frame was dropped.
type FrameSink interface {
	TrySend(frame []byte) bool
}

type Stats struct {
	Forwarded uint64
	Dropped   uint64
}

type session struct {
	w, h    int
	surface gpu.Texture
	bufs    [2]gpu.Buffer
	idx     int
	primed  bool
}

// Pipeline is owned by the render thread.
type Pipeline struct {
	dev   gpu.Device
	sink  FrameSink
	s     *session
	stats Stats
}

func New(dev gpu.Device, sink FrameSink) *Pipeline {
	return &Pipeline{dev: dev, sink: sink}
}

func (p *Pipeline) Active() bool { return p.s != nil }

func (p *Pipeline) Stats() Stats { return p.stats }

// Size is the record resolution of the active session.
func (p *Pipeline) Size() (w, h int) {
	if p.s == nil {
		return 0, 0
	}
	return p.s.w, p.s.h
}

// Begin starts a session at w x h. An active session with a different size
// is replaced; one with the same size is kept as is.
func (p *Pipeline) Begin(w, h int) error {
	if p.s != nil && p.s.w == w && p.s.h == h {
		return nil
	}
	p.End()
	surface, err := p.dev.NewTexture(w, h)
	if err != nil {
		return err
	}
	s := &session{w: w, h: h, surface: surface}
	for i := range s.bufs {
		b, err := p.dev.NewBuffer(gpu.FrameBytes(w, h))
		if err != nil {
			p.release(s)
			return err
		}
		s.bufs[i] = b
	}
	p.s = s
	p.stats = Stats{}
	log.Debug().Str("tag", "RECORDING").Int("w", w).Int("h", h).Msg("capture session allocated")
	return nil
}

// Frame queues a readback of src and forwards the previous frame's pixels.
func (p *Pipeline) Frame(src gpu.Texture) {
	s := p.s
	if s == nil {
		return
	}
	if err := p.dev.Blit(s.surface, src); err != nil {
		log.Debug().Err(err).Str("tag", "RECORDING").Msg("capture blit")
		return
	}
	if err := p.dev.ReadAsync(s.surface, s.bufs[s.idx]); err != nil {
		log.Debug().Err(err).Str("tag", "RECORDING").Msg("capture readback")
		return
	}

	if s.primed {
		p.forward(s.bufs[(s.idx+1)&1])
	} else {
		s.primed = true
	}
	s.idx = (s.idx + 1) & 1
}

func (p *Pipeline) forward(buf gpu.Buffer) {
	data, err := p.dev.Map(buf)
	if err != nil {
		p.stats.Dropped++
		return
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	p.dev.Unmap(buf)

	if p.sink != nil && p.sink.TrySend(frame) {
		p.stats.Forwarded++
	} else {
		p.stats.Dropped++
	}
}

// End releases the session. A frame still in flight is discarded.
func (p *Pipeline) End() {
	if p.s == nil {
		return
	}
	p.release(p.s)
	p.s = nil
}

func (p *Pipeline) release(s *session) {
	for _, b := range s.bufs {
		if b != nil {
			p.dev.ReleaseBuffer(b)
		}
	}
	if s.surface != nil {
		p.dev.ReleaseTexture(s.surface)
	}
}
