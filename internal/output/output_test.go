package output

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/shadecore/internal/config"
	"github.com/coreman2200/shadecore/internal/gpu"
)

// fakeSink records the router mode seen at Stop time.
type fakeSink struct {
	r       *Router
	sends   int
	stops   int
	stopped []Mode
}

func (f *fakeSink) Send(gpu.Device, gpu.Texture) { f.sends++ }
func (f *fakeSink) Stop() {
	f.stops++
	if f.r != nil {
		f.stopped = append(f.stopped, f.r.Current())
	}
}

type fakeHandle struct {
	published int
	destroyed bool
	fail      bool
	invert    bool
}

func (h *fakeHandle) Publish(uint32, int, int) bool { h.published++; return !h.fail }
func (h *fakeHandle) Destroy()                      { h.destroyed = true }
func (h *fakeHandle) SetInvert(v bool)              { h.invert = v }

func newTestRouter(t *testing.T, cfg Config, opts Options) (*Router, *fakeSink, *fakeSink) {
	t.Helper()
	stream, frames := &fakeSink{}, &fakeSink{}
	opts.NewStream = func(StreamConfig) Sink { return stream }
	opts.NewFrames = func(FrameConfig, FramePublisher) Sink { return frames }
	r := NewRouter(cfg, gpu.NewSoft(), opts)
	stream.r, frames.r = r, r
	return r, stream, frames
}

func testTexture(t *testing.T, w, h int) (*gpu.Soft, gpu.Texture) {
	t.Helper()
	dev := gpu.NewSoft()
	tex, err := dev.NewTexture(w, h)
	require.NoError(t, err)
	return dev, tex
}

func TestDefaultModePerPlatform(t *testing.T) {
	assert.Equal(t, Spout, defaultModeFor("windows"))
	assert.Equal(t, Syphon, defaultModeFor("darwin"))
	assert.Equal(t, Texture, defaultModeFor("linux"))
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "output.json")
	require.NoError(t, os.WriteFile(p, []byte(`{
    "output_mode": "Stream",
    "stream": {"enabled": true, "target": "rtmp", "rtmp_url": "rtmp://live/x"},
    "hotkeys": {"ndi": ["KeyN"]},
    "preview": {"scale_mode": "pixel"}
  }`), 0o644))

	cfg, err := Load(p, config.Lenient)
	require.NoError(t, err)
	assert.Equal(t, Stream, cfg.OutputMode)
	assert.Equal(t, RTMP, cfg.Stream.Target)
	assert.Equal(t, uint32(60), cfg.Stream.FPS)
	assert.Equal(t, uint32(8000), cfg.Stream.BitrateKbps)
	assert.True(t, cfg.Stream.VFlip)
	assert.True(t, cfg.Syphon.Enabled)
	assert.True(t, cfg.Spout.Invert)
	assert.Equal(t, int32(60), cfg.NDI.FPSN)
	assert.Equal(t, Pixel, cfg.Preview.ScaleMode)
	assert.True(t, cfg.Preview.Enabled)

	m, ok := cfg.Hotkeys.Lookup("KeyN")
	assert.True(t, ok)
	assert.Equal(t, NDI, m)
	_, ok = cfg.Hotkeys.Lookup("Digit6")
	assert.False(t, ok, "ndi keys replaced by the file")
	m, _ = cfg.Hotkeys.Lookup("Numpad4")
	assert.Equal(t, Stream, m)

	sm, ok := cfg.Preview.Hotkeys.Lookup("Digit8")
	assert.True(t, ok)
	assert.Equal(t, Fill, sm)
}

func TestLoadBadModeFallsBackToDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"output_mode": "hologram"}`), 0o644))
	cfg, err := Load(p, config.Lenient)
	require.Error(t, err)
	assert.Equal(t, DefaultMode(), cfg.OutputMode)
}

func TestLoadStrictRejectsBadValues(t *testing.T) {
	p := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"stream": {"target": "srt"}}`), 0o644))

	cfg, err := Load(p, config.Lenient)
	require.NoError(t, err)
	assert.Equal(t, RTSP, cfg.Stream.Target)

	_, err = Load(p, config.Strict)
	var ce *config.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, config.Invalid, ce.Kind)
}

func TestModeSwitchStopsOldSinkFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputMode = Stream
	r, stream, frames := newTestRouter(t, cfg, Options{})

	r.SetMode(NDI, "hotkey")
	require.Equal(t, 1, stream.stops)
	assert.Equal(t, []Mode{Stream}, stream.stopped, "stream stopped while still current")
	assert.Equal(t, NDI, r.Current())

	r.SetMode(Texture, "hotkey")
	assert.Equal(t, []Mode{NDI}, frames.stopped)
	assert.Equal(t, 1, stream.stops)

	r.SetMode(Texture, "hotkey")
	assert.Equal(t, 1, frames.stops, "same mode does not stop anything")
}

func TestPublishDisabledSinksStayInert(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputMode = Stream
	r, stream, frames := newTestRouter(t, cfg, Options{})
	_, tex := testTexture(t, 4, 4)

	r.Publish(tex)
	r.Publish(tex)
	assert.Zero(t, stream.sends)
	assert.True(t, r.warned)

	cfg.Stream.Enabled = true
	cfg.NDI.Enabled = true
	r.cfg = cfg
	r.Publish(tex)
	assert.Equal(t, 1, stream.sends)

	r.SetMode(NDI, "test")
	assert.False(t, r.warned)
	r.Publish(tex)
	assert.Equal(t, 1, frames.sends)
}

func TestSharedTextureLifecycle(t *testing.T) {
	var created []*fakeHandle
	bridge := BridgeFunc(func(name string, w, h int) (TextureHandle, error) {
		h0 := &fakeHandle{}
		created = append(created, h0)
		return h0, nil
	})
	cfg := DefaultConfig()
	cfg.OutputMode = Spout
	cfg.Spout.Enabled = true
	r, _, _ := newTestRouter(t, cfg, Options{Spout: bridge, Syphon: bridge})
	_, tex := testTexture(t, 8, 4)

	r.Publish(tex)
	r.Publish(tex)
	require.Len(t, created, 1)
	assert.Equal(t, 2, created[0].published)
	assert.True(t, created[0].invert)

	_, big := testTexture(t, 16, 8)
	r.Publish(big)
	require.Len(t, created, 2, "resize recreates the sender")
	assert.True(t, created[0].destroyed)

	r.SetMode(Syphon, "hotkey")
	assert.True(t, created[1].destroyed, "leaving spout destroys the sender")
	r.Publish(tex)
	require.Len(t, created, 3)

	created[2].fail = true
	r.Publish(tex)
	assert.True(t, r.warned)
	r.Close()
	assert.True(t, created[2].destroyed)
}

func TestSharedTextureInitFailureRetries(t *testing.T) {
	calls := 0
	bridge := BridgeFunc(func(string, int, int) (TextureHandle, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("no gl context")
		}
		return &fakeHandle{}, nil
	})
	cfg := DefaultConfig()
	cfg.OutputMode = Syphon
	r, _, _ := newTestRouter(t, cfg, Options{Syphon: bridge})
	_, tex := testTexture(t, 2, 2)
	for i := 0; i < 4; i++ {
		r.Publish(tex)
	}
	assert.Equal(t, 3, calls)
	assert.NotNil(t, r.shared)
}

func TestUnavailableBridge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputMode = Spout
	cfg.Spout.Enabled = true
	r, _, _ := newTestRouter(t, cfg, Options{
		Spout: missingBridge{err: ErrUnavailable},
	})
	_, tex := testTexture(t, 2, 2)
	r.Publish(tex)
	assert.True(t, r.warned)
	assert.Nil(t, r.shared)
}

func TestReconfigureReplacesChangedSinks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputMode = Texture
	built := 0
	stream := &fakeSink{}
	r := NewRouter(cfg, gpu.NewSoft(), Options{
		NewStream: func(StreamConfig) Sink { built++; return stream },
		NewFrames: func(FrameConfig, FramePublisher) Sink { return &fakeSink{} },
	})

	next := cfg
	r.Reconfigure(next)
	assert.Equal(t, 1, built)
	assert.Zero(t, stream.stops)

	next.Stream.BitrateKbps = 4000
	next.OutputMode = Stream
	r.Reconfigure(next)
	assert.Equal(t, 2, built)
	assert.Equal(t, 1, stream.stops)
	assert.Equal(t, Stream, r.Current())
}

func TestStreamArgs(t *testing.T) {
	cfg := DefaultStream()
	args, ok := StreamArgs(cfg, 640, 360)
	require.True(t, ok)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "warning",
		"-f", "rawvideo", "-pix_fmt", "rgba", "-s", "640x360", "-r", "60", "-i", "-",
		"-vf", "vflip",
		"-an", "-c:v", "libx264", "-preset", "veryfast", "-tune", "zerolatency",
		"-pix_fmt", "yuv420p", "-g", "120", "-b:v", "8000k",
		"-f", "rtsp", "-rtsp_transport", "tcp", "-muxdelay", "0.1", DefaultRTSPURL,
	}, args)

	cfg.Target = RTMP
	_, ok = StreamArgs(cfg, 640, 360)
	assert.False(t, ok)

	cfg.RTMPURL = "rtmp://a.rtmp.youtube.com/live2/key"
	cfg.VFlip = false
	args, ok = StreamArgs(cfg, 640, 360)
	require.True(t, ok)
	assert.NotContains(t, args, "vflip")
	assert.Equal(t, []string{"-f", "flv", cfg.RTMPURL}, args[len(args)-3:])
}

func TestStreamSenderThrottleAndRestart(t *testing.T) {
	cfg := DefaultStream()
	cfg.Enabled = true
	cfg.FPS = 10
	s := NewStreamSender(cfg)
	var jobs []streamJob
	s.spawn = func(j streamJob) { jobs = append(jobs, j) }
	clock := time.Unix(100, 0)
	s.now = func() time.Time { return clock }

	dev, tex := testTexture(t, 4, 2)
	s.Send(dev, tex)
	require.Len(t, jobs, 1)
	assert.Len(t, jobs[0].frames, 1)

	clock = clock.Add(50 * time.Millisecond)
	s.Send(dev, tex)
	assert.Len(t, jobs[0].frames, 1, "throttled to 1/fps")

	clock = clock.Add(60 * time.Millisecond)
	s.Send(dev, tex)
	clock = clock.Add(100 * time.Millisecond)
	s.Send(dev, tex)
	assert.Len(t, jobs[0].frames, 2)
	assert.Equal(t, uint64(1), s.Dropped, "queue capacity is 2")

	_, big := testTexture(t, 8, 8)
	s.Send(dev, big)
	require.Len(t, jobs, 2, "size change restarts the worker")
	assert.Len(t, jobs[0].stop, 1, "old worker signalled")
	assert.Equal(t, 8, jobs[1].w)

	s.Stop()
	assert.False(t, s.Running())
	s.Stop()
}

func TestStreamSenderRTMPWithoutURL(t *testing.T) {
	cfg := DefaultStream()
	cfg.Enabled = true
	cfg.Target = RTMP
	s := NewStreamSender(cfg)
	spawned := 0
	s.spawn = func(streamJob) { spawned++ }
	dev, tex := testTexture(t, 2, 2)
	s.Send(dev, tex)
	s.Send(dev, tex)
	assert.Zero(t, spawned)
	assert.False(t, s.Running())
	assert.True(t, s.warned)
}

type chanPublisher struct{ ch chan Frame }

func (p chanPublisher) PublishFrame(f Frame) error { p.ch <- f; return nil }

func TestFrameSenderConvertsAndJoins(t *testing.T) {
	cfg := DefaultFrame()
	cfg.Enabled = true
	cfg.ClockVideo = false
	pub := chanPublisher{ch: make(chan Frame, 4)}
	s := NewFrameSender(cfg, pub)

	dev, tex := testTexture(t, 1, 2)
	// row 0 red, row 1 blue
	require.NoError(t, dev.Upload(tex, []byte{255, 0, 0, 255, 0, 0, 255, 255}))
	s.Send(dev, tex)

	select {
	case f := <-pub.ch:
		assert.Equal(t, "shadecore", f.Source)
		assert.Equal(t, uint64(1), f.Seq)
		// flipped: blue row first, then BGRA swizzle
		assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, f.BGRA)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not published")
	}
	s.Stop()
	assert.False(t, s.Running())
}

func TestFrameSenderGate(t *testing.T) {
	cfg := DefaultFrame()
	cfg.Enabled = true
	cfg.FPSN, cfg.FPSD = 30, 1
	s := NewFrameSender(cfg, nil)
	clock := time.Unix(0, 0)
	s.now = func() time.Time { return clock }
	dev, tex := testTexture(t, 2, 2)

	s.Send(dev, tex)
	clock = clock.Add(10 * time.Millisecond)
	s.Send(dev, tex)
	assert.Equal(t, uint64(1), s.seq)
	clock = clock.Add(30 * time.Millisecond)
	s.Send(dev, tex)
	assert.Equal(t, uint64(2), s.seq)
	s.Stop()

	cfg.Enabled = false
	s = NewFrameSender(cfg, nil)
	s.Send(dev, tex)
	assert.False(t, s.Running())
}

func TestPixelHelpers(t *testing.T) {
	px := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	FlipRows(px, 4)
	assert.Equal(t, []byte{9, 10, 11, 12, 5, 6, 7, 8, 1, 2, 3, 4}, px)
	RGBAToBGRA(px)
	assert.Equal(t, []byte{11, 10, 9, 12}, px[:4])
}

func TestDefaultBridgesWithoutHostBinding(t *testing.T) {
	for _, tc := range []struct {
		name   string
		bridge TextureBridge
		native string
	}{
		{"syphon", DefaultSyphon(), "darwin"},
		{"spout", DefaultSpout(), "windows"},
	} {
		h, err := tc.bridge.Create("shadecore", 8, 4)
		require.Error(t, err, tc.name)
		assert.Nil(t, h, tc.name)
		if runtime.GOOS != tc.native {
			assert.ErrorIs(t, err, ErrUnavailable, tc.name)
		} else {
			assert.NotErrorIs(t, err, ErrUnavailable, "%s: retried on its own platform", tc.name)
		}
	}
}
