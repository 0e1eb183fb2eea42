// Package ws is the HTTP/websocket control surface: shared frames on /ws,
// diagnostics and engine events on /diag, JSON actions on /control, a
// health snapshot on /health and a PNG of the last frame on /preview.png.
package ws

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	diag "github.com/coreman2200/shadecore/internal/diagnostics"
	"github.com/coreman2200/shadecore/internal/engine"
	"github.com/coreman2200/shadecore/internal/output"
	"github.com/coreman2200/shadecore/internal/preview"
)

const writeWait = 200 * time.Millisecond

// Controller is the engine side of the control surface.
type Controller interface {
	Do(a engine.Action)
	Status() engine.Status
}

type State struct {
	ctl Controller

	// frameMu guards clients and serializes frame writes.
	frameMu sync.Mutex
	clients map[*websocket.Conn]bool
	frameID atomic.Uint64
	last    output.Frame

	diagMu      sync.Mutex
	diagClients map[*websocket.Conn]bool
	diag        chan any

	startTime time.Time
	up        websocket.Upgrader
}

func NewState(ctl Controller) *State {
	return &State{
		ctl:         ctl,
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		diag:        make(chan any, 64),
		startTime:   time.Now(),
		up:          websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Attach sets the controller when the State had to exist before the engine.
// Call it before serving.
func (s *State) Attach(ctl Controller) { s.ctl = ctl }

// Handler routes every endpoint.
func (s *State) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/preview.png", s.HandlePreview)
	return mux
}

type hello struct {
	Type string `json:"type"`
}

// frameHeader precedes every binary BGRA payload on /ws.
type frameHeader struct {
	Type    string `json:"type"`
	FrameID uint64 `json:"frame_id"`
	Source  string `json:"source"`
	Groups  string `json:"groups,omitempty"`
	Seq     uint64 `json:"seq"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	FPSN    int32  `json:"fps_n"`
	FPSD    int32  `json:"fps_d"`
	Format  string `json:"format"`
}

// PublishFrame broadcasts one frame to every /ws client: a JSON header
// followed by the raw BGRA pixels. It runs on the frame sink worker.
func (s *State) PublishFrame(f output.Frame) error {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()
	h := frameHeader{
		Type: "frame", FrameID: s.frameID.Add(1), Source: f.Source, Groups: f.Groups, Seq: f.Seq,
		Width: f.Width, Height: f.Height, FPSN: f.FPSN, FPSD: f.FPSD, Format: "BGRA",
	}
	buf := append(s.last.BGRA[:0], f.BGRA...)
	s.last = f
	s.last.BGRA = buf
	for c := range s.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteJSON(h); err != nil {
			log.Debug().Err(err).Str("tag", "OUTPUT").Msg("write frame header")
			continue
		}
		if err := c.WriteMessage(websocket.BinaryMessage, f.BGRA); err != nil {
			log.Debug().Err(err).Str("tag", "OUTPUT").Msg("write frame")
		}
	}
	return nil
}

// Emit queues an engine event for /diag clients. It never blocks.
func (s *State) Emit(ev engine.Event) { s.queue(ev) }

// PushDiag queues a diagnostic for /diag clients.
func (s *State) PushDiag(d diag.Diagnostic) { s.queue(d) }

func (s *State) queue(v any) {
	select {
	case s.diag <- v:
	default:
	}
}

// RunDiag broadcasts queued diagnostics and events until ctx is done.
func (s *State) RunDiag(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-s.diag:
			s.broadcastDiag(v)
		}
	}
}

func (s *State) broadcastDiag(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	for c := range s.diagClients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.frameMu.Lock()
	s.clients[conn] = true
	_ = conn.WriteJSON(hello{Type: "hello"})
	s.frameMu.Unlock()
	go s.drain(conn, func() {
		s.frameMu.Lock()
		delete(s.clients, conn)
		s.frameMu.Unlock()
	})
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.diagMu.Lock()
	s.diagClients[conn] = true
	_ = conn.WriteJSON(hello{Type: "hello"})
	s.diagMu.Unlock()
	go s.drain(conn, func() {
		s.diagMu.Lock()
		delete(s.diagClients, conn)
		s.diagMu.Unlock()
	})
}

// drain reads until the peer goes away, then unregisters it.
func (s *State) drain(conn *websocket.Conn, remove func()) {
	defer func() {
		remove()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// HandleControlWS turns each JSON message into engine actions and answers
// with the health snapshot.
func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		actions, err := ParseControl(msg)
		if err != nil {
			s.PushDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: "CONTROL.INVALID", Summary: err.Error(),
				Evidence: msg,
			})
		}
		for _, a := range actions {
			s.ctl.Do(a)
		}
		if err := conn.WriteJSON(s.health()); err != nil {
			return
		}
	}
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.health())
}

// HandlePreview renders the last shared frame into a w x h PNG using the
// current preview scale mode. Query: ?w=640&h=360.
func (s *State) HandlePreview(w http.ResponseWriter, r *http.Request) {
	ww, wh := queryInt(r, "w", 640), queryInt(r, "h", 360)
	if ww <= 0 || wh <= 0 || ww > 4096 || wh > 4096 {
		http.Error(w, "bad size", http.StatusBadRequest)
		return
	}
	s.frameMu.Lock()
	src := bgraImage(s.last)
	s.frameMu.Unlock()
	if src == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	dst := image.NewRGBA(image.Rect(0, 0, ww, wh))
	preview.Present(dst, src, s.ctl.Status().Preview)
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, dst); err != nil {
		log.Debug().Err(err).Str("tag", "OUTPUT").Msg("write preview")
	}
}

func bgraImage(f output.Frame) *image.RGBA {
	if f.Width <= 0 || f.Height <= 0 || len(f.BGRA) < f.Width*f.Height*4 {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	copy(img.Pix, f.BGRA)
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
	}
	return img
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func (s *State) health() map[string]any {
	st := s.ctl.Status()
	vp := map[string]int{"x": st.Viewport.Min.X, "y": st.Viewport.Min.Y, "w": st.Viewport.Dx(), "h": st.Viewport.Dy()}
	return map[string]any{
		"frame_id":         st.Frame,
		"shared_frames":    s.frameID.Load(),
		"uptime_s":         time.Since(s.startTime).Seconds(),
		"fps":              st.FPS,
		"output_mode":      st.Output,
		"preview_scale":    st.Preview,
		"preview_viewport": vp,
		"recording":        st.Recording,
		"record_path":      st.RecordPath,
		"record_session":   st.Session,
		"shader":           st.Shader,
		"active_profile":   st.Profile,
		"midi_port":        st.MidiPort,
		"params":           st.Params,
	}
}
