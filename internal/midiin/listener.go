// Package midiin feeds control-change messages from a MIDI input port into
// the parameter store.
package midiin

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/coreman2200/shadecore/internal/profile"
)

// logFirst is how many CC messages are logged after a connect.
const logFirst = 80

var ErrNoPorts = errors.New("midi: no input ports")

// CCApplier is satisfied by *params.Store.
type CCApplier interface {
	ApplyCC(channel, cc, value uint8) bool
}

// SelectPort picks the first port whose name contains preferred
// (case-insensitive), else the first port. -1 when names is empty.
func SelectPort(names []string, preferred string) int {
	if len(names) == 0 {
		return -1
	}
	if p := strings.ToLower(strings.TrimSpace(preferred)); p != "" {
		for i, n := range names {
			if strings.Contains(strings.ToLower(n), p) {
				return i
			}
		}
		log.Warn().Str("tag", "MIDI").Str("preferred", preferred).Strs("ports", names).
			Msg("no input matches preferred_device_contains; using the first port")
	}
	return 0
}

// Listener owns one open input port. Messages arrive on the driver's
// goroutine.
type Listener struct {
	drv   drivers.Driver
	store CCApplier

	mu        sync.Mutex
	in        drivers.In
	stop      func()
	cfg       profile.MidiConfig
	connected bool

	seen atomic.Uint32
}

func New(drv drivers.Driver, store CCApplier) *Listener {
	return &Listener{drv: drv, store: store}
}

// Port is the name of the open port, "" when disconnected.
func (l *Listener) Port() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.in == nil {
		return ""
	}
	return l.in.String()
}

// Ensure connects when disconnected or when cfg selects a different device
// or channel than the current connection.
func (l *Listener) Ensure(cfg profile.MidiConfig) error {
	l.mu.Lock()
	same := l.connected && l.cfg.Equal(cfg)
	l.mu.Unlock()
	if same {
		return nil
	}
	return l.Connect(cfg)
}

// Connect (re)opens the input selected by cfg.
func (l *Listener) Connect(cfg profile.MidiConfig) error {
	l.Close()
	if l.drv == nil {
		return errors.New("midi: no driver")
	}
	ins, err := l.drv.Ins()
	if err != nil {
		return fmt.Errorf("midi inputs: %w", err)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	log.Info().Str("tag", "MIDI").Strs("ports", names).Msg("available inputs")
	idx := SelectPort(names, cfg.Device())
	if idx < 0 {
		return ErrNoPorts
	}
	in := ins[idx]
	if !in.IsOpen() {
		if err := in.Open(); err != nil {
			return fmt.Errorf("open %s: %w", in.String(), err)
		}
	}
	l.seen.Store(0)
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) { l.handle(msg) })
	if err != nil {
		_ = in.Close()
		return fmt.Errorf("listen %s: %w", in.String(), err)
	}

	l.mu.Lock()
	l.in, l.stop, l.cfg, l.connected = in, stop, cfg, true
	l.mu.Unlock()
	ev := log.Info().Str("tag", "MIDI").Str("port", in.String())
	if cfg.Channel != nil {
		ev = ev.Uint8("channel", *cfg.Channel)
	}
	ev.Msg("connected")
	return nil
}

func (l *Listener) handle(msg midi.Message) {
	var ch, cc, val uint8
	if !msg.GetControlChange(&ch, &cc, &val) {
		return
	}
	applied := l.store.ApplyCC(ch, cc, val)
	n := l.seen.Add(1)
	switch {
	case !applied:
		log.Info().Str("tag", "MIDI").Uint8("ch", ch).Uint8("cc", cc).Uint8("val", val).Msg("unmapped cc")
	case n <= logFirst:
		log.Debug().Str("tag", "MIDI").Uint8("ch", ch).Uint8("cc", cc).Uint8("val", val).Msg("cc")
	}
}

// Close stops listening and closes the port.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		l.stop()
	}
	if l.in != nil {
		_ = l.in.Close()
	}
	l.in, l.stop, l.connected = nil, nil, false
}
