// Package oscin receives OSC over UDP and routes it into the parameter store.
// It also answers introspection queries under <prefix>/list and <prefix>/get.
package oscin

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/shadecore/internal/params"
)

// readTimeout bounds how long Run can take to notice cancellation.
const readTimeout = 20 * time.Millisecond

// Store is the subset of *params.Store the server needs.
type Store interface {
	ApplyOSC(addr string, args []any) (params.OSCResult, bool)
	Snapshot(name string) (params.ParamState, bool)
	Names() []string
	OSC() *params.OSCTable
}

type Server struct {
	store Store
	conn  net.PacketConn
}

// Listen binds a UDP socket on addr ("0.0.0.0:9000").
func Listen(addr string, store Store) (*Server, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	log.Info().Str("tag", "OSC").Str("bind", conn.LocalAddr().String()).Str("prefix", store.OSC().Prefix).Msg("listening")
	return &Server{store: store, conn: conn}, nil
}

func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Run reads packets until ctx is cancelled or the socket is closed.
func (s *Server) Run(ctx context.Context) error {
	buf := make([]byte, 65535)
	for {
		if ctx.Err() != nil {
			return nil
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, from, err := s.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warn().Err(err).Str("tag", "OSC").Msg("recv")
			continue
		}
		pkt, err := osc.ParsePacket(string(buf[:n]))
		if err != nil {
			log.Debug().Err(err).Str("tag", "OSC").Str("from", from.String()).Msg("decode")
			continue
		}
		s.handlePacket(pkt, from)
	}
}

func (s *Server) Close() error { return s.conn.Close() }

func (s *Server) handlePacket(p osc.Packet, from net.Addr) {
	switch v := p.(type) {
	case *osc.Message:
		s.handleMessage(v, from)
	case *osc.Bundle:
		for _, m := range v.Messages {
			s.handleMessage(m, from)
		}
		for _, b := range v.Bundles {
			s.handlePacket(b, from)
		}
	}
}

func (s *Server) handleMessage(m *osc.Message, from net.Addr) {
	prefix := s.store.OSC().Prefix
	if s.introspect(prefix, m.Address, from) {
		return
	}
	res, ok := s.store.ApplyOSC(m.Address, m.Arguments)
	if !ok {
		log.Debug().Str("tag", "OSC").Str("addr", m.Address).Interface("args", m.Arguments).Msg("unmapped")
		return
	}
	log.Debug().Str("tag", "OSC").Str("addr", m.Address).Str("param", res.Name).
		Float32("target", res.Value).Bool("normalized", res.Normalized).Msg("set")
}

func (s *Server) introspect(prefix, addr string, to net.Addr) bool {
	switch {
	case addr == prefix+"/list/params" || addr == prefix+"/list":
		names := s.store.Names()
		args := make([]any, len(names))
		for i, n := range names {
			args[i] = n
		}
		s.reply(to, prefix+"/reply/list/params", args...)
		return true

	case strings.HasPrefix(addr, prefix+"/get/"):
		name := strings.TrimPrefix(addr, prefix+"/get/")
		st, ok := s.store.Snapshot(name)
		if !ok {
			s.reply(to, prefix+"/reply/get/"+name, "unknown_param")
			return true
		}
		s.reply(to, prefix+"/reply/get/"+name, st.Value, st.Target, st.Min, st.Max, st.Smoothing)
		return true

	case addr == prefix+"/list/mappings" || addr == prefix+"/mappings":
		args := []any{
			"prefix=" + prefix,
			prefix + "/param/<name> (normalized 0..1)",
			prefix + "/raw/<name> (raw value)",
			prefix + "/list/params",
			prefix + "/get/<name>",
		}
		for _, a := range s.store.OSC().Addresses() {
			args = append(args, a)
		}
		s.reply(to, prefix+"/reply/list/mappings", args...)
		return true
	}
	return false
}

func (s *Server) reply(to net.Addr, addr string, args ...any) {
	msg := osc.NewMessage(addr, args...)
	b, err := msg.MarshalBinary()
	if err != nil {
		log.Warn().Err(err).Str("tag", "OSC").Str("addr", addr).Msg("encode reply")
		return
	}
	if _, err := s.conn.WriteTo(b, to); err != nil {
		log.Debug().Err(err).Str("tag", "OSC").Str("to", to.String()).Msg("send reply")
	}
}
