package oscin

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/shadecore/internal/config"
	"github.com/coreman2200/shadecore/internal/params"
)

const paramsFile = `{
  "osc": {"enabled": true, "prefix": "/shadecore", "normalized": true,
          "mappings": [{"addr": "/fader1", "param": "zoom", "min": 1, "max": 3}]},
  "params": [
    {"name": "gain", "default": 1.0, "min": 0, "max": 2},
    {"name": "zoom", "default": 1.0, "min": 0.5, "max": 4}
  ]
}`

func startServer(t *testing.T) (*params.Store, *net.UDPConn, net.Addr) {
	t.Helper()
	f, err := params.ParseFile([]byte(paramsFile), config.Lenient)
	require.NoError(t, err)
	store := params.NewStore(f, t.TempDir())

	srv, err := Listen("127.0.0.1:0", store)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = srv.Close()
	})

	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return store, client, srv.Addr()
}

func send(t *testing.T, c *net.UDPConn, to net.Addr, p osc.Packet) {
	t.Helper()
	b, err := p.MarshalBinary()
	require.NoError(t, err)
	_, err = c.WriteTo(b, to)
	require.NoError(t, err)
}

func recv(t *testing.T, c *net.UDPConn) *osc.Message {
	t.Helper()
	buf := make([]byte, 65535)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := c.ReadFrom(buf)
	require.NoError(t, err)
	p, err := osc.ParsePacket(string(buf[:n]))
	require.NoError(t, err)
	m, ok := p.(*osc.Message)
	require.True(t, ok)
	return m
}

func target(s *params.Store, name string) float32 {
	st, _ := s.Snapshot(name)
	return st.Target
}

func TestParamMessagesMoveTargets(t *testing.T) {
	store, c, addr := startServer(t)

	send(t, c, addr, osc.NewMessage("/shadecore/param/gain", float32(1.5)))
	require.Eventually(t, func() bool { return target(store, "gain") == 2 }, 2*time.Second, 5*time.Millisecond,
		"normalized input clamps to max")

	send(t, c, addr, osc.NewMessage("/shadecore/raw/gain", int32(1)))
	require.Eventually(t, func() bool { return target(store, "gain") == 1 }, 2*time.Second, 5*time.Millisecond)

	b := osc.NewBundle(time.Now())
	require.NoError(t, b.Append(osc.NewMessage("/shadecore/fader1", float32(0.5))))
	send(t, c, addr, b)
	require.Eventually(t, func() bool { return target(store, "zoom") == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestIntrospectionReplies(t *testing.T) {
	_, c, addr := startServer(t)

	send(t, c, addr, osc.NewMessage("/shadecore/list"))
	m := recv(t, c)
	assert.Equal(t, "/shadecore/reply/list/params", m.Address)
	assert.Equal(t, []interface{}{"gain", "zoom"}, m.Arguments)

	send(t, c, addr, osc.NewMessage("/shadecore/get/zoom"))
	m = recv(t, c)
	assert.Equal(t, "/shadecore/reply/get/zoom", m.Address)
	assert.Equal(t, []interface{}{float32(1), float32(1), float32(0.5), float32(4), float32(0)}, m.Arguments)

	send(t, c, addr, osc.NewMessage("/shadecore/get/nope"))
	m = recv(t, c)
	assert.Equal(t, []interface{}{"unknown_param"}, m.Arguments)

	send(t, c, addr, osc.NewMessage("/shadecore/mappings"))
	m = recv(t, c)
	assert.Equal(t, "/shadecore/reply/list/mappings", m.Address)
	assert.Contains(t, m.Arguments, "prefix=/shadecore")
	assert.Contains(t, m.Arguments, "/shadecore/fader1")
}
