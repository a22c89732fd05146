package runtime

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ioprovider/config"
	"github.com/momentics/hioload-ioprovider/framing"
	"github.com/momentics/hioload-ioprovider/provider/readiness"
)

const (
	msgTypePing uint32 = 1
	msgTypePong uint32 = 2
)

func newTestServer(t *testing.T) (*Server, func()) {
	t.Helper()
	prov := readiness.New()
	if err := prov.Initialize(64, 16); err != nil {
		t.Skipf("readiness adapter unavailable on this platform: %v", err)
	}

	cfg := config.New(
		config.WithBufferPool(256, 4),
		config.WithSendPool(256, 4),
		config.WithQueueDepth(16),
		config.WithMaxConcurrent(8),
	)

	dispatcher := framing.NewDispatcher()
	var srv *Server
	dispatcher.RegisterHandler(msgTypePing, func(msg framing.Message) {
		pong := framing.CreateMessage(msgTypePong, msg.ConnectionID, 0, msg.Payload)
		_ = srv.Send(msg.ConnectionID, pong)
	})

	s, err := New(cfg, prov, dispatcher)
	require.NoError(t, err)
	srv = s

	require.NoError(t, s.Listen("127.0.0.1:0"))
	return s, func() {
		s.Stop()
		prov.Shutdown()
	}
}

// TestServer_PingPongRoundTrip drives one real TCP client through the
// full accept -> recv -> dispatch -> send -> recv path.
func TestServer_PingPongRoundTrip(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	ping := framing.CreateMessage(msgTypePing, 0, 0, []byte("ping-payload"))
	_, err = conn.Write(ping)
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	msg, consumed, err := framing.ParseMessage(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, n, consumed)
	assert.Equal(t, msgTypePong, msg.Type)
	assert.Equal(t, "ping-payload", string(msg.Payload))
}

// TestServer_StopWithOutstandingRecv verifies Stop returns promptly even
// while a connection's recv is still armed and nothing more ever
// arrives on it.
func TestServer_StopWithOutstandingRecv(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond) // let the accept loop arm the recv

	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return promptly with an outstanding recv")
	}
}
