package readiness

import (
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ioprovider/ioerr"
	"github.com/momentics/hioload-ioprovider/provider"
)

func TestProvider_DoubleInitializeFails(t *testing.T) {
	p := New()
	if err := p.Initialize(64, 16); err != nil {
		t.Skipf("readiness adapter unavailable on this platform: %v", err)
	}
	defer p.Shutdown()

	err := p.Initialize(64, 16)
	require.Error(t, err)
	assert.Equal(t, ioerr.CodeAlreadyInitialized, ioerr.CodeOf(err))
}

func TestProvider_SubmitAfterShutdownFails(t *testing.T) {
	p := New()
	if err := p.Initialize(64, 16); err != nil {
		t.Skipf("readiness adapter unavailable on this platform: %v", err)
	}
	require.NoError(t, p.Shutdown())

	err := p.RecvAsync(1, make([]byte, 16), 1, 0)
	require.Error(t, err)
	assert.Equal(t, ioerr.CodeNotInitialized, ioerr.CodeOf(err))
}

func TestProvider_ProcessCompletionsNonBlockingWhenIdle(t *testing.T) {
	p := New()
	if err := p.Initialize(64, 16); err != nil {
		t.Skipf("readiness adapter unavailable on this platform: %v", err)
	}
	defer p.Shutdown()

	entries := make([]provider.CompletionEntry, 8)
	start := time.Now()
	n, err := p.ProcessCompletions(entries, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestProvider_UnregisterUnknownIDFails(t *testing.T) {
	p := New()
	if err := p.Initialize(64, 16); err != nil {
		t.Skipf("readiness adapter unavailable on this platform: %v", err)
	}
	defer p.Shutdown()

	err := p.UnregisterBuffer(42)
	require.Error(t, err)
	assert.Equal(t, ioerr.CodeInvalidParameter, ioerr.CodeOf(err))
}

// TestProvider_EchoRoundTrip exercises a real loopback TCP pair end to
// end: a recv submitted against the server side observes the bytes the
// client wrote, with the provider reporting the true transferred count.
func TestProvider_EchoRoundTrip(t *testing.T) {
	p := New()
	if err := p.Initialize(64, 16); err != nil {
		t.Skipf("readiness adapter unavailable on this platform: %v", err)
	}
	defer p.Shutdown()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	clientDone := make(chan error, 1)
	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			clientDone <- err
			return
		}
		defer conn.Close()
		_, err = conn.Write([]byte("hello"))
		clientDone <- err
	}()

	server, err := ln.Accept()
	require.NoError(t, err)
	defer server.Close()

	fd := fdOf(t, server)

	buf := make([]byte, 64)
	require.NoError(t, p.RecvAsync(fd, buf, 99, 0))

	entries := make([]provider.CompletionEntry, 4)
	var n int
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err = p.ProcessCompletions(entries, 200)
		require.NoError(t, err)
		if n > 0 {
			break
		}
	}
	require.Greater(t, n, 0, "expected at least one completion before the deadline")
	assert.Equal(t, uint64(99), entries[0].RequestContext)
	assert.Equal(t, provider.OpRecv, entries[0].Kind)
	assert.EqualValues(t, 5, entries[0].Result)
	assert.Equal(t, "hello", string(buf[:entries[0].Result]))

	require.NoError(t, <-clientDone)
}

func fdOf(t *testing.T, conn net.Conn) uintptr {
	t.Helper()
	sc, ok := conn.(syscall.Conn)
	require.True(t, ok)
	raw, err := sc.SyscallConn()
	require.NoError(t, err)
	var fd uintptr
	require.NoError(t, raw.Control(func(f uintptr) { fd = f }))
	return fd
}
