package proxy

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// stubTunnel hands out in-memory streams and records the destination
// strings the proxy wrote. handler serves the remote side of each stream
// after the destination string has been consumed.
type stubTunnel struct {
	mu    sync.Mutex
	dests []string

	fail    bool
	handler func(dest string, stream net.Conn)
}

func (st *stubTunnel) OpenStream(dest string) (net.Conn, error) {
	if st.fail {
		return nil, errors.New("no current session")
	}

	// the real tunnel has already written the destination string onto the
	// stream at this point; the stub just records it
	st.mu.Lock()
	st.dests = append(st.dests, dest)
	st.mu.Unlock()

	local, remote := net.Pipe()

	if st.handler != nil {
		go st.handler(dest, remote)
	} else {
		go func() {
			io.Copy(io.Discard, remote)
			remote.Close()
		}()
	}

	return local, nil
}

func (st *stubTunnel) destinations() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]string, len(st.dests))
	copy(out, st.dests)
	return out
}

// echoHandler echoes stream bytes back, closing on EOF.
func echoHandler(dest string, stream net.Conn) {
	defer stream.Close()
	io.Copy(stream, stream)
}

// stubRules bypasses a fixed set of IPs.
type stubRules struct {
	bypass map[string]bool
}

func (r *stubRules) ShouldBypass(ip string) bool {
	return r.bypass[ip]
}

func testProxyConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		ListenAddr: "127.0.0.1:0",
		Logger:     zap.NewNop().Sugar(),
	}
}
