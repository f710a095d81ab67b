// Package session runs the multiplexed tunnel session: a yamux client on
// top of the masquerade channel, and a supervisor that keeps exactly one
// session alive while the engine is running.
package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"mcveil/pkg/masquerade"
	"mcveil/pkg/minecraft"

	"github.com/hashicorp/yamux"
)

const (
	muxKeepAliveInterval      = 30 * time.Second
	muxConnectionWriteTimeout = 15 * time.Second
	muxMaxStreamWindowSize    = 512 * 1024
	muxStreamOpenTimeout      = 30 * time.Second
)

// Session owns one established tunnel: the masquerade channel, the yamux
// client on top of it and the noise goroutine's cancel handle.
type Session struct {
	// ID is a short random identifier used in logs.
	ID string

	conn        *masquerade.Conn
	mux         *yamux.Session
	cancelNoise context.CancelFunc
}

// OpenStream opens a fresh multiplexed stream and writes the
// length-prefixed destination string, which is the first thing the remote
// end reads on every stream.
func (s *Session) OpenStream(dest string) (net.Conn, error) {
	stream, err := s.mux.Open()
	if err != nil {
		return nil, fmt.Errorf("session.Open(): %s", err)
	}

	buf := new(bytes.Buffer)
	minecraft.WriteString(buf, dest)
	if _, err := stream.Write(buf.Bytes()); err != nil {
		stream.Close()
		return nil, fmt.Errorf("writing destination: %s", err)
	}

	return stream, nil
}

// IsClosed reports whether the multiplexer has shut down.
func (s *Session) IsClosed() bool {
	return s.mux.IsClosed()
}

// Close stops the noise goroutine, the multiplexer and the underlying
// channel. Safe to call more than once.
func (s *Session) Close() error {
	s.cancelNoise()
	err := s.mux.Close()
	s.conn.Close()
	return err
}

func muxConfig() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.KeepAliveInterval = muxKeepAliveInterval
	cfg.ConnectionWriteTimeout = muxConnectionWriteTimeout
	cfg.MaxStreamWindowSize = muxMaxStreamWindowSize
	cfg.StreamOpenTimeout = muxStreamOpenTimeout
	cfg.LogOutput = io.Discard
	return cfg
}
