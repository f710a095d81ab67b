package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"mcveil/pkg/config"
	"mcveil/pkg/masquerade"

	"go.uber.org/zap"
)

func testConfig(dialer config.TCPDialerFunc) *config.Config {
	return &config.Config{
		LocalPort: ":1080",
		Server:    "mc.example.com:25565",
		Password:  "hunter2",
		ProxyType: config.ProxySOCKS5,
		Deps:      &config.Dependencies{TCPDialer: dialer},
	}
}

// waitForSession polls until the supervisor publishes a session.
func waitForSession(t *testing.T, s *Supervisor) *Session {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sess := s.Current(); sess != nil {
			return sess
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("supervisor did not publish a session in time")
	return nil
}

func TestSupervisor_EstablishAndEcho(t *testing.T) {
	t.Parallel()

	dialer := func(network, address string, timeout time.Duration) (net.Conn, error) {
		client, server := net.Pipe()
		startFakeTunnelServer(t, server, "hunter2")
		return client, nil
	}

	cfg := testConfig(dialer)
	sup := NewSupervisor(cfg, zap.NewNop().Sugar(), &masquerade.Counters{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)
	defer sup.Close()

	sess := waitForSession(t, sup)
	if sess.ID == "" {
		t.Error("session has no id")
	}
	if sess.IsClosed() {
		t.Fatal("fresh session reports closed")
	}

	stream, err := sess.OpenStream("example.com:80")
	if err != nil {
		t.Fatalf("OpenStream(): %s", err)
	}
	defer stream.Close()

	msg := []byte("ping through the tunnel")
	if _, err := stream.Write(msg); err != nil {
		t.Fatalf("stream.Write(): %s", err)
	}

	stream.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, len(msg))
	if _, err := io.ReadFull(stream, buf); err != nil {
		t.Fatalf("reading echo: %s", err)
	}
	if !bytes.Equal(buf, msg) {
		t.Errorf("echo = %q, want %q", buf, msg)
	}
}

func TestSupervisor_DialFailureKeepsRetrying(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	dialer := func(network, address string, timeout time.Duration) (net.Conn, error) {
		attempts.Add(1)
		return nil, errors.New("connection refused")
	}

	cfg := testConfig(dialer)
	sup := NewSupervisor(cfg, zap.NewNop().Sugar(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && attempts.Load() < 2 {
		time.Sleep(50 * time.Millisecond)
	}

	if attempts.Load() < 2 {
		t.Errorf("dial attempted %d times, want at least 2", attempts.Load())
	}
	if sup.Current() != nil {
		t.Error("Current() is non-nil although every dial failed")
	}
}

func TestSupervisor_CloseTearsDownSession(t *testing.T) {
	t.Parallel()

	dialer := func(network, address string, timeout time.Duration) (net.Conn, error) {
		client, server := net.Pipe()
		startFakeTunnelServer(t, server, "hunter2")
		return client, nil
	}

	cfg := testConfig(dialer)
	sup := NewSupervisor(cfg, zap.NewNop().Sugar(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go sup.Run(ctx)

	sess := waitForSession(t, sup)

	cancel()
	sup.Close()

	if sup.Current() != nil {
		t.Error("Current() is non-nil after Close()")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !sess.IsClosed() {
		time.Sleep(10 * time.Millisecond)
	}
	if !sess.IsClosed() {
		t.Error("session still open after Close()")
	}
}
