package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mcveil/pkg/config"
	"mcveil/pkg/crypto"
	"mcveil/pkg/masquerade"

	"github.com/google/uuid"
	"github.com/hashicorp/yamux"
	"go.uber.org/zap"
)

const (
	// reconnectInterval is the supervisor tick; failed dials retry on the
	// next tick, with no further back-off.
	reconnectInterval = 3 * time.Second

	dialTimeout = 10 * time.Second
)

// Supervisor keeps at most one live Session published as current,
// rebuilding it whenever it dies.
type Supervisor struct {
	server   string
	password string
	logger   *zap.SugaredLogger
	counters *masquerade.Counters
	dial     config.TCPDialerFunc

	mu      sync.Mutex
	current *Session
}

// NewSupervisor creates a supervisor for the given server and password.
// counters may be nil.
func NewSupervisor(cfg *config.Config, logger *zap.SugaredLogger, counters *masquerade.Counters) *Supervisor {
	return &Supervisor{
		server:   cfg.Server,
		password: cfg.Password,
		logger:   logger,
		counters: counters,
		dial:     config.GetTCPDialerFunc(cfg.Deps),
	}
}

// Run maintains the session until ctx is cancelled. Every tick it checks
// the current session and rebuilds it if missing or dead. Connect failures
// are logged and retried on the next tick.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(reconnectInterval)
	defer ticker.Stop()

	for {
		s.maintain(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// maintain rebuilds the session if needed. The mutex only covers nil-ing a
// dead session and publishing a fresh one; the dial itself runs unlocked so
// proxy handlers snapshotting current are never blocked behind it.
func (s *Supervisor) maintain(ctx context.Context) {
	s.mu.Lock()
	if s.current != nil && !s.current.IsClosed() {
		s.mu.Unlock()
		return
	}
	if s.current != nil {
		s.logger.Infow("session died", "id", s.current.ID)
		s.current.Close()
		s.current = nil
	}
	s.mu.Unlock()

	sess, err := s.establish(ctx)
	if err != nil {
		s.logger.Debugw("connect failed", "server", s.server, "err", err)
		return
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Infow("session established", "id", sess.ID)
}

// Current snapshots the current session; callers use the returned pointer
// without holding any lock. Returns nil when no session is up.
func (s *Supervisor) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close tears down the current session, if any.
func (s *Supervisor) Close() {
	s.mu.Lock()
	sess := s.current
	s.current = nil
	s.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
}

// establish dials the server, performs the masquerade login and starts the
// multiplexer and noise goroutine.
func (s *Supervisor) establish(ctx context.Context) (*Session, error) {
	conn, err := s.dial("tcp", s.server, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %s", s.server, err)
	}

	reader, err := masquerade.Login(conn, s.password)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("masquerade.Login(): %s", err)
	}

	aead, err := crypto.NewAEAD(s.password)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("crypto.NewAEAD(): %s", err)
	}

	mc := masquerade.NewConn(conn, reader, aead, s.logger, s.counters)

	noiseCtx, cancelNoise := context.WithCancel(ctx)
	go masquerade.RunNoise(noiseCtx, mc)

	mux, err := yamux.Client(mc, muxConfig())
	if err != nil {
		cancelNoise()
		mc.Close()
		return nil, fmt.Errorf("yamux.Client(): %s", err)
	}

	sess := &Session{
		ID:          uuid.NewString()[:8],
		conn:        mc,
		mux:         mux,
		cancelNoise: cancelNoise,
	}

	if ctx.Err() != nil {
		sess.Close()
		return nil, ctx.Err()
	}

	return sess, nil
}
