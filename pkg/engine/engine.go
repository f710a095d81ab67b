// Package engine is the control surface of the tunnel: one Engine value
// owns the whole stack (supervisor, local proxy, split-tunnel rules,
// traffic counters) and serializes lifecycle transitions through a small
// state machine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"mcveil/pkg/config"
	"mcveil/pkg/masquerade"
	"mcveil/pkg/proxy"
	"mcveil/pkg/session"
	"mcveil/pkg/splitunnel"

	"go.uber.org/zap"
)

// State is the engine lifecycle state.
type State int

// The engine moves Stopped -> Starting -> Running -> Stopping -> Stopped.
const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ErrAlreadyRunning is returned by Start when the engine is not stopped.
var ErrAlreadyRunning = errors.New("already running")

// ErrNoSession is returned when a stream is requested but no tunnel
// session is currently established.
var ErrNoSession = errors.New("no tunnel session")

const pingTimeout = 5 * time.Second

// Engine owns one tunnel. The zero value is not usable; construct with New.
//
// Lock order: serverMu before the supervisor's session mutex, never the
// reverse. Resource closes always happen outside serverMu.
type Engine struct {
	logger *zap.SugaredLogger
	deps   *config.Dependencies

	rules    *splitunnel.Matcher
	counters masquerade.Counters

	serverMu sync.Mutex
	state    State
	cancel   context.CancelFunc
	sup      *session.Supervisor
	socksSrv *proxy.SOCKS
	httpSrv  *proxy.HTTP
}

// Option customizes a new Engine.
type Option func(*Engine)

// WithDependencies injects network dependencies, used in tests.
func WithDependencies(deps *config.Dependencies) Option {
	return func(e *Engine) {
		e.deps = deps
	}
}

// New creates a stopped Engine logging through logger.
func New(logger *zap.SugaredLogger, opts ...Option) *Engine {
	e := &Engine{
		logger: logger,
		rules:  splitunnel.NewMatcher(logger),
		state:  StateStopped,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start brings the tunnel up: it validates the configuration, spawns the
// session supervisor and the selected local proxy, and returns as soon as
// the proxy is listening. The first dial to the server happens
// asynchronously; IsActive reports true from here on.
func (e *Engine) Start(localPort, server, password, proxyType string) error {
	e.serverMu.Lock()
	defer e.serverMu.Unlock()

	if e.state != StateStopped {
		return ErrAlreadyRunning
	}

	cfg := &config.Config{
		LocalPort: localPort,
		Server:    server,
		Password:  password,
		ProxyType: proxyType,
		Deps:      e.deps,
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	e.state = StateStarting

	// defensive: a residual session from a broken shutdown must not leak
	if e.sup != nil {
		e.sup.Close()
		e.sup = nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	e.counters.Reset()
	sup := session.NewSupervisor(cfg, e.logger, &e.counters)

	pcfg := proxy.Config{
		ListenAddr: cfg.ListenAddr(),
		Logger:     e.logger,
		Deps:       cfg.Deps,
	}

	var serve func() error
	switch proxyType {
	case config.ProxyHTTP:
		srv, err := proxy.NewHTTP(ctx, pcfg, e, e.rules)
		if err != nil {
			cancel()
			e.state = StateStopped
			return fmt.Errorf("starting HTTP proxy: %s", err)
		}
		e.httpSrv = srv
		serve = srv.Serve
	default:
		srv, err := proxy.NewSOCKS(ctx, pcfg, e, e.rules)
		if err != nil {
			cancel()
			e.state = StateStopped
			return fmt.Errorf("starting SOCKS proxy: %s", err)
		}
		e.socksSrv = srv
		serve = srv.Serve
	}

	e.cancel = cancel
	e.sup = sup
	e.state = StateRunning

	go sup.Run(ctx)
	go func() {
		if err := serve(); err != nil {
			e.logger.Errorw("proxy failed", "err", err)
			e.Stop()
		}
	}()

	e.logger.Infow("engine started", "server", server, "proxy", proxyType, "listen", cfg.ListenAddr())
	return nil
}

// Stop tears the tunnel down. It is a no-op unless the engine is running.
// Handles are captured and cleared under the lock, then closed outside it
// so callbacks re-entering the engine cannot deadlock. The session goes
// down last.
func (e *Engine) Stop() {
	e.serverMu.Lock()
	if e.state != StateRunning {
		e.serverMu.Unlock()
		return
	}
	e.state = StateStopping

	cancel := e.cancel
	e.cancel = nil
	socksSrv := e.socksSrv
	e.socksSrv = nil
	httpSrv := e.httpSrv
	e.httpSrv = nil
	sup := e.sup
	e.sup = nil

	e.serverMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if socksSrv != nil {
		socksSrv.Close()
	}
	if httpSrv != nil {
		httpSrv.Close()
	}
	if sup != nil {
		sup.Close()
	}

	e.serverMu.Lock()
	e.state = StateStopped
	e.serverMu.Unlock()

	e.logger.Infow("engine stopped")
}

// IsActive reports whether the engine is running.
func (e *Engine) IsActive() bool {
	e.serverMu.Lock()
	defer e.serverMu.Unlock()
	return e.state == StateRunning
}

// OpenStream opens a multiplexed stream to dest on the current session.
// It satisfies the proxy.Tunnel interface.
func (e *Engine) OpenStream(dest string) (net.Conn, error) {
	e.serverMu.Lock()
	sup := e.sup
	e.serverMu.Unlock()

	if sup == nil {
		return nil, ErrNoSession
	}

	sess := sup.Current()
	if sess == nil {
		return nil, ErrNoSession
	}

	return sess.OpenStream(dest)
}

// Ping measures TCP dial latency to the given server address in
// milliseconds, or -1 on error. It does not touch session state.
func (e *Engine) Ping(server string) int64 {
	dial := config.GetTCPDialerFunc(e.deps)

	start := time.Now()
	conn, err := dial("tcp", server, pingTimeout)
	if err != nil {
		return -1
	}
	conn.Close()
	return time.Since(start).Milliseconds()
}

// ServerStatus queries the server list status (MOTD, players, icon) and
// returns the raw status JSON.
func (e *Engine) ServerStatus(server string) (string, error) {
	dial := config.GetTCPDialerFunc(e.deps)

	conn, err := dial("tcp", server, pingTimeout)
	if err != nil {
		return "", fmt.Errorf("dialing %s: %s", server, err)
	}
	defer conn.Close()

	return masquerade.Status(conn, server)
}

// UpdateSplitRules replaces the split-tunnel rule set from a
// comma-separated list of file paths. Safe in any state.
func (e *Engine) UpdateSplitRules(paths string) {
	var list []string
	for _, p := range strings.Split(paths, ",") {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	e.rules.UpdateRules(list)
}

// TxBytes returns total plaintext bytes sent through the tunnel since the
// last Start.
func (e *Engine) TxBytes() int64 {
	return e.counters.Tx.Load()
}

// RxBytes returns total plaintext bytes received through the tunnel since
// the last Start.
func (e *Engine) RxBytes() int64 {
	return e.counters.Rx.Load()
}
