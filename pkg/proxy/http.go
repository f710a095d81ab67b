package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"mcveil/pkg/config"
	"mcveil/pkg/pipeio"
)

// HTTP is the local HTTP CONNECT proxy server. Only the CONNECT verb is
// accepted; everything else gets a 405.
type HTTP struct {
	cfg    Config
	tunnel Tunnel
	rules  Rules

	dial     config.TCPDialerFunc
	listener net.Listener
	srv      *http.Server
}

// NewHTTP creates an HTTP CONNECT server listening on the configured address.
func NewHTTP(ctx context.Context, cfg Config, tunnel Tunnel, rules Rules) (*HTTP, error) {
	listenerFn := config.GetTCPListenerFunc(cfg.Deps)
	l, err := listenerFn("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %s", cfg.ListenAddr, err)
	}

	cfg.Logger.Infow("HTTP CONNECT proxy listening", "addr", cfg.ListenAddr)

	h := &HTTP{
		cfg:      cfg,
		tunnel:   tunnel,
		rules:    rules,
		dial:     config.GetTCPDialerFunc(cfg.Deps),
		listener: l,
	}
	h.srv = &http.Server{Handler: http.HandlerFunc(h.handle)}

	go func() {
		<-ctx.Done()
		h.srv.Close()
	}()

	return h, nil
}

// Addr returns the listener address.
func (h *HTTP) Addr() net.Addr {
	return h.listener.Addr()
}

// Serve runs the HTTP server on the listener. It returns nil on a clean
// shutdown.
func (h *HTTP) Serve() error {
	if err := h.srv.Serve(h.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return fmt.Errorf("srv.Serve(): %s", err)
	}
	return nil
}

// Close shuts the server and its listener down.
func (h *HTTP) Close() error {
	return h.srv.Close()
}

// handle hijacks CONNECT requests and relays them like a SOCKS CONNECT.
func (h *HTTP) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodConnect {
		http.Error(w, "Only CONNECT method supported", http.StatusMethodNotAllowed)
		return
	}

	dest := r.Host

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "Hijacking not supported", http.StatusInternalServerError)
		return
	}
	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer clientConn.Close()

	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		return
	}

	host, _, err := net.SplitHostPort(dest)
	if err != nil {
		host = dest
	}

	var remote net.Conn
	if shouldBypass(h.rules, host) {
		h.cfg.Logger.Debugw("bypassing tunnel", "dest", dest)
		remote, err = h.dial("tcp", dest, directDialTimeout)
	} else {
		remote, err = h.tunnel.OpenStream(dest)
	}
	if err != nil {
		h.cfg.Logger.Debugw("CONNECT failed", "dest", dest, "err", err)
		return
	}
	defer remote.Close()

	pipeio.Pipe(clientConn, remote, func(err error) {
		h.cfg.Logger.Debugw("relay error", "dest", dest, "err", err)
	})
}
