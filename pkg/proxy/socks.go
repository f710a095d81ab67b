package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"mcveil/pkg/config"
	"mcveil/pkg/pipeio"
	"mcveil/pkg/socks"
)

// SOCKS is the local SOCKS5 proxy server. It accepts client connections
// and forwards CONNECT and UDP ASSOCIATE requests through the tunnel.
type SOCKS struct {
	ctx    context.Context
	cfg    Config
	tunnel Tunnel
	rules  Rules

	dial     config.TCPDialerFunc
	listener net.Listener
}

// NewSOCKS creates a SOCKS5 server listening on the configured address.
func NewSOCKS(ctx context.Context, cfg Config, tunnel Tunnel, rules Rules) (*SOCKS, error) {
	listenerFn := config.GetTCPListenerFunc(cfg.Deps)
	l, err := listenerFn("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen(tcp, %s): %s", cfg.ListenAddr, err)
	}

	cfg.Logger.Infow("SOCKS proxy listening", "addr", cfg.ListenAddr)

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	return &SOCKS{
		ctx:      ctx,
		cfg:      cfg,
		tunnel:   tunnel,
		rules:    rules,
		dial:     config.GetTCPDialerFunc(cfg.Deps),
		listener: l,
	}, nil
}

// Addr returns the listener address.
func (srv *SOCKS) Addr() net.Addr {
	return srv.listener.Addr()
}

// Close shuts the listener down; in-flight connections finish on their own.
func (srv *SOCKS) Close() error {
	return srv.listener.Close()
}

// Serve accepts SOCKS5 clients until the listener closes. It returns nil
// on a clean shutdown.
func (srv *SOCKS) Serve() error {
	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			if srv.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("Accept(): %s", err)
		}

		go func() {
			defer conn.Close()
			if err := srv.handle(conn); err != nil {
				srv.cfg.Logger.Debugw("SOCKS connection failed", "client", conn.RemoteAddr(), "err", err)
			}
		}()
	}
}

// handle runs one client through method selection, the request and the
// selected command.
func (srv *SOCKS) handle(conn net.Conn) error {
	// Bound the negotiation so a misbehaving client cannot hold the
	// handler forever.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := srv.handleMethodSelection(conn); err != nil {
		return fmt.Errorf("handling method selection: %s", err)
	}

	req, err := srv.handleRequest(conn)
	if err != nil {
		return fmt.Errorf("handling request: %s", err)
	}

	conn.SetReadDeadline(time.Time{})

	switch req.Cmd {
	case socks.CommandConnect:
		return srv.handleConnect(conn, req)
	case socks.CommandAssociate:
		return srv.handleAssociate(conn)
	default:
		return fmt.Errorf("unexpected SOCKS command %v: this is a bug", req.Cmd)
	}
}

// handleMethodSelection accepts only clients requesting no authentication.
func (srv *SOCKS) handleMethodSelection(conn net.Conn) error {
	msr, err := socks.ReadMethodSelectionRequest(conn)
	if err != nil {
		return fmt.Errorf("reading method selection request: %s", err)
	}

	if !msr.IsNoAuthRequested() {
		if err := socks.WriteMethodSelectionResponse(conn, socks.MethodNoAcceptableMethods); err != nil {
			return fmt.Errorf("writing NoAcceptableMethods response: %s", err)
		}

		return fmt.Errorf("requested methods (%+v) did not include %d (NoAuthenticationRequired) but that is all we support", msr.Methods, socks.MethodNoAuthenticationRequired)
	}

	if err := socks.WriteMethodSelectionResponse(conn, socks.MethodNoAuthenticationRequired); err != nil {
		return fmt.Errorf("writing NoAuthenticationRequired response: %s", err)
	}

	return nil
}

// handleRequest reads and validates the SOCKS5 request, answering errors
// with the matching reply code.
func (srv *SOCKS) handleRequest(conn net.Conn) (*socks.Request, error) {
	req, err := socks.ReadRequest(conn)
	if err != nil {
		rep := socks.ReplyGeneralFailure
		if errors.Is(err, socks.ErrCommandNotSupported) {
			rep = socks.ReplyCommandNotSupported
		} else if errors.Is(err, socks.ErrAddressTypeNotSupported) {
			rep = socks.ReplyAddressTypeNotSupported
		}

		if err := socks.WriteReplyError(conn, rep); err != nil {
			return nil, fmt.Errorf("writing Reply error response: %s", err)
		}

		return nil, fmt.Errorf("reading SocksRequest: %s", err)
	}

	return req, nil
}

// handleConnect relays a TCP connection, either directly for bypassed
// destinations or through a tunnel stream.
func (srv *SOCKS) handleConnect(conn net.Conn, req *socks.Request) error {
	dest := req.Dest()

	if shouldBypass(srv.rules, req.DstAddr.String()) {
		srv.cfg.Logger.Debugw("bypassing tunnel", "dest", dest)
		return srv.connectDirect(conn, dest)
	}

	stream, err := srv.tunnel.OpenStream(dest)
	if err != nil {
		if werr := socks.WriteReplyError(conn, socks.ReplyGeneralFailure); werr != nil {
			return fmt.Errorf("writing Reply error response: %s", werr)
		}
		return fmt.Errorf("opening stream to %s: %s", dest, err)
	}
	defer stream.Close()

	if err := socks.WriteReplySuccess(conn, nil); err != nil {
		return fmt.Errorf("socks.WriteReplySuccess(): %s", err)
	}

	pipeio.Pipe(conn, stream, func(err error) {
		srv.cfg.Logger.Debugw("relay error", "dest", dest, "err", err)
	})

	return nil
}

// connectDirect dials the destination on the local network, skipping the
// tunnel entirely.
func (srv *SOCKS) connectDirect(conn net.Conn, dest string) error {
	direct, err := srv.dial("tcp", dest, directDialTimeout)
	if err != nil {
		if werr := socks.WriteReplyError(conn, socks.ReplyHostUnreachable); werr != nil {
			return fmt.Errorf("writing Reply error response: %s", werr)
		}
		return fmt.Errorf("direct dial %s: %s", dest, err)
	}
	defer direct.Close()

	if err := socks.WriteReplySuccess(conn, nil); err != nil {
		return fmt.Errorf("socks.WriteReplySuccess(): %s", err)
	}

	pipeio.Pipe(conn, direct, func(err error) {
		srv.cfg.Logger.Debugw("direct relay error", "dest", dest, "err", err)
	})

	return nil
}
