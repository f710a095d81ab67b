// Package proxy implements the local proxy servers that feed the tunnel:
// a SOCKS5 server with CONNECT and UDP ASSOCIATE, and an HTTP CONNECT
// server. Both consult the split-tunnel rules and either open a
// multiplexed stream to the remote end or dial the destination directly.
package proxy

import (
	"net"
	"time"

	"mcveil/pkg/config"

	"go.uber.org/zap"
)

// directDialTimeout bounds bypass dials to destinations outside the tunnel.
const directDialTimeout = 10 * time.Second

// Tunnel opens multiplexed streams to the remote end. The destination
// string is written onto the stream before it is handed back.
type Tunnel interface {
	OpenStream(dest string) (net.Conn, error)
}

// Rules answers whether an IP-literal destination bypasses the tunnel.
type Rules interface {
	ShouldBypass(ip string) bool
}

// Config carries what both proxy flavors need.
type Config struct {
	// ListenAddr is the local address to listen on.
	ListenAddr string

	Logger *zap.SugaredLogger
	Deps   *config.Dependencies
}

// shouldBypass reports whether host is an IP literal covered by the rules.
// Domain destinations are never bypassed; their resolution happens on the
// remote end.
func shouldBypass(rules Rules, host string) bool {
	if rules == nil {
		return false
	}
	if net.ParseIP(host) == nil {
		return false
	}
	return rules.ShouldBypass(host)
}
