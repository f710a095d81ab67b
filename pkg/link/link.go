// Package link encodes and decodes mcveil connection links of the form
// mw://PASSWORD@HOST:PORT#NAME. The password travels URL-encoded in the
// userinfo part; the fragment carries the display name.
package link

import (
	"fmt"
	"net/url"
)

// Scheme is the connection-link URL scheme.
const Scheme = "mw"

// Connection is a decoded connection link.
type Connection struct {
	Name     string `json:"name"`
	Server   string `json:"server"`
	Password string `json:"password"`
}

// Parse decodes a connection link. Errors are returned as values and never
// panic; callers render them into the `{error: ...}` envelope.
func Parse(link string) (*Connection, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parsing link: %s", err)
	}

	if u.Scheme != Scheme {
		return nil, fmt.Errorf("invalid scheme %q, must be %s://", u.Scheme, Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("link has no server address")
	}

	return &Connection{
		Name:     u.Fragment,
		Server:   u.Host,
		Password: u.User.Username(),
	}, nil
}

// Build encodes a connection link for the given parameters. Build and
// Parse round-trip for printable names, servers and passwords.
func Build(name, server, password string) string {
	u := url.URL{
		Scheme:   Scheme,
		User:     url.User(password),
		Host:     server,
		Fragment: name,
	}
	return u.String()
}
