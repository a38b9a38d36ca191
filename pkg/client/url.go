package client

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/damb/slink/pkg/wire"
)

// Endpoint is a parsed slink:// / slinkv3:// target: host, port,
// optional (percent-decoded) credentials, and whether the scheme
// pinned the connection to v3.
type Endpoint struct {
	Host     string
	Port     int
	User     string
	Password string
	HasUser  bool
	ForceV3  bool
}

// ParseEndpoint parses a SeedLink connection URL. Accepted schemes are
// "slink" (best mutually supported version) and "slinkv3" (forces
// v3). Username/password are percent-decoded but authentication
// hookup is intentionally unimplemented (spec.md §4.7).
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, newError(InvalidClientConfig, "malformed URL %q: %v", raw, err)
	}

	var forceV3 bool
	switch u.Scheme {
	case "slink":
		forceV3 = false
	case "slinkv3":
		forceV3 = true
	default:
		return Endpoint{}, newError(InvalidClientConfig, "unsupported scheme %q, want slink or slinkv3", u.Scheme)
	}

	if u.Hostname() == "" {
		return Endpoint{}, newError(InvalidClientConfig, "URL %q has no host", raw)
	}

	port := wire.DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, newError(InvalidClientConfig, "bad port %q: %v", p, err)
		}
	}

	ep := Endpoint{Host: u.Hostname(), Port: port, ForceV3: forceV3}
	if u.User != nil {
		ep.HasUser = true
		ep.User = u.User.Username()
		ep.Password, _ = u.User.Password()
	}
	return ep, nil
}

// Addr renders the endpoint's dial target as "host:port".
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}
