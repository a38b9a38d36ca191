package client

import (
	"bufio"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/damb/slink/pkg/v3"
	"github.com/damb/slink/pkg/wire"
)

// AvailableClientProtoVersions lists every major protocol version this
// library's client side actually implements, highest preference last
// intersection winner picked as the highest mutually supported value
// (spec.md §4.7). Only v3 client support exists today.
var AvailableClientProtoVersions = []uint8{3}

// Conn is a negotiated SeedLink client connection: the raw TCP socket
// plus the v3 session built on top of it once the preflight has picked
// a mutually supported major version.
type Conn struct {
	netConn net.Conn
	session *v3.Session
	version wire.ProtocolVersion
}

// DialOptions configures Dial. Timeout of zero means no connect
// timeout. KeepaliveEnabled and KeepaliveInterval are only checked by
// Dial, which panics when KeepaliveEnabled is set with a zero
// KeepaliveInterval (a zero duration on an explicitly enabled
// keepalive is a programmer error). Neither is stored on the Conn: a
// PacketStream's keepalive interval is the argument passed to
// NewPacketStream.
type DialOptions struct {
	Timeout           time.Duration
	KeepaliveEnabled  bool
	KeepaliveInterval time.Duration
	PinVersion        uint8 // 0 means "no pin", honor the endpoint's scheme only
}

var slprotoToken = regexp.MustCompile(`SLPROTO:(\d+)\.(\d+)`)
var bannerVersion = regexp.MustCompile(`v(\d+)\.(\d+)`)

// Dial connects to a slink:// or slinkv3:// endpoint, performs the
// HELLO preflight, negotiates a protocol version, and returns a ready
// Conn.
func Dial(rawurl string, opts DialOptions) (*Conn, error) {
	ep, err := ParseEndpoint(rawurl)
	if err != nil {
		return nil, err
	}
	if opts.KeepaliveEnabled && opts.KeepaliveInterval == 0 {
		panic("client: KeepaliveInterval must be nonzero when KeepaliveEnabled is set")
	}

	dialer := net.Dialer{Timeout: opts.Timeout}
	netConn, err := dialer.Dial("tcp", ep.Addr())
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, fmt.Errorf("connection timeout: %w", err)
		}
		return nil, err
	}

	banner, desc, advertised, err := preflight(netConn)
	if err != nil {
		netConn.Close()
		return nil, err
	}

	wantMajors := AvailableClientProtoVersions
	if ep.ForceV3 || opts.PinVersion != 0 {
		pin := uint8(3)
		if opts.PinVersion != 0 {
			pin = opts.PinVersion
		}
		wantMajors = []uint8{pin}
	}

	chosen, err := pickVersion(advertised, wantMajors)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	if chosen != 3 {
		netConn.Close()
		return nil, newError(InvalidProtocolVersion, "server negotiated unsupported major version %d; only v3 client support is implemented", chosen)
	}

	session := v3.NewSession(netConn)
	session.ServerBanner = banner
	session.ServerDesc = desc
	session.Version = wire.ProtocolVersion{Major: chosen, Minor: 0}

	log.WithFields(log.Fields{"addr": ep.Addr(), "version": chosen}).Info("client connected")
	return &Conn{netConn: netConn, session: session, version: session.Version}, nil
}

// preflight sends a raw "HELLO\r\n" and reads exactly two response
// lines, returning the banner, the data-center description, and the
// set of major protocol versions the banner advertises (its own "vM.m"
// prefix plus any "SLPROTO:M.m" tokens).
func preflight(conn net.Conn) (banner, desc string, majors map[uint8]bool, err error) {
	if _, err = conn.Write([]byte("HELLO\r\n")); err != nil {
		return "", "", nil, err
	}
	r := bufio.NewReader(conn)
	banner, err = readCRLFLine(r)
	if err != nil {
		return "", "", nil, err
	}
	if !strings.HasPrefix(strings.ToLower(banner), "seedlink") {
		return "", "", nil, newError(InvalidProtocolVersion, "banner does not start with 'seedlink': %q", banner)
	}
	desc, err = readCRLFLine(r)
	if err != nil {
		return "", "", nil, err
	}

	majors = map[uint8]bool{}
	if m := bannerVersion.FindStringSubmatch(banner); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			majors[uint8(n)] = true
		}
	}
	for _, m := range slprotoToken.FindAllStringSubmatch(banner, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			majors[uint8(n)] = true
		}
	}
	if len(majors) == 0 {
		return "", "", nil, newError(InvalidProtocolVersion, "banner advertises no parseable version: %q", banner)
	}
	return banner, desc, majors, nil
}

func readCRLFLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// pickVersion intersects advertised with available and returns the
// highest value in the intersection.
func pickVersion(advertised map[uint8]bool, available []uint8) (uint8, error) {
	var best uint8
	found := false
	for _, v := range available {
		if advertised[v] && (!found || v > best) {
			best = v
			found = true
		}
	}
	if !found {
		return 0, newError(InvalidProtocolVersion, "no mutually supported protocol version")
	}
	return best, nil
}

// Session returns the underlying v3 client session for station
// negotiation (Configure, RequestInfo, NextDataPacket, ...).
func (c *Conn) Session() *v3.Session { return c.session }

// Version reports the negotiated protocol version.
func (c *Conn) Version() wire.ProtocolVersion { return c.version }

// Close tears down the underlying TCP connection.
func (c *Conn) Close() error { return c.netConn.Close() }
