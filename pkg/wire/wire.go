// Package wire defines the low-level constants shared by every SeedLink
// wire implementation: protocol versions, packet signatures, control
// literals, and framing sizes. Nothing in this package is version
// specific; pkg/v3 and pkg/v4 build their codecs on top of it.
package wire

import "fmt"

// ProtocolVersion is a SeedLink protocol version (major.minor).
// Ordering is lexicographic on (Major, Minor).
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// DefaultServerVersion is the version a fresh v4 server negotiates with
// by default, before any SLPROTO downgrade.
var DefaultServerVersion = ProtocolVersion{Major: 4, Minor: 0}

// LegacyVersion is used when a peer advertises support for v3 only.
var LegacyVersion = ProtocolVersion{Major: 3, Minor: 0}

func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less reports whether v sorts strictly before o.
func (v ProtocolVersion) Less(o ProtocolVersion) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	return v.Minor < o.Minor
}

// Equal reports whether v and o name the same version.
func (v ProtocolVersion) Equal(o ProtocolVersion) bool {
	return v.Major == o.Major && v.Minor == o.Minor
}

// Packet signatures. v3 data packets begin with Sig3Data, v3 INFO
// packets with Sig3Info, and every v4 packet with Sig4. These are the
// only byte sequences the framed codecs sniff for phase pivots.
const (
	Sig3Data = "SL"
	Sig3Info = "SLINFO"
	Sig4     = "SE"
)

// Control line literals recognized in the v3 handshake phase, outside
// of any packet frame.
const (
	LineOK    = "OK"
	LineError = "ERROR"
	LineEnd   = "END"
)

// Packet3Size is the fixed total size, in bytes, of a v3 packet: an
// 8-byte header (2-byte signature + 6 bytes of sequence/flag data)
// followed by a 512-byte miniSEED record.
const (
	Packet3HeaderSize = 8
	Packet3RecordSize = 512
	Packet3Size       = Packet3HeaderSize + Packet3RecordSize
)

// DefaultPort is the default SeedLink TCP port for both protocol
// versions.
const DefaultPort = 18000

// MaxV4CommandLine is the maximum length, including the line
// terminator, of a v4 command line before the codec declares it too
// long and enters discard-and-resync.
const MaxV4CommandLine = 255
