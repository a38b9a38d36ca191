package v4

import (
	"encoding/binary"
	"fmt"

	"github.com/damb/slink/pkg/wire"
)

// Packet is a typed view over a v4 binary packet, per the offset
// table in spec.md §4.3:
//
//	offset  size  field
//	 0       2    magic "SE"
//	 2       2    format code (ASCII, e.g. "2D","3D","JI","JE","X ")
//	 4       4    payload length u32 little-endian
//	 8       8    sequence number u64 little-endian
//	16       1    station-id length u8 (0 if none)
//	17      var   station-id ASCII bytes ("NET_STA")
//	...     var   payload
type Packet struct {
	Format    string // 2-byte ASCII format code
	Sequence  uint64
	StationID string // empty if none
	Payload   []byte
}

const (
	offMagic     = 0
	offFormat    = 2
	offLen       = 4
	offSeq       = 8
	offStaLen    = 16
	offStaIdBase = 17
)

// FormatJSONInfo and FormatJSONError are the format codes used for
// INFO responses (normal and error, respectively, per spec.md §4.3).
const (
	FormatJSONInfo  = "JI"
	FormatJSONError = "JE"
)

// Pack serializes p into its binary v4 wire form.
func Pack(p Packet) ([]byte, error) {
	if len(p.Format) != 2 {
		return nil, fmt.Errorf("format code must be exactly 2 bytes, got %q", p.Format)
	}
	if len(p.StationID) > 255 {
		return nil, fmt.Errorf("station id too long: %d bytes", len(p.StationID))
	}
	out := make([]byte, offStaIdBase+len(p.StationID)+len(p.Payload))
	copy(out[offMagic:], wire.Sig4)
	copy(out[offFormat:], p.Format)
	binary.LittleEndian.PutUint32(out[offLen:], uint32(len(p.Payload)))
	binary.LittleEndian.PutUint64(out[offSeq:], p.Sequence)
	out[offStaLen] = byte(len(p.StationID))
	copy(out[offStaIdBase:], p.StationID)
	copy(out[offStaIdBase+len(p.StationID):], p.Payload)
	return out, nil
}

// Parse deserializes a raw v4 packet buffer into a Packet.
func Parse(raw []byte) (Packet, error) {
	if len(raw) < offStaIdBase {
		return Packet{}, fmt.Errorf("v4 packet too short: %d bytes", len(raw))
	}
	if string(raw[offMagic:offMagic+2]) != wire.Sig4 {
		return Packet{}, fmt.Errorf("bad v4 magic: %q", raw[offMagic:offMagic+2])
	}
	format := string(raw[offFormat : offFormat+2])
	payloadLen := binary.LittleEndian.Uint32(raw[offLen:])
	seq := binary.LittleEndian.Uint64(raw[offSeq:])
	staLen := int(raw[offStaLen])
	staEnd := offStaIdBase + staLen
	if len(raw) < staEnd+int(payloadLen) {
		return Packet{}, fmt.Errorf("v4 packet truncated: need %d bytes, have %d", staEnd+int(payloadLen), len(raw))
	}
	station := string(raw[offStaIdBase:staEnd])
	payload := raw[staEnd : staEnd+int(payloadLen)]
	return Packet{Format: format, Sequence: seq, StationID: station, Payload: payload}, nil
}

// Record is an opaque miniSEED record handle: the SeedLink core
// treats the record body as raw bytes and only needs the station
// identity, format version, and subformat to build a v4 packet around
// it (spec.md §1: the miniSEED parser itself is an external
// collaborator).
type Record struct {
	Net       string
	Sta       string
	Version   int // 2 or 3
	SubFormat byte
	Raw       []byte
}

// PackMSRecord builds a v4 data packet around a miniSEED record with
// the given sequence number, deriving the format code from the
// record's version and subformat (e.g. version 2 + 'D' -> "2D").
func PackMSRecord(r Record, seq uint64) ([]byte, error) {
	if r.Version != 2 && r.Version != 3 {
		return nil, fmt.Errorf("unsupported miniSEED version %d", r.Version)
	}
	format := fmt.Sprintf("%d%c", r.Version, r.SubFormat)
	return Pack(Packet{
		Format:    format,
		Sequence:  seq,
		StationID: r.Net + "_" + r.Sta,
		Payload:   r.Raw,
	})
}
