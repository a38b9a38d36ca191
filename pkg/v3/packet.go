package v3

import (
	"encoding/hex"
	"fmt"

	"github.com/damb/slink/pkg/wire"
)

// GenericDataPacket is a typed view over a raw 520-byte v3 data
// packet: 2-byte "SL" signature, 6 ASCII hex digits encoding the
// sequence number, and a 512-byte miniSEED record.
type GenericDataPacket struct {
	Raw [wire.Packet3Size]byte
}

// NewGenericDataPacket validates and wraps a raw packet buffer.
func NewGenericDataPacket(raw []byte) (GenericDataPacket, error) {
	var p GenericDataPacket
	if len(raw) != wire.Packet3Size {
		return p, fmt.Errorf("v3 packet must be %d bytes, got %d", wire.Packet3Size, len(raw))
	}
	copy(p.Raw[:], raw)
	return p, nil
}

// Sequence decodes the 6 ASCII hex digit sequence number.
func (p GenericDataPacket) Sequence() (uint32, error) {
	b, err := hex.DecodeString(string(p.Raw[2:8]))
	if err != nil {
		return 0, fmt.Errorf("bad v3 sequence field: %w", err)
	}
	var n uint32
	for _, c := range b {
		n = n<<8 | uint32(c)
	}
	return n, nil
}

// Record returns the 512-byte miniSEED record payload.
func (p GenericDataPacket) Record() []byte {
	return p.Raw[wire.Packet3HeaderSize:]
}

// InfoPacket is a typed view over a raw 520-byte v3 INFO packet: the
// "SLINFO" signature, two further header bytes (the second of which
// is the continuation flag), and a 512-byte miniSEED log-channel
// record carrying an XML fragment.
type InfoPacket struct {
	Raw [wire.Packet3Size]byte
}

// NewInfoPacket validates and wraps a raw packet buffer.
func NewInfoPacket(raw []byte) (InfoPacket, error) {
	var p InfoPacket
	if len(raw) != wire.Packet3Size {
		return p, fmt.Errorf("v3 packet must be %d bytes, got %d", wire.Packet3Size, len(raw))
	}
	copy(p.Raw[:], raw)
	return p, nil
}

// More reports whether this is a non-terminal fragment of a chunked
// INFO response (8th header byte == '*').
func (p InfoPacket) More() bool {
	return p.Raw[wire.Packet3HeaderSize-1] == '*'
}

// Record returns the 512-byte miniSEED log-channel record, which
// carries the XML payload fragment.
func (p InfoPacket) Record() []byte {
	return p.Raw[wire.Packet3HeaderSize:]
}
