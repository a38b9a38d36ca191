package v3

import (
	"bytes"
	"errors"
	"io"

	"github.com/damb/slink/pkg/wire"
)

// Phase is the v3 decoder's current framing mode.
type Phase int

const (
	// HandShaking is line-oriented: CR/LF/CRLF terminated commands and
	// control literals, with a pivot to a single InfoPacket frame when
	// the accumulated line matches the SLINFO signature.
	HandShaking Phase = iota
	// DataTransfer is packet-oriented: every frame is a fixed 520-byte
	// v3 packet (generic data or info), until END.
	DataTransfer
)

// FrameKind tags the decoded v3 frame variants.
type FrameKind int

const (
	FrameOk FrameKind = iota
	FrameError
	FrameEnd
	FrameLine
	FrameInfoPacket
	FrameGenericDataPacket
)

// Frame is one decoded v3 protocol unit.
type Frame struct {
	Kind FrameKind
	Line []byte // set for FrameLine
	// Packet holds the full Packet3Size payload for
	// FrameInfoPacket/FrameGenericDataPacket frames.
	Packet []byte
}

// ErrBrokenPipe is returned when the underlying stream ends in the
// middle of a packet; spec.md §4.2 names this the only hard decode
// error.
var ErrBrokenPipe = errors.New("broken pipe: eof mid packet")

// Decoder is a stateful, phase-aware v3 frame decoder. It is fed bytes
// via Write and frames are popped with Next; this decouples the
// decode logic from any particular transport so it can be driven
// directly by tests (per spec.md §8's codec laws) as well as by a
// live net.Conn.
type Decoder struct {
	phase Phase
	buf   bytes.Buffer
}

// NewDecoder creates a Decoder starting in HandShaking phase.
func NewDecoder() *Decoder {
	return &Decoder{phase: HandShaking}
}

// Phase reports the decoder's current phase.
func (d *Decoder) Phase() Phase { return d.phase }

// EnterDataTransfer switches the decoder to DataTransfer phase. Called
// by the session once the handshake completes (after issuing END).
func (d *Decoder) EnterDataTransfer() { d.phase = DataTransfer }

// Write feeds more bytes read from the transport into the decoder.
func (d *Decoder) Write(p []byte) (int, error) {
	return d.buf.Write(p)
}

// Next pops the next decodable frame, if any. ok is false when more
// data is needed; err is non-nil only for ErrBrokenPipe-class failures
// (the caller should treat that as EOF having arrived mid-frame).
func (d *Decoder) Next(eof bool) (frame Frame, ok bool, err error) {
	switch d.phase {
	case HandShaking:
		return d.nextHandshake(eof)
	default:
		return d.nextDataTransfer(eof)
	}
}

func (d *Decoder) nextHandshake(eof bool) (Frame, bool, error) {
	raw := d.buf.Bytes()

	// SLINFO pivot: as soon as the buffer begins with the 6-byte
	// signature, stop treating it as a line and wait for a full
	// 520-byte info packet instead.
	if len(raw) >= len(wire.Sig3Info) && bytes.HasPrefix(raw, []byte(wire.Sig3Info)) {
		if len(raw) < wire.Packet3Size {
			if eof {
				return Frame{}, false, ErrBrokenPipe
			}
			return Frame{}, false, nil
		}
		packet := make([]byte, wire.Packet3Size)
		copy(packet, raw[:wire.Packet3Size])
		d.buf.Next(wire.Packet3Size)
		return Frame{Kind: FrameInfoPacket, Packet: packet}, true, nil
	}

	idx := bytes.IndexByte(raw, '\n')
	if idx < 0 {
		if eof {
			if len(raw) == 0 {
				return Frame{}, false, io.EOF
			}
			return Frame{}, false, ErrBrokenPipe
		}
		return Frame{}, false, nil
	}
	line := raw[:idx]
	line = bytes.TrimSuffix(line, []byte("\r"))
	d.buf.Next(idx + 1)

	if len(line) == 0 {
		return d.nextHandshake(eof)
	}
	switch string(line) {
	case wire.LineOK:
		return Frame{Kind: FrameOk}, true, nil
	case wire.LineError:
		return Frame{Kind: FrameError}, true, nil
	case wire.LineEnd:
		return Frame{Kind: FrameEnd}, true, nil
	default:
		cp := make([]byte, len(line))
		copy(cp, line)
		return Frame{Kind: FrameLine, Line: cp}, true, nil
	}
}

func (d *Decoder) nextDataTransfer(eof bool) (Frame, bool, error) {
	raw := d.buf.Bytes()
	if len(raw) == 0 {
		if eof {
			return Frame{}, false, io.EOF
		}
		return Frame{}, false, nil
	}

	// END is the only token beginning with 'E'; unambiguous from the
	// first byte.
	if raw[0] == wire.LineEnd[0] {
		if len(raw) < len(wire.LineEnd) {
			if eof {
				return Frame{}, false, ErrBrokenPipe
			}
			return Frame{}, false, nil
		}
		if !bytes.HasPrefix(raw, []byte(wire.LineEnd)) {
			return Frame{}, false, ErrBrokenPipe
		}
		d.buf.Next(len(wire.LineEnd))
		return Frame{Kind: FrameEnd}, true, nil
	}

	// SL and SLINFO share a 2-byte prefix; wait for enough bytes to
	// tell them apart before committing to either packet kind.
	if len(raw) < len(wire.Sig3Info) {
		if bytes.HasPrefix([]byte(wire.Sig3Info), raw) {
			if eof {
				return Frame{}, false, ErrBrokenPipe
			}
			return Frame{}, false, nil
		}
		if eof {
			return Frame{}, false, ErrBrokenPipe
		}
		return Frame{}, false, nil
	}

	if bytes.HasPrefix(raw, []byte(wire.Sig3Info)) {
		if len(raw) < wire.Packet3Size {
			if eof {
				return Frame{}, false, ErrBrokenPipe
			}
			return Frame{}, false, nil
		}
		packet := make([]byte, wire.Packet3Size)
		copy(packet, raw[:wire.Packet3Size])
		d.buf.Next(wire.Packet3Size)
		return Frame{Kind: FrameInfoPacket, Packet: packet}, true, nil
	}

	if string(raw[:2]) == wire.Sig3Data {
		if len(raw) < wire.Packet3Size {
			if eof {
				return Frame{}, false, ErrBrokenPipe
			}
			return Frame{}, false, nil
		}
		packet := make([]byte, wire.Packet3Size)
		copy(packet, raw[:wire.Packet3Size])
		d.buf.Next(wire.Packet3Size)
		return Frame{Kind: FrameGenericDataPacket, Packet: packet}, true, nil
	}

	if eof {
		return Frame{}, false, ErrBrokenPipe
	}
	return Frame{}, false, nil
}
