package v4

import (
	"bytes"
	"errors"

	"github.com/damb/slink/pkg/wire"
)

// ErrCommandLineTooLong is emitted once per oversized line; the codec
// then discards bytes until the next line ending before resuming
// normal decoding.
var ErrCommandLineTooLong = errors.New("command line too long")

// Decoder is a stateful v4 line decoder: CR, LF, or CRLF terminated
// lines, empty lines skipped, a MaxLine cap with discard-and-resync
// recovery, and version locking for SLPROTO.
type Decoder struct {
	buf       bytes.Buffer
	discard   bool
	version   wire.ProtocolVersion
	locked    bool
	MaxLine   int
}

// NewDecoder creates a Decoder starting at the given (pre-negotiation)
// protocol version.
func NewDecoder(version wire.ProtocolVersion) *Decoder {
	return &Decoder{version: version, MaxLine: wire.MaxV4CommandLine}
}

// Version reports the decoder's current protocol version.
func (d *Decoder) Version() wire.ProtocolVersion { return d.version }

// Locked reports whether the version has been locked by a non-SLPROTO
// command.
func (d *Decoder) Locked() bool { return d.locked }

// Lock freezes the protocol version; further SwitchVersion calls fail.
func (d *Decoder) Lock() { d.locked = true }

// SwitchVersion applies an SLPROTO version change. It fails if the
// version is already locked.
func (d *Decoder) SwitchVersion(v wire.ProtocolVersion) error {
	if d.locked {
		return ErrUnexpectedCommand("SLPROTO received after version lock")
	}
	d.version = v
	return nil
}

// Write feeds more bytes read from the transport into the decoder.
func (d *Decoder) Write(p []byte) (int, error) {
	return d.buf.Write(p)
}

// Next pops the next decoded line (without its terminator), if any.
// Returns ok=false when more data is needed. A too-long line surfaces
// as err=ErrCommandLineTooLong exactly once; subsequent calls resume
// normal decoding once the discarded line's terminator is found.
func (d *Decoder) Next(eof bool) (line []byte, ok bool, err error) {
	for {
		raw := d.buf.Bytes()
		idx, termLen := findLineEnd(raw)
		if idx < 0 {
			if d.discard {
				if len(raw) > 0 {
					d.buf.Next(len(raw))
				}
				if eof {
					return nil, false, nil
				}
				return nil, false, nil
			}
			if len(raw) >= d.MaxLine {
				d.discard = true
				d.buf.Next(len(raw))
				return nil, false, ErrCommandLineTooLong
			}
			return nil, false, nil
		}

		if d.discard {
			d.buf.Next(idx + termLen)
			d.discard = false
			continue
		}

		if idx+termLen > d.MaxLine {
			d.buf.Next(idx + termLen)
			return nil, false, ErrCommandLineTooLong
		}

		lineBytes := make([]byte, idx)
		copy(lineBytes, raw[:idx])
		d.buf.Next(idx + termLen)

		if len(lineBytes) == 0 {
			continue // empty lines are skipped
		}
		return lineBytes, true, nil
	}
}

// findLineEnd locates the first CR, LF, or CRLF terminator in raw,
// returning the index of its start and its length (1 or 2).
func findLineEnd(raw []byte) (idx int, termLen int) {
	for i, b := range raw {
		switch b {
		case '\n':
			return i, 1
		case '\r':
			if i+1 < len(raw) && raw[i+1] == '\n' {
				return i, 2
			}
			if i+1 < len(raw) {
				return i, 1
			}
			// '\r' at the very end: might be the start of a CRLF pair
			// whose '\n' hasn't arrived yet.
			return -1, 0
		}
	}
	return -1, 0
}
