package client

import (
	"net"
	"time"

	"github.com/damb/slink/pkg/v3"
)

// EventKind tags the variants a PacketStream yields.
type EventKind int

const (
	EventGenericData EventKind = iota
	EventInfo
)

// Event is one item produced by a PacketStream: a raw v3 generic data
// packet or a raw v3 INFO packet (spec.md §4.7's "V3(GenericData(…))"
// / "V3(Info(…))" variants).
type Event struct {
	Kind EventKind
	Data v3.GenericDataPacket
	Info v3.InfoPacket
}

// PacketStream is a lazy, restartable-per-connection iterator over a
// Conn's DataTransfer phase: each Next call blocks for the next frame,
// internally racing a keepalive timer against the read when enabled.
type PacketStream struct {
	conn              *Conn
	keepaliveInterval time.Duration
	done              bool
}

// NewPacketStream wraps conn's session for data-phase iteration.
// keepaliveInterval of zero disables keepalive interleaving.
func (c *Conn) NewPacketStream(keepaliveInterval time.Duration) *PacketStream {
	return &PacketStream{conn: c, keepaliveInterval: keepaliveInterval}
}

// Next blocks until the next event, the stream ends (ok=false), or an
// error occurs. Calling Next after the stream has ended (End frame
// observed) always returns ok=false, err=nil.
func (s *PacketStream) Next() (ev Event, ok bool, err error) {
	if s.done {
		return Event{}, false, nil
	}

	for {
		if s.keepaliveInterval > 0 {
			s.conn.netConn.SetReadDeadline(time.Now().Add(s.keepaliveInterval))
		}

		f, err := s.conn.session.NextFrame()
		if err != nil {
			if s.keepaliveInterval > 0 && isTimeout(err) {
				if !s.conn.session.ExpectingInfoResponse() {
					if kerr := s.conn.session.TrySendKeepAlive(); kerr != nil {
						return Event{}, false, kerr
					}
				}
				continue
			}
			return Event{}, false, err
		}

		switch f.Kind {
		case v3.FrameGenericDataPacket:
			p, perr := v3.NewGenericDataPacket(f.Packet)
			if perr != nil {
				return Event{}, false, perr
			}
			s.conn.netConn.SetReadDeadline(time.Time{})
			return Event{Kind: EventGenericData, Data: p}, true, nil

		case v3.FrameInfoPacket:
			p, perr := v3.NewInfoPacket(f.Packet)
			if perr != nil {
				return Event{}, false, perr
			}
			if !p.More() {
				s.conn.session.MarkInfoResponseComplete()
			}
			s.conn.netConn.SetReadDeadline(time.Time{})
			return Event{Kind: EventInfo, Info: p}, true, nil

		case v3.FrameEnd:
			s.done = true
			s.conn.netConn.SetReadDeadline(time.Time{})
			return Event{}, false, nil

		default:
			return Event{}, false, newError(InvalidData, "unexpected frame kind %d in data phase", f.Kind)
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
