package v3

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/damb/slink/internal/ringbuf"
	"github.com/damb/slink/pkg/wire"
)

// State is the v3 client session's lifecycle state.
type State int

const (
	Initialized State = iota
	HandShakingState
	DataTransferState
	Closed
)

// ClientError is returned for operations attempted in an invalid
// session state or for other client-side protocol violations.
type ClientError struct {
	Message string
}

func (e *ClientError) Error() string { return e.Message }

func invalidState() error {
	return &ClientError{Message: "invalid connection state"}
}

// Mode selects the action command the negotiator issues once station
// selection completes.
type Mode int

const (
	RealTime Mode = iota
	DialUp
	TimeWindow
)

// StationConfig is one station's worth of stream-configuration input
// to Configure: the station/net pair and its SELECT selectors.
type StationConfig struct {
	Station   string
	Net       string
	Selectors []string
	Seq       *string // hex sequence number for DATA/FETCH
	Begin     *Time
	End       *Time
}

// ConfigureOptions bundles the whole per-station negotiation request.
type ConfigureOptions struct {
	Streams []StationConfig
	Mode    Mode
	Batch   bool
}

// LogDecoder decodes a v3 INFO packet's miniSEED log-channel record
// into its channel name and text payload. The miniSEED record format
// itself is an opaque external collaborator (spec.md §1); this
// interface lets a real decoder be substituted. PlainLogDecoder is a
// conservative default matching SEED's fixed-width channel-code
// convention.
type LogDecoder interface {
	DecodeLog(record []byte) (channel string, text string, err error)
}

// PlainLogDecoder treats the first 3 bytes of a log record as a
// space-padded channel code and the remainder, trimmed of trailing
// NUL padding, as the text payload.
type PlainLogDecoder struct{}

func (PlainLogDecoder) DecodeLog(record []byte) (string, string, error) {
	if len(record) < 3 {
		return "", "", fmt.Errorf("log record too short: %d bytes", len(record))
	}
	channel := strings.TrimSpace(string(record[:3]))
	text := string(bytes.TrimRight(record[3:], "\x00"))
	return channel, text, nil
}

// Session is a v3 client session: it wraps the framed codec over a
// connection and drives the HELLO preflight, station negotiation, and
// keepalive/INFO reassembly described in spec.md §4.4.
type Session struct {
	conn       io.ReadWriter
	br         *bufio.Reader
	decoder    *Decoder
	state      State
	logDecoder LogDecoder

	expectInfoResp bool

	ServerBanner string
	ServerDesc   string
	Version      wire.ProtocolVersion

	// Accepted is the set of station configs that were accepted
	// during the most recent Configure call.
	Accepted []StationConfig
}

// NewSession wraps conn (typically a net.Conn) in a fresh v3 session.
func NewSession(conn io.ReadWriter) *Session {
	return &Session{
		conn:       conn,
		br:         bufio.NewReader(conn),
		decoder:    NewDecoder(),
		state:      Initialized,
		logDecoder: PlainLogDecoder{},
	}
}

func (s *Session) writeLine(line string) error {
	_, err := io.WriteString(s.conn, line+"\r\n")
	return err
}

// readFrame pulls the next frame out of the decoder, reading more
// bytes from the connection as needed.
func (s *Session) readFrame() (Frame, error) {
	for {
		f, ok, err := s.decoder.Next(false)
		if err != nil {
			return Frame{}, err
		}
		if ok {
			return f, nil
		}
		buf := make([]byte, 4096)
		n, rerr := s.br.Read(buf)
		if n > 0 {
			s.decoder.Write(buf[:n])
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				f, ok, err := s.decoder.Next(true)
				if err != nil {
					return Frame{}, err
				}
				if ok {
					return f, nil
				}
				return Frame{}, io.EOF
			}
			return Frame{}, rerr
		}
	}
}

// SayHello performs the HELLO preflight: send "HELLO", read exactly
// two response lines, and parse the server's protocol version from
// the first.
func (s *Session) SayHello() error {
	if s.state != Initialized {
		return invalidState()
	}
	if err := s.writeLine("HELLO"); err != nil {
		return err
	}
	first, err := s.readLine()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(strings.ToLower(first), "seedlink") {
		return fmt.Errorf("%w: banner does not start with 'seedlink': %q", io.ErrUnexpectedEOF, first)
	}
	ver, err := parseBannerVersion(first)
	if err != nil {
		return err
	}
	second, err := s.readLine()
	if err != nil {
		return err
	}
	s.ServerBanner = first
	s.ServerDesc = second
	s.Version = ver
	log.WithFields(log.Fields{"banner": first, "version": ver}).Debug("v3 hello preflight complete")
	return nil
}

func (s *Session) readLine() (string, error) {
	f, err := s.readFrame()
	if err != nil {
		return "", err
	}
	if f.Kind != FrameLine {
		return "", fmt.Errorf("%w: expected line frame, got kind %d", io.ErrUnexpectedEOF, f.Kind)
	}
	return string(f.Line), nil
}

func parseBannerVersion(line string) (wire.ProtocolVersion, error) {
	idx := strings.LastIndex(line, " v")
	if idx < 0 {
		return wire.ProtocolVersion{}, fmt.Errorf("banner missing version suffix: %q", line)
	}
	verStr := line[idx+2:]
	var major, minor int
	if _, err := fmt.Sscanf(verStr, "%d.%d", &major, &minor); err != nil {
		return wire.ProtocolVersion{}, fmt.Errorf("banner has malformed version %q: %w", verStr, err)
	}
	return wire.ProtocolVersion{Major: uint8(major), Minor: uint8(minor)}, nil
}

func (s *Session) awaitOkOrError() (bool, error) {
	f, err := s.readFrame()
	if err != nil {
		return false, err
	}
	switch f.Kind {
	case FrameOk:
		return true, nil
	case FrameError:
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected OK/ERROR, got kind %d", io.ErrUnexpectedEOF, f.Kind)
	}
}

// Configure drives the per-station negotiator described in spec.md
// §4.4: STATION, then SELECT* (awaited unless batch mode), then a
// mode-derived action command, and finally END if any station was
// accepted.
func (s *Session) Configure(opts ConfigureOptions) error {
	if s.state != Initialized {
		return invalidState()
	}
	s.state = HandShakingState

	var accepted []StationConfig
	for _, st := range opts.Streams {
		if err := s.writeLine(Station{Code: st.Station, Net: st.Net}.Serialize()); err != nil {
			return err
		}
		ok := true
		if !opts.Batch {
			var err error
			ok, err = s.awaitOkOrError()
			if err != nil {
				return err
			}
		}
		if !ok {
			continue
		}
		for _, sel := range st.Selectors {
			if err := s.writeLine(Select{Pattern: sel}.Serialize()); err != nil {
				return err
			}
			if !opts.Batch {
				selOk, err := s.awaitOkOrError()
				if err != nil {
					return err
				}
				if !selOk {
					ok = false
					break
				}
			}
		}
		if ok {
			accepted = append(accepted, st)
		}
	}

	if len(accepted) == 0 {
		s.state = Initialized
		return nil
	}

	for _, st := range accepted {
		var action string
		switch opts.Mode {
		case RealTime:
			action = Data{Seq: st.Seq, When: st.Begin}.Serialize()
		case DialUp:
			action = Fetch{Seq: st.Seq, When: st.Begin}.Serialize()
		case TimeWindow:
			action = TimeCmd{Begin: st.Begin, End: st.End}.Serialize()
		}
		if err := s.writeLine(action); err != nil {
			return err
		}
		if !opts.Batch {
			if _, err := s.awaitOkOrError(); err != nil {
				return err
			}
		}
	}

	if err := s.writeLine(End{}.Serialize()); err != nil {
		return err
	}
	s.decoder.EnterDataTransfer()
	s.state = DataTransferState
	s.Accepted = accepted
	return nil
}

// RequestInfo issues "INFO <item>" as a keepalive/query. A second
// concurrent request before the first completes is rejected per
// spec.md §4.4.
func (s *Session) RequestInfo(item InfoItem) error {
	if s.expectInfoResp {
		return &ClientError{Message: "multiple concurrent info requests are not allowed"}
	}
	if err := s.writeLine(Info{Item: item}.Serialize()); err != nil {
		return err
	}
	s.expectInfoResp = true
	return nil
}

// ErrInfoUnsupported is returned when the server's INFO response
// carries the "ERR" channel, meaning the requested INFO level is not
// supported.
var ErrInfoUnsupported = errors.New("INFO level not supported")

// ReadInfoResponse reassembles a (possibly chunked) INFO response
// following a RequestInfo call, concatenating the decoded log payload
// of every fragment until a non-'*' continuation flag is seen.
func (s *Session) ReadInfoResponse() (string, error) {
	reassembly := ringbuf.New(wire.Packet3RecordSize)
	for {
		f, err := s.readFrame()
		if err != nil {
			return "", err
		}
		if f.Kind != FrameInfoPacket {
			return "", fmt.Errorf("%w: expected info packet, got kind %d", io.ErrUnexpectedEOF, f.Kind)
		}
		pkt, err := NewInfoPacket(f.Packet)
		if err != nil {
			return "", err
		}
		channel, text, err := s.logDecoder.DecodeLog(pkt.Record())
		if err != nil {
			return "", err
		}
		if channel == "ERR" {
			s.expectInfoResp = false
			return "", ErrInfoUnsupported
		}
		reassembly.Write([]byte(text))
		if !pkt.More() {
			break
		}
	}
	s.expectInfoResp = false
	return string(reassembly.ReadAll()), nil
}

// ExpectingInfoResponse reports whether an INFO request is currently
// outstanding.
func (s *Session) ExpectingInfoResponse() bool { return s.expectInfoResp }

// MarkInfoResponseComplete clears the outstanding-INFO-request flag.
// Callers driving NextFrame directly (rather than
// ReadInfoResponse/NextDataPacket) must call this once a non-'*'
// InfoPacket frame has been observed.
func (s *Session) MarkInfoResponseComplete() { s.expectInfoResp = false }

// TrySendKeepAlive issues an INFO ID request as a heartbeat, unless
// one is already outstanding.
func (s *Session) TrySendKeepAlive() error {
	if s.expectInfoResp {
		return nil
	}
	return s.RequestInfo(InfoID)
}

// NextFrame exposes the raw decoded frame stream in DataTransfer
// phase, for callers (pkg/client's packet stream) that need to
// surface INFO-packet keepalive responses as events rather than have
// them discarded transparently.
func (s *Session) NextFrame() (Frame, error) {
	if s.state != DataTransferState {
		return Frame{}, invalidState()
	}
	return s.readFrame()
}

// NextDataPacket reads the next generic data packet in DataTransfer
// phase, or reports session end when the server sends END. A
// keepalive's INFO response arriving between data packets is consumed
// and discarded transparently, clearing expectInfoResp.
func (s *Session) NextDataPacket() (GenericDataPacket, bool, error) {
	if s.state != DataTransferState {
		return GenericDataPacket{}, false, invalidState()
	}
	for {
		f, err := s.readFrame()
		if err != nil {
			return GenericDataPacket{}, false, err
		}
		switch f.Kind {
		case FrameGenericDataPacket:
			p, err := NewGenericDataPacket(f.Packet)
			return p, false, err
		case FrameInfoPacket:
			pkt, err := NewInfoPacket(f.Packet)
			if err != nil {
				return GenericDataPacket{}, false, err
			}
			if !pkt.More() {
				s.expectInfoResp = false
			}
			continue
		case FrameEnd:
			s.state = Closed
			return GenericDataPacket{}, true, nil
		default:
			return GenericDataPacket{}, false, fmt.Errorf("%w: unexpected frame kind %d in data phase", io.ErrUnexpectedEOF, f.Kind)
		}
	}
}

// Shutdown closes the session's lifecycle bookkeeping. The caller is
// responsible for closing the underlying connection.
func (s *Session) Shutdown() error {
	s.state = Closed
	return nil
}

// StateOf reports the session's current lifecycle state.
func (s *Session) StateOf() State { return s.state }
