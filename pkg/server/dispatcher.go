package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	"github.com/damb/slink/pkg/inventory"
	"github.com/damb/slink/pkg/v4"
	"github.com/damb/slink/pkg/wire"
	log "github.com/sirupsen/logrus"
)

// AvailableServerProtoVersions advertises every v4 minor revision this
// server speaks, newest first, in the HELLO banner's SLPROTO tokens.
var AvailableServerProtoVersions = []wire.ProtocolVersion{{Major: 4, Minor: 0}}

// Identity names the server in HELLO banners and INFO ID responses.
type Identity struct {
	Software     string // e.g. "slink (damb/slink)/1.0"
	Organization string // data-center description, second banner line
}

// clientState is the Dispatcher's per-client bookkeeping: its handle,
// the in-progress station negotiator (nil when none is open), the
// committed selection across all finished negotiations, and its
// streaming lifecycle.
type clientState struct {
	handle       *ClientHandle
	negotiator   *v4.Negotiator
	committed    *inventory.Select
	userAgents   []v4.AgentEntry
	streamCancel context.CancelFunc
}

// Dispatcher is the single main-loop task: it owns the application
// Backend and every client's negotiation state, processing messages
// from the shared toServer inbox strictly in arrival order (spec.md
// §4.5, §5).
type Dispatcher struct {
	backend  Backend
	identity Identity
	inbox    chan ToServer
	clients  map[ClientID]*clientState
}

// NewDispatcher constructs a Dispatcher. inbox must be the same
// channel passed to Listen so the accept loop and client actors can
// reach it.
func NewDispatcher(backend Backend, identity Identity, inbox chan ToServer) *Dispatcher {
	return &Dispatcher{
		backend:  backend,
		identity: identity,
		inbox:    inbox,
		clients:  make(map[ClientID]*clientState),
	}
}

// Run is the main loop: it drains the inbox until ctx is cancelled or
// a FatalError arrives.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-d.inbox:
			if fatal, done := d.handle(ctx, msg); done {
				return fatal
			}
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg ToServer) (error, bool) {
	switch m := msg.(type) {
	case NewClient:
		d.clients[m.ID] = &clientState{handle: m.Handle, committed: &inventory.Select{}}
		ClientsConnected.Inc()
		log.WithField("client_id", m.ID).Info("client connected")

	case DisconnectClient:
		if cs, ok := d.clients[m.ID]; ok {
			if cs.streamCancel != nil {
				cs.streamCancel()
			}
			delete(d.clients, m.ID)
			ClientsConnected.Dec()
		}
		DisconnectsTotal.WithLabelValues(m.Reason).Inc()

	case Command:
		d.handleCommand(ctx, m.ID, m.Cmd)

	case ErrorInfo:
		if cs, ok := d.clients[m.ID]; ok {
			payload, _ := json.Marshal(errorInfoBody{infoIDBody: d.idInfo(), Code: string(m.Err.Code), Message: m.Err.Message})
			_ = cs.handle.Send(Info{Payload: payload, IsError: true})
		}

	case FatalError:
		log.WithField("error", m.Err).Error("server accept loop failed fatally")
		return m.Err, true
	}
	return nil, false
}

type errorInfoBody struct {
	infoIDBody
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (d *Dispatcher) handleCommand(ctx context.Context, id ClientID, cmd v4.Command) {
	cs, ok := d.clients[id]
	if !ok {
		return
	}

	switch c := cmd.(type) {
	case v4.Hello:
		banner := d.banner()
		_ = cs.handle.Send(Hello{Banner: banner, Description: d.identity.Organization})

	case v4.Station:
		matched, err := d.matchStations(ctx, c.Pattern)
		if err != nil {
			_ = cs.handle.Send(Error{Err: v4.ErrGeneric("%v", err)})
			return
		}
		cs.negotiator = v4.NewNegotiator(matched)
		_ = cs.handle.Send(Ok{})

	case v4.Select:
		if cs.negotiator == nil {
			_ = cs.handle.Send(Error{Err: v4.ErrUnexpectedCommand("SELECT without a preceding STATION")})
			return
		}
		if err := cs.negotiator.OnSelect(c); err != nil {
			cs.negotiator = nil
			_ = cs.handle.Send(Error{Err: asProtocolError(err)})
			return
		}
		_ = cs.handle.Send(Ok{})

	case v4.Data:
		if cs.negotiator == nil {
			_ = cs.handle.Send(Error{Err: v4.ErrUnexpectedCommand("DATA without a preceding STATION")})
			return
		}
		if err := cs.negotiator.OnData(c); err != nil {
			cs.negotiator = nil
			_ = cs.handle.Send(Error{Err: asProtocolError(err)})
			return
		}
		cs.committed.Stations = append(cs.committed.Stations, cs.negotiator.Select.Stations...)
		cs.negotiator = nil
		_ = cs.handle.Send(Ok{})

	case v4.End:
		_ = cs.handle.Send(Ok{})
		d.startStreaming(ctx, id, cs, ModeRealTime)

	case v4.EndFetch:
		_ = cs.handle.Send(Ok{})
		d.startStreaming(ctx, id, cs, ModeDialUp)

	case v4.UserAgent:
		cs.userAgents = append(cs.userAgents, c.Agents...)
		_ = cs.handle.Send(Ok{})

	case v4.Auth:
		if err := d.backend.Authenticate(ctx, c.Kind, c.User, c.Password, c.Token); err != nil {
			_ = cs.handle.Send(Error{Err: v4.ErrAuthenticationFailed("%v", err)})
			return
		}
		_ = cs.handle.Send(Ok{})

	case v4.Info:
		d.handleInfo(ctx, cs, c)

	case v4.Bye:
		// reader goroutine already unwinds the connection.
	}
}

func asProtocolError(err error) *v4.ProtocolError {
	if perr, ok := err.(*v4.ProtocolError); ok {
		return perr
	}
	return v4.ErrGeneric("%v", err)
}

func (d *Dispatcher) banner() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SeedLink v%s (%s)", AvailableServerProtoVersions[0], d.identity.Software))
	sb.WriteString(" :: ")
	for _, v := range AvailableServerProtoVersions {
		sb.WriteString(fmt.Sprintf("SLPROTO:%s ", v))
	}
	return strings.TrimSpace(sb.String())
}

// idInfo builds the IdInfo pair every v4 INFO response carries: the
// software field matches the HELLO banner's first line exactly
// (spec.md §10.3).
func (d *Dispatcher) idInfo() infoIDBody {
	return infoIDBody{Software: d.banner(), Organization: d.identity.Organization}
}

func (d *Dispatcher) matchStations(ctx context.Context, pattern string) ([]inventory.Station, error) {
	return d.backend.InventoryStreams(ctx, pattern, "")
}

func (d *Dispatcher) startStreaming(ctx context.Context, id ClientID, cs *clientState, mode StreamMode) {
	if cs.streamCancel != nil {
		cs.streamCancel()
	}
	streamCtx, cancel := context.WithCancel(ctx)
	cs.streamCancel = cancel

	sel := cs.committed
	tx := make(chan PacketOrError, 16)
	go d.backend.Packets(streamCtx, sel, mode, tx)
	go forwardPackets(cs.handle, tx)
}

// forwardPackets relays a backend's packet stream onto the client's
// writer inbox until the backend closes tx.
func forwardPackets(handle *ClientHandle, tx <-chan PacketOrError) {
	for item := range tx {
		if item.Err != nil {
			_ = handle.Send(Error{Err: v4.ErrGeneric("%v", item.Err)})
			continue
		}
		if err := handle.Send(DataPacket{Raw: item.Packet}); err != nil {
			return
		}
	}
}

func (d *Dispatcher) handleInfo(ctx context.Context, cs *clientState, c v4.Info) {
	switch c.Item {
	case v4.InfoID:
		payload, _ := json.Marshal(d.idInfo())
		_ = cs.handle.Send(Info{Payload: payload})

	case v4.InfoFormats:
		payload, _ := json.Marshal(infoFormatsBody{infoIDBody: d.idInfo()})
		_ = cs.handle.Send(Info{Payload: payload})

	case v4.InfoCapabilities:
		caps := make([]string, len(AvailableServerProtoVersions))
		for i, v := range AvailableServerProtoVersions {
			caps[i] = "SLPROTO:" + v.String()
		}
		payload, _ := json.Marshal(infoCapabilitiesBody{infoIDBody: d.idInfo(), Capabilities: caps})
		_ = cs.handle.Send(Info{Payload: payload})

	case v4.InfoStations, v4.InfoStreams:
		stations, err := d.backend.InventoryStreams(ctx, c.StationPattern, c.StreamPattern)
		if err != nil {
			payload, _ := json.Marshal(errorInfoBody{infoIDBody: d.idInfo(), Code: string(v4.CodeGeneric), Message: err.Error()})
			_ = cs.handle.Send(Info{Payload: payload, IsError: true})
			return
		}
		payload, _ := json.Marshal(infoStationsBody{infoIDBody: d.idInfo(), Stations: renderStations(stations)})
		_ = cs.handle.Send(Info{Payload: payload})

	default:
		payload, _ := json.Marshal(infoStationsBody{infoIDBody: d.idInfo()})
		_ = cs.handle.Send(Info{Payload: payload})
	}
}

type infoIDBody struct {
	Software     string `json:"software"`
	Organization string `json:"organization"`
}

type infoFormatsBody struct {
	infoIDBody
}

type infoCapabilitiesBody struct {
	infoIDBody
	Capabilities []string `json:"capabilities"`
}

type streamBody struct {
	ID        string            `json:"id"`
	Format    string            `json:"format"`
	SubFormat string            `json:"subformat"`
	Filter    map[string]string `json:"filter,omitempty"`
}

type stationBody struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	StartSeq    uint64       `json:"start_seq"`
	EndSeq      uint64       `json:"end_seq"`
	Streams     []streamBody `json:"streams"`
}

type infoStationsBody struct {
	infoIDBody
	Stations []stationBody `json:"station,omitempty"`
}

func renderStations(stations []inventory.Station) []stationBody {
	out := make([]stationBody, 0, len(stations))
	for _, st := range stations {
		sb := stationBody{ID: st.ID.String(), Description: st.Description, StartSeq: st.StartSeq, EndSeq: st.EndSeq}
		for _, stream := range st.Streams {
			sb.Streams = append(sb.Streams, streamBody{
				ID:        stream.ID.String(),
				Format:    stream.Format.String(),
				SubFormat: stream.SubFormat.String(),
			})
		}
		out = append(out, sb)
	}
	return out
}

// Listen binds addr and serves on it until ctx is cancelled.
func Listen(ctx context.Context, addr string, backend Backend, identity Identity) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	defer ln.Close()
	return Serve(ctx, ln, backend, identity)
}

// Serve runs the Dispatcher's main loop and accepts connections off ln
// until ctx is cancelled, assigning each a fresh ClientID from an
// atomic counter (spec.md §4.5). The caller owns ln's lifecycle before
// Serve is called and after it returns.
func Serve(ctx context.Context, ln net.Listener, backend Backend, identity Identity) error {
	inbox := make(chan ToServer, serverInboxCap)
	dispatcher := NewDispatcher(backend, identity, inbox)

	errCh := make(chan error, 1)
	go func() { errCh <- dispatcher.Run(ctx) }()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var nextID atomic.Uint64
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return <-errCh
			default:
			}
			inbox <- FatalError{Err: err}
			return <-errCh
		}
		id := ClientID(nextID.Add(1))
		log.WithField("client_id", id).WithField("remote", conn.RemoteAddr()).Debug("accepted connection")
		go runClient(ctx, conn, id, inbox)
	}
}
