package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/damb/slink/pkg/v4"
	"github.com/damb/slink/pkg/wire"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrBrokenPipe is returned by ClientHandle.Send when the client's
// writer inbox is saturated (spec.md §4.5: try-send, saturation is a
// fatal per-client condition).
var ErrBrokenPipe = errors.New("broken pipe: client writer inbox saturated")

// writerInboxCap and serverInboxCap are the bounded-channel capacities
// from spec.md §5's channel table.
const (
	writerInboxCap = 64
	serverInboxCap = 64
)

// keepaliveIdle and keepaliveInterval match spec.md §4.5's TCP
// keepalive parameters.
const (
	keepaliveIdle     = 60 * time.Second
	keepaliveInterval = 20 * time.Second
)

// ClientHandle is the Dispatcher's handle on one connected client: a
// try-send inbox feeding the writer actor, and a cancel func that tears
// down both reader and writer (spec.md §5's "ClientHandle::drop aborts
// the client's join handle").
type ClientHandle struct {
	ID     ClientID
	inbox  chan FromServer
	cancel context.CancelFunc
}

// Send enqueues msg on the client's writer inbox without blocking.
// If the inbox is full it aborts the client (as Close does) and
// returns ErrBrokenPipe.
func (h *ClientHandle) Send(msg FromServer) error {
	select {
	case h.inbox <- msg:
		return nil
	default:
		h.cancel()
		return ErrBrokenPipe
	}
}

// Close aborts the client's reader and writer goroutines.
func (h *ClientHandle) Close() { h.cancel() }

// runClient drives one accepted connection end to end: registers a
// ClientHandle with toServer, runs the reader and writer as a joined
// pair via errgroup, and reports the client's departure when both have
// exited.
func runClient(parent context.Context, conn net.Conn, id ClientID, toServer chan<- ToServer) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(keepaliveIdle)
	}

	ctx, cancel := context.WithCancel(parent)
	handle := &ClientHandle{ID: id, inbox: make(chan FromServer, writerInboxCap), cancel: cancel}

	toServer <- NewClient{ID: id, Handle: handle}

	internalErrs := make(chan *v4.ProtocolError, 16)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return readClient(gctx, conn, id, toServer, internalErrs) })
	g.Go(func() error { return writeClient(gctx, conn, handle.inbox, internalErrs) })

	reason := "eof"
	if err := g.Wait(); err != nil {
		reason = classifyDisconnect(err)
	}
	cancel()
	conn.Close()
	toServer <- DisconnectClient{ID: id, Reason: reason}
	log.WithField("client_id", id).WithField("reason", reason).Info("client disconnected")
}

func classifyDisconnect(err error) string {
	switch {
	case errors.Is(err, errBye):
		return "bye"
	case errors.Is(err, ErrBrokenPipe):
		return "broken_pipe"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "eof"
	default:
		return "fatal"
	}
}

// errBye is a sentinel used to unwind the reader goroutine cleanly
// when the client issues BYE.
var errBye = errors.New("client said bye")

// readClient runs the v4 codec over conn's read half, forwarding
// parsed commands to the Dispatcher and routing parse errors per
// spec.md §4.5.
func readClient(ctx context.Context, conn net.Conn, id ClientID, toServer chan<- ToServer, internalErrs chan<- *v4.ProtocolError) error {
	dec := v4.NewDecoder(wire.DefaultServerVersion)
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := conn.Read(buf)
		if n > 0 {
			dec.Write(buf[:n])
			if bumped, cmdErr := drainCommands(dec, id, toServer, internalErrs); cmdErr != nil {
				return cmdErr
			} else if bumped {
				// loop again without re-reading, in case more than one
				// line was buffered
			}
		}
		if err != nil {
			if err == io.EOF {
				return io.EOF
			}
			return err
		}
	}
}

// drainCommands pops every fully-decoded line currently buffered in
// dec and dispatches it. Returns ok=true if at least one line was
// processed.
func drainCommands(dec *v4.Decoder, id ClientID, toServer chan<- ToServer, internalErrs chan<- *v4.ProtocolError) (bool, error) {
	any := false
	for {
		line, ok, err := dec.Next(false)
		if err != nil {
			if errors.Is(err, v4.ErrCommandLineTooLong) {
				internalErrs <- newGenericLineError()
				continue
			}
			return any, err
		}
		if !ok {
			return any, nil
		}
		any = true

		cmd, perr := v4.Parse(string(line))
		if perr != nil {
			var protoErr *v4.ProtocolError
			if errors.As(perr, &protoErr) {
				if protoErr.Info {
					toServer <- ErrorInfo{ID: id, Err: protoErr}
				} else {
					internalErrs <- protoErr
				}
				continue
			}
			internalErrs <- v4.ErrGeneric("%v", perr)
			continue
		}

		switch c := cmd.(type) {
		case v4.Unknown:
			internalErrs <- v4.ErrUnsupportedCommand(c.Keyword)
		case v4.SlProto:
			if err := dec.SwitchVersion(wire.ProtocolVersion{Major: uint8(c.Version[0]), Minor: uint8(c.Version[1])}); err != nil {
				internalErrs <- v4.ErrUnexpectedCommand("%v", err)
			}
		case v4.Bye:
			toServer <- Command{ID: id, Cmd: cmd}
			return any, errBye
		default:
			dec.Lock()
			CommandsTotal.WithLabelValues(commandLabel(cmd)).Inc()
			toServer <- Command{ID: id, Cmd: cmd}
		}
	}
}

func commandLabel(cmd v4.Command) string {
	switch cmd.(type) {
	case v4.Hello:
		return "HELLO"
	case v4.Station:
		return "STATION"
	case v4.Select:
		return "SELECT"
	case v4.Data:
		return "DATA"
	case v4.End:
		return "END"
	case v4.EndFetch:
		return "ENDFETCH"
	case v4.UserAgent:
		return "USERAGENT"
	case v4.Auth:
		return "AUTH"
	case v4.Info:
		return "INFO"
	default:
		return "OTHER"
	}
}

func newGenericLineError() *v4.ProtocolError {
	return v4.ErrGeneric("command line too long")
}

// writeClient merges FromServer messages from inbox with internal
// ProtocolError messages that bypass the Dispatcher (spec.md §4.5).
func writeClient(ctx context.Context, conn net.Conn, inbox <-chan FromServer, internalErrs <-chan *v4.ProtocolError) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case perr := <-internalErrs:
			if err := writeLine(conn, fmt.Sprintf("ERROR %s: %s", perr.Code, perr.Message)); err != nil {
				return err
			}
		case msg, ok := <-inbox:
			if !ok {
				return nil
			}
			if err := writeFromServer(conn, msg); err != nil {
				return err
			}
			if _, isClose := msg.(Close); isClose {
				return nil
			}
		}
	}
}

func writeFromServer(conn net.Conn, msg FromServer) error {
	switch m := msg.(type) {
	case Hello:
		if err := writeLine(conn, m.Banner); err != nil {
			return err
		}
		return writeLine(conn, m.Description)
	case Ok:
		return writeLine(conn, "OK")
	case Error:
		return writeLine(conn, fmt.Sprintf("ERROR %s: %s", m.Err.Code, m.Err.Message))
	case Info:
		format := v4.FormatJSONInfo
		if m.IsError {
			format = v4.FormatJSONError
		}
		raw, err := v4.Pack(v4.Packet{Format: format, Payload: m.Payload})
		if err != nil {
			return err
		}
		return writeRaw(conn, raw)
	case DataPacket:
		return writeRaw(conn, m.Raw)
	case Close:
		return nil
	default:
		return fmt.Errorf("unhandled FromServer message %T", msg)
	}
}

func writeLine(conn net.Conn, s string) error {
	return writeRaw(conn, []byte(s+"\r\n"))
}

func writeRaw(conn net.Conn, b []byte) error {
	n, err := conn.Write(b)
	if err != nil {
		return err
	}
	BytesSentTotal.Add(float64(n))
	return nil
}
