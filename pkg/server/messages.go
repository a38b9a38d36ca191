package server

import "github.com/damb/slink/pkg/v4"

// ClientID identifies one connected client for the lifetime of its
// connection. Assigned by the accept loop from an atomic counter
// (spec.md §4.5).
type ClientID uint64

// ToServer is any message a client actor or the accept loop sends to
// the Dispatcher's main loop.
type ToServer interface {
	isToServer()
}

// NewClient announces a freshly accepted connection; the Dispatcher
// inserts it into its client map.
type NewClient struct {
	ID     ClientID
	Handle *ClientHandle
}

func (NewClient) isToServer() {}

// DisconnectClient announces that a client actor has exited, for any
// reason; the Dispatcher removes it from its map and logs.
type DisconnectClient struct {
	ID     ClientID
	Reason string // "bye", "broken_pipe", "fatal", "eof"
}

func (DisconnectClient) isToServer() {}

// Command forwards one parsed v4 command to the Dispatcher.
type Command struct {
	ID  ClientID
	Cmd v4.Command
}

func (Command) isToServer() {}

// ErrorInfo forwards a parse error flagged "info" (spec.md §4.5); the
// Dispatcher packages it as a JSON INFO error packet.
type ErrorInfo struct {
	ID  ClientID
	Err *v4.ProtocolError
}

func (ErrorInfo) isToServer() {}

// FatalError terminates the server; the accept loop sends this when
// it can no longer accept connections.
type FatalError struct {
	Err error
}

func (FatalError) isToServer() {}

// FromServer is any message the Dispatcher sends to a client's writer
// actor.
type FromServer interface {
	isFromServer()
}

// Hello is the two-line HELLO response.
type Hello struct {
	Banner      string
	Description string
}

func (Hello) isFromServer() {}

// Info carries a fully-serialized JSON INFO payload and whether it
// represents an error (format JE) or a normal response (format JI).
type Info struct {
	Payload []byte
	IsError bool
}

func (Info) isFromServer() {}

// Ok is the literal "OK" response line.
type Ok struct{}

func (Ok) isFromServer() {}

// Error is an inline "ERROR <CODE>: <msg>" response line.
type Error struct {
	Err *v4.ProtocolError
}

func (Error) isFromServer() {}

// DataPacket carries one already-packed binary v4 data packet destined
// for the writer, bypassing JSON/line encoding.
type DataPacket struct {
	Raw []byte
}

func (DataPacket) isFromServer() {}

// Close asks the writer to flush and terminate, e.g. after BYE.
type Close struct{}

func (Close) isFromServer() {}
