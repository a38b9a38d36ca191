package server

import (
	"context"

	"github.com/damb/slink/pkg/inventory"
)

// StreamMode selects how Backend.Packets behaves once a client issues
// END or ENDFETCH (spec.md §4.6, §9 Open Questions).
type StreamMode int

const (
	// ModeRealTime streams indefinitely, pushing newly arriving
	// records as they appear (client issued END).
	ModeRealTime StreamMode = iota
	// ModeDialUp drains whatever is currently buffered and closes
	// (client issued ENDFETCH).
	ModeDialUp
)

// PacketOrError is one item of a Backend.Packets stream: either a
// ready-to-send binary v4 packet or a terminal error.
type PacketOrError struct {
	Packet []byte
	Err    error
}

// Backend is the application-level collaborator the Dispatcher calls
// into for every command that isn't handled by the protocol core
// itself (station/stream inventory, packet delivery, authentication).
// It is owned exclusively by the Dispatcher; all calls are sequential,
// matching spec.md §5's "backend trait object owned by the main
// loop's Dispatcher" resource policy.
type Backend interface {
	// InventoryStreams answers a STATION/INFO STREAMS query: stations
	// matching stationPattern (glob, compiled by the backend), each
	// carrying only the streams matching streamPattern (glob; empty
	// pattern matches every stream).
	InventoryStreams(ctx context.Context, stationPattern, streamPattern string) ([]inventory.Station, error)

	// Packets begins delivering packets for the given selection,
	// honoring mode, and writes to tx until the selection is
	// exhausted (ModeDialUp) or ctx is cancelled (ModeRealTime). The
	// channel is always closed by Packets before it returns.
	Packets(ctx context.Context, sel *inventory.Select, mode StreamMode, tx chan<- PacketOrError)

	// Authenticate validates AUTH credentials. A backend with no
	// credential store may always return nil (spec.md §9: policy is
	// backend-defined).
	Authenticate(ctx context.Context, kind, user, password, token string) error
}
