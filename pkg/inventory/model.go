package inventory

import "time"

// Station is an inventory entry describing one station and the
// sequence-number range over which its buffered records span.
// Stations are built once from an INFO response and treated as an
// immutable snapshot for the lifetime of a client connection.
type Station struct {
	ID          StationId
	Description string
	StartSeq    uint64
	EndSeq      uint64 // half-open: [StartSeq, EndSeq)
	Streams     []Stream
}

// Stream is an inventory entry describing one stream of a station.
type Stream struct {
	ID        StreamId
	Format    Format
	SubFormat SubFormat
	Origin    *string
	StartTime time.Time
	EndTime   time.Time
}

// FullStreamId returns the station-qualified stream name
// "NET_STA/L_B_S_SS", used for regex matching in the v4 negotiator.
func (s Station) FullStreamId(stream Stream) string {
	return s.ID.String() + "/" + stream.ID.String()
}
