// Package inventory models the SeedLink data model: station and stream
// identifiers, the station/stream inventory built once from INFO
// responses, and the mutable per-client selection state that the v4
// negotiator (pkg/v4) mutates as STATION/SELECT/DATA commands arrive.
package inventory

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidStationId and ErrInvalidStreamId are returned by the
// identifier constructors when an input violates the spec.md §3
// invariants.
var (
	ErrInvalidStationId = errors.New("invalid station id")
	ErrInvalidStreamId  = errors.New("invalid stream id")
)

// StationId is a (network code, station code) pair. Both codes are
// nonempty, ASCII, and at most 8 characters; serialization is
// case-preserving "NET_STA".
type StationId struct {
	Net string
	Sta string
}

// NewStationId validates net/sta and returns a StationId.
func NewStationId(net, sta string) (StationId, error) {
	if !validCode(net) || !validCode(sta) {
		return StationId{}, fmt.Errorf("%w: net=%q sta=%q", ErrInvalidStationId, net, sta)
	}
	return StationId{Net: net, Sta: sta}, nil
}

func (id StationId) String() string {
	return id.Net + "_" + id.Sta
}

// StreamId is a (location, band, source, subsource) tuple, serialized
// as "L_B_S_SS". Constraints: loc <= 8 chars and != "--"; band is ""
// or exactly one char; source is exactly one char; subsource is "" or
// exactly one char.
type StreamId struct {
	Loc       string
	Band      string
	Source    string
	Subsource string
}

// NewStreamId validates its arguments per spec.md §3 and returns a
// StreamId.
func NewStreamId(loc, band, source, subsource string) (StreamId, error) {
	if len(loc) > 8 || !isASCII(loc) || loc == "--" {
		return StreamId{}, fmt.Errorf("%w: bad location code %q", ErrInvalidStreamId, loc)
	}
	if len(band) > 1 || !isASCII(band) {
		return StreamId{}, fmt.Errorf("%w: bad band code %q", ErrInvalidStreamId, band)
	}
	if len(source) != 1 || !isASCII(source) {
		return StreamId{}, fmt.Errorf("%w: source code must be exactly one char, got %q", ErrInvalidStreamId, source)
	}
	if len(subsource) > 1 || !isASCII(subsource) {
		return StreamId{}, fmt.Errorf("%w: bad subsource code %q", ErrInvalidStreamId, subsource)
	}
	return StreamId{Loc: loc, Band: band, Source: source, Subsource: subsource}, nil
}

func (id StreamId) String() string {
	return strings.Join([]string{id.Loc, id.Band, id.Source, id.Subsource}, "_")
}

func validCode(s string) bool {
	return s != "" && len(s) <= 8 && isASCII(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// Format identifies the miniSEED record encoding.
type Format int

const (
	FormatMiniSeed2 Format = iota
	FormatMiniSeed3
)

func (f Format) String() string {
	switch f {
	case FormatMiniSeed2:
		return "2"
	case FormatMiniSeed3:
		return "3"
	default:
		return "?"
	}
}

// SubFormat identifies the payload kind carried within a record.
type SubFormat byte

const (
	SubFormatData        SubFormat = 'D'
	SubFormatEvent       SubFormat = 'E'
	SubFormatCalibration SubFormat = 'C'
	SubFormatOpaque      SubFormat = 'O'
	SubFormatTiming      SubFormat = 'T'
	SubFormatLog         SubFormat = 'L'
)

func (s SubFormat) String() string {
	return string(rune(s))
}

// ParseSubFormat maps a single ASCII letter to a SubFormat.
func ParseSubFormat(c byte) (SubFormat, error) {
	switch SubFormat(c) {
	case SubFormatData, SubFormatEvent, SubFormatCalibration, SubFormatOpaque, SubFormatTiming, SubFormatLog:
		return SubFormat(c), nil
	default:
		return 0, fmt.Errorf("unknown subformat code %q", c)
	}
}
