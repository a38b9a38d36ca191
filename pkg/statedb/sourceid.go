package statedb

import (
	"fmt"
	"strings"

	"github.com/damb/slink/pkg/inventory"
)

// SourceID is a canonical FDSN source identifier,
// "ns:net_sta_loc_band_source_subsource" (spec.md §4.8/GLOSSARY).
// Validation delegates to inventory.NewStationId/NewStreamId so an
// accepted SourceID is guaranteed to carry a well-formed station and
// stream id.
type SourceID struct {
	NS      string
	Station inventory.StationId
	Stream  inventory.StreamId
}

// ParseSourceID parses and validates sid: exactly one ':' separator,
// then exactly four '_'-separated fields (net, sta, loc, and the
// remaining band/source/subsource run kept together, mirroring
// FDSNSourceId::parse in the original implementation).
func ParseSourceID(sid string) (SourceID, error) {
	nsSplit := strings.SplitN(sid, ":", 2)
	if len(nsSplit) != 2 {
		return SourceID{}, fmt.Errorf("%w: missing namespace separator in %q", inventory.ErrInvalidStreamId, sid)
	}

	fields := strings.SplitN(nsSplit[1], "_", 4)
	if len(fields) != 4 {
		return SourceID{}, fmt.Errorf("%w: expected net_sta_loc_chan fields in %q", inventory.ErrInvalidStreamId, sid)
	}
	net, sta, loc, cha := fields[0], fields[1], fields[2], fields[3]

	chaFields := strings.SplitN(cha, "_", 3)
	if len(chaFields) != 3 {
		return SourceID{}, fmt.Errorf("%w: expected band_source_subsource fields in %q", inventory.ErrInvalidStreamId, sid)
	}

	station, err := inventory.NewStationId(net, sta)
	if err != nil {
		return SourceID{}, err
	}
	stream, err := inventory.NewStreamId(loc, chaFields[0], chaFields[1], chaFields[2])
	if err != nil {
		return SourceID{}, err
	}
	return SourceID{NS: nsSplit[0], Station: station, Stream: stream}, nil
}

func (id SourceID) String() string {
	return fmt.Sprintf("%s:%s_%s_%s_%s_%s_%s",
		id.NS, id.Station.Net, id.Station.Sta,
		id.Stream.Loc, id.Stream.Band, id.Stream.Source, id.Stream.Subsource)
}

// SelectArgV3 renders the v3 SELECT argument derived from this id's
// stream component: location and channel codes concatenated with no
// separator, e.g. "00BHZ".
func (id SourceID) SelectArgV3() string {
	return id.Stream.Loc + id.Stream.Band + id.Stream.Source + id.Stream.Subsource
}

// SelectArgV4 renders the v4 SELECT pattern derived from this id's
// stream component, identical to inventory.StreamId.String().
func (id SourceID) SelectArgV4() string {
	return id.Stream.String()
}
