package inventory

import "time"

// SeqKind tags the three flavors of v4 sequence number directive.
type SeqKind int

const (
	SeqAll SeqKind = iota
	SeqNext
	SeqNumber
)

// SequenceNumber is the v4 tagged sequence-number directive:
// All, Next, or an explicit Number.
type SequenceNumber struct {
	Kind   SeqKind
	Number uint64
}

// All reports the "send everything buffered" directive.
func All() SequenceNumber { return SequenceNumber{Kind: SeqAll} }

// Next reports the "send only newly arriving records" directive.
func Next() SequenceNumber { return SequenceNumber{Kind: SeqNext} }

// NumberSeq wraps an explicit starting sequence number.
func NumberSeq(n uint64) SequenceNumber { return SequenceNumber{Kind: SeqNumber, Number: n} }

// StreamSelect is the mutable per-stream negotiation state that a v4
// SELECT command mutates. A stream is effectively selected iff
// Selected is true and Excluded is false.
type StreamSelect struct {
	Selected  bool
	Excluded  bool
	ID        StreamId
	Format    Format
	SubFormat SubFormat
	StartTime *time.Time
	EndTime   *time.Time
	Filter    *string
}

// EffectiveSelected reports whether this stream's packets should be
// delivered to the client: selected and not excluded.
func (s StreamSelect) EffectiveSelected() bool {
	return s.Selected && !s.Excluded
}

// StationSelect owns the negotiated sequence number and per-stream
// selection state for one station.
type StationSelect struct {
	Station StationId
	SeqNum  SequenceNumber
	Streams []*StreamSelect
}

// SetSeqNum applies a sequence-number directive per the spec.md §3
// monotonicity invariant: a numeric update only moves the watermark
// forward (n' <= current is a no-op); All/Next unconditionally
// overwrite.
func (ss *StationSelect) SetSeqNum(n SequenceNumber) {
	if n.Kind == SeqNumber && ss.SeqNum.Kind == SeqNumber && n.Number <= ss.SeqNum.Number {
		return
	}
	ss.SeqNum = n
}

// HasSelected reports whether at least one stream of this station is
// effectively selected.
func (ss *StationSelect) HasSelected() bool {
	for _, s := range ss.Streams {
		if s.EffectiveSelected() {
			return true
		}
	}
	return false
}

// Select is the full per-client negotiation state: one StationSelect
// per STATION command the client has issued.
type Select struct {
	Stations []*StationSelect
}

// HasSelected reports whether any station in this selection has at
// least one effectively selected stream.
func (s *Select) HasSelected() bool {
	for _, st := range s.Stations {
		if st.HasSelected() {
			return true
		}
	}
	return false
}

// ApplyFilter sets Filter on a stream iff none is set yet and the
// stream is not excluded — "filter presence implies not excluded"
// (spec.md §3).
func (s *StreamSelect) ApplyFilter(filter string) {
	if s.Excluded {
		return
	}
	if s.Filter == nil {
		f := filter
		s.Filter = &f
	}
}
