package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetSeqNumMonotonic(t *testing.T) {
	ss := &StationSelect{}
	ss.SetSeqNum(NumberSeq(10))
	require.Equal(t, uint64(10), ss.SeqNum.Number)

	ss.SetSeqNum(NumberSeq(5))
	require.Equal(t, uint64(10), ss.SeqNum.Number, "lower numeric update must be a no-op")

	ss.SetSeqNum(NumberSeq(20))
	require.Equal(t, uint64(20), ss.SeqNum.Number)

	ss.SetSeqNum(All())
	require.Equal(t, SeqAll, ss.SeqNum.Kind, "All always overwrites")

	ss.SetSeqNum(NumberSeq(1))
	require.Equal(t, SeqNumber, ss.SeqNum.Kind)

	ss.SetSeqNum(Next())
	require.Equal(t, SeqNext, ss.SeqNum.Kind, "Next always overwrites")
}

func TestStreamEffectiveSelected(t *testing.T) {
	s := &StreamSelect{Selected: true, Excluded: false}
	require.True(t, s.EffectiveSelected())

	s.Excluded = true
	require.False(t, s.EffectiveSelected())
}

func TestExclusionDominatesSelection(t *testing.T) {
	// apply(exclude=true) then apply(exclude=false) on the same stream
	// must leave it excluded.
	s := &StreamSelect{}
	s.Excluded = true
	s.Selected = true // a later, non-excluding SELECT still sets Selected
	require.False(t, s.EffectiveSelected(), "exclusion must dominate selection")
}

func TestStationSelectHasSelected(t *testing.T) {
	ss := &StationSelect{Streams: []*StreamSelect{
		{Selected: false},
		{Selected: true, Excluded: true},
	}}
	require.False(t, ss.HasSelected())

	ss.Streams = append(ss.Streams, &StreamSelect{Selected: true})
	require.True(t, ss.HasSelected())
}

func TestApplyFilterRespectsExclusionAndFirstWriterWins(t *testing.T) {
	s := &StreamSelect{}
	s.ApplyFilter("a")
	s.ApplyFilter("b")
	require.Equal(t, "a", *s.Filter)

	excluded := &StreamSelect{Excluded: true}
	excluded.ApplyFilter("x")
	require.Nil(t, excluded.Filter)
}
