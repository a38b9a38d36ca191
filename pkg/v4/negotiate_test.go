package v4

import (
	"testing"
	"time"

	"github.com/damb/slink/pkg/inventory"
	"github.com/stretchr/testify/require"
)

func anmo(t *testing.T) inventory.Station {
	t.Helper()
	id, err := inventory.NewStationId("IU", "ANMO")
	require.NoError(t, err)

	bhz, err := inventory.NewStreamId("00", "B", "H", "Z")
	require.NoError(t, err)
	lcq, err := inventory.NewStreamId("", "L", "C", "Q")
	require.NoError(t, err)

	return inventory.Station{
		ID: id,
		Streams: []inventory.Stream{
			{ID: bhz, Format: inventory.FormatMiniSeed2, SubFormat: inventory.SubFormatData},
			{ID: lcq, Format: inventory.FormatMiniSeed2, SubFormat: inventory.SubFormatLog},
		},
	}
}

func TestNegotiatorStationStartsWithEveryStreamSelected(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	require.Equal(t, StateStation, n.State())
	require.True(t, n.Select.HasSelected(), "every stream is selected by default until narrowed with exclude")
}

func TestNegotiatorSelectMarksMatchingStreamAndLeavesOthersSelected(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	err := n.OnSelect(Select{Pattern: "00_B_H_Z"})
	require.NoError(t, err)
	require.Equal(t, StateSelect, n.State())
	require.True(t, n.Select.HasSelected())

	ss := n.Select.Stations[0]
	require.True(t, ss.Streams[0].EffectiveSelected())
	require.True(t, ss.Streams[1].EffectiveSelected(), "non-matching streams stay selected by default; only exclude narrows")
}

func TestNegotiatorSelectGlobWildcard(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	require.NoError(t, n.OnSelect(Select{Pattern: "*"}))
	require.True(t, n.Select.Stations[0].Streams[0].EffectiveSelected())
	require.True(t, n.Select.Stations[0].Streams[1].EffectiveSelected())
}

func TestNegotiatorSelectExcludeOverridesSelect(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	require.NoError(t, n.OnSelect(Select{Pattern: "*"}))
	require.NoError(t, n.OnSelect(Select{Exclude: true, Pattern: "00_B_H_Z"}))

	ss := n.Select.Stations[0]
	require.False(t, ss.Streams[0].EffectiveSelected(), "excluded stream must not be delivered")
	require.True(t, ss.Streams[1].EffectiveSelected())
}

func TestNegotiatorSelectFormatSubRestrictionAppliesFilterOnlyToMatch(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	require.NoError(t, n.OnSelect(Select{Pattern: "*", FormatSub: "2D", Filter: "lowpass"}))

	ss := n.Select.Stations[0]
	require.True(t, ss.Streams[0].EffectiveSelected(), "2D stream should match")
	require.NotNil(t, ss.Streams[0].Filter)
	require.True(t, ss.Streams[1].EffectiveSelected(), "non-matching streams stay selected by default")
	require.Nil(t, ss.Streams[1].Filter, "2L stream does not match a 2D filter, so no filter is applied to it")
}

func TestNegotiatorSelectAppliesFilterOnce(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	require.NoError(t, n.OnSelect(Select{Pattern: "00_B_H_Z", Filter: "lowpass"}))
	require.NoError(t, n.OnSelect(Select{Pattern: "00_B_H_Z", Filter: "highpass"}))

	filter := n.Select.Stations[0].Streams[0].Filter
	require.NotNil(t, filter)
	require.Equal(t, "lowpass", *filter, "first filter wins, later SELECTs do not overwrite it")
}

func TestNegotiatorDataCommitsAndTransitionsToFinished(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	require.NoError(t, n.OnSelect(Select{Pattern: "*"}))

	seq := inventory.NumberSeq(42)
	err := n.OnData(Data{Seq: &seq})
	require.NoError(t, err)
	require.Equal(t, StateFinished, n.State())
	require.Equal(t, seq, n.Select.Stations[0].SeqNum)
}

func TestNegotiatorDataAppliesTimeWindow(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	begin := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, n.OnData(Data{Begin: &begin, End: &end}))

	st := n.Select.Stations[0].Streams[0]
	require.NotNil(t, st.StartTime)
	require.Equal(t, begin, *st.StartTime)
	require.NotNil(t, st.EndTime)
	require.Equal(t, end, *st.EndTime)
}

func TestNegotiatorDataWithoutSelectIsLegal(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	require.NoError(t, n.OnData(Data{}))
	require.Equal(t, StateFinished, n.State())
}

func TestNegotiatorSelectAfterFinishedIsError(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	require.NoError(t, n.OnData(Data{}))
	err := n.OnSelect(Select{Pattern: "*"})
	require.Error(t, err)
	require.Equal(t, StateError, n.State())

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, CodeUnexpectedCommand, perr.Code)
}

func TestNegotiatorDataAfterFinishedIsError(t *testing.T) {
	n := NewNegotiator([]inventory.Station{anmo(t)})
	require.NoError(t, n.OnData(Data{}))
	err := n.OnData(Data{})
	require.Error(t, err)
	require.Equal(t, StateError, n.State())
}

func TestGlobToRegexpTranslatesWildcards(t *testing.T) {
	re, err := globToRegexp("00BH?")
	require.NoError(t, err)
	require.True(t, re.MatchString("00BHZ"))
	require.False(t, re.MatchString("01BLC"))

	re, err = globToRegexp("*")
	require.NoError(t, err)
	require.True(t, re.MatchString("anything"))
}
