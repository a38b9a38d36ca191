package v4

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackParseRoundTrip(t *testing.T) {
	raw, err := Pack(Packet{
		Format:    "2D",
		Sequence:  123456,
		StationID: "IU_ANMO",
		Payload:   []byte("hello miniseed"),
	})
	require.NoError(t, err)

	p, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "2D", p.Format)
	require.Equal(t, uint64(123456), p.Sequence)
	require.Equal(t, "IU_ANMO", p.StationID)
	require.Equal(t, []byte("hello miniseed"), p.Payload)
}

func TestPackMSRecordRoundTrip(t *testing.T) {
	for _, version := range []int{2, 3} {
		r := Record{Net: "NET", Sta: "STA", Version: version, SubFormat: 'D', Raw: []byte{1, 2, 3, 4}}
		raw, err := PackMSRecord(r, 99)
		require.NoError(t, err)
		p, err := Parse(raw)
		require.NoError(t, err)
		require.Equal(t, uint64(99), p.Sequence)
		require.Equal(t, "NET_STA", p.StationID)
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	raw, _ := Pack(Packet{Format: "2D", StationID: "A_B", Payload: nil})
	raw[0] = 'X'
	_, err := Parse(raw)
	require.Error(t, err)
}
