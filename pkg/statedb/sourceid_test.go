package statedb

import (
	"testing"

	"github.com/damb/slink/pkg/inventory"
	"github.com/stretchr/testify/require"
)

func TestParseSourceIDRoundTrips(t *testing.T) {
	id, err := ParseSourceID("FDSN:IU_ANMO_00_B_H_Z")
	require.NoError(t, err)
	require.Equal(t, "FDSN", id.NS)
	require.Equal(t, inventory.StationId{Net: "IU", Sta: "ANMO"}, id.Station)
	require.Equal(t, inventory.StreamId{Loc: "00", Band: "B", Source: "H", Subsource: "Z"}, id.Stream)
	require.Equal(t, "FDSN:IU_ANMO_00_B_H_Z", id.String())
}

func TestParseSourceIDAcceptsEmptyBandAndSubsource(t *testing.T) {
	id, err := ParseSourceID("FDSN:IU_ANMO_00__L_")
	require.NoError(t, err)
	require.Equal(t, "", id.Stream.Band)
	require.Equal(t, "L", id.Stream.Source)
	require.Equal(t, "", id.Stream.Subsource)
}

func TestParseSourceIDRejectsMissingNamespace(t *testing.T) {
	_, err := ParseSourceID("IU_ANMO_00_B_H_Z")
	require.ErrorIs(t, err, inventory.ErrInvalidStreamId)
}

func TestParseSourceIDRejectsTooFewFields(t *testing.T) {
	_, err := ParseSourceID("FDSN:IU_ANMO")
	require.ErrorIs(t, err, inventory.ErrInvalidStreamId)
}

func TestSourceIDSelectArgs(t *testing.T) {
	id, err := ParseSourceID("FDSN:IU_ANMO_00_B_H_Z")
	require.NoError(t, err)
	require.Equal(t, "00BHZ", id.SelectArgV3())
	require.Equal(t, "00_B_H_Z", id.SelectArgV4())
}
