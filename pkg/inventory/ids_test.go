package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStationIdString(t *testing.T) {
	id, err := NewStationId("IU", "ANMO")
	require.NoError(t, err)
	require.Equal(t, "IU_ANMO", id.String())
}

func TestStationIdRejectsEmpty(t *testing.T) {
	_, err := NewStationId("", "ANMO")
	require.ErrorIs(t, err, ErrInvalidStationId)
}

func TestStationIdRejectsTooLong(t *testing.T) {
	_, err := NewStationId("TOOLONGNET", "ANMO")
	require.ErrorIs(t, err, ErrInvalidStationId)
}

func TestStreamIdString(t *testing.T) {
	id, err := NewStreamId("00", "B", "H", "Z")
	require.NoError(t, err)
	require.Equal(t, "00_B_H_Z", id.String())
}

func TestStreamIdRejectsDashDash(t *testing.T) {
	_, err := NewStreamId("--", "B", "H", "Z")
	require.ErrorIs(t, err, ErrInvalidStreamId)
}

func TestStreamIdRejectsMultiCharSource(t *testing.T) {
	_, err := NewStreamId("00", "B", "HH", "Z")
	require.ErrorIs(t, err, ErrInvalidStreamId)
}

func TestStreamIdAllowsEmptyBandAndSubsource(t *testing.T) {
	id, err := NewStreamId("", "", "D", "")
	require.NoError(t, err)
	require.Equal(t, "__D_", id.String())
}
