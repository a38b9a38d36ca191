package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadInventoryParsesStationsAndStreams(t *testing.T) {
	stations, err := LoadInventory("testdata/inventory.ini")
	require.NoError(t, err)
	require.Len(t, stations, 1)

	st := stations[0]
	require.Equal(t, "IU_ANMO", st.ID.String())
	require.Equal(t, "Albuquerque, New Mexico, USA", st.Description)
	require.Equal(t, uint64(0), st.StartSeq)
	require.Equal(t, uint64(3), st.EndSeq)
	require.Len(t, st.Streams, 2)

	var ids []string
	for _, s := range st.Streams {
		ids = append(ids, s.ID.String())
	}
	require.ElementsMatch(t, []string{"00_B_H_Z", "_L_C_Q"}, ids)
}

func TestLoadInventoryRejectsStreamWithoutStation(t *testing.T) {
	_, err := LoadInventory("testdata/orphan_stream.ini")
	require.Error(t, err)
}
