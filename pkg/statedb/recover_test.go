package statedb

import (
	"testing"

	"github.com/damb/slink/pkg/v3"
	"github.com/stretchr/testify/require"
)

func TestRecoverStateUpdatesSeqAndAppendsSelectArg(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Store(anmoSID(t), 0x20))

	cfgs := []*v3.StationConfig{{Station: "ANMO", Net: "IU"}}
	require.NoError(t, RecoverState(db, cfgs, true))

	require.NotNil(t, cfgs[0].Seq)
	require.Equal(t, "20", *cfgs[0].Seq)
	require.Equal(t, []string{"00BHZ"}, cfgs[0].Selectors)
}

func TestRecoverStateSkipsUnmatchedStations(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Store(anmoSID(t), 5))

	cfgs := []*v3.StationConfig{{Station: "COLA", Net: "IU"}}
	require.NoError(t, RecoverState(db, cfgs, false))

	require.Nil(t, cfgs[0].Seq)
	require.Empty(t, cfgs[0].Selectors)
}

func TestRecoverStateKeepsHigherExistingSeq(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Store(anmoSID(t), 1)) // hex "1"

	existing := "ff" // lexicographically greater than "1"
	cfgs := []*v3.StationConfig{{Station: "ANMO", Net: "IU", Seq: &existing}}
	require.NoError(t, RecoverState(db, cfgs, false))

	require.Equal(t, "ff", *cfgs[0].Seq)
}

func TestRecoverStateAdvancesLowerExistingSeq(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Store(anmoSID(t), 0xff)) // hex "ff"

	existing := "1"
	cfgs := []*v3.StationConfig{{Station: "ANMO", Net: "IU", Seq: &existing}}
	require.NoError(t, RecoverState(db, cfgs, false))

	require.Equal(t, "ff", *cfgs[0].Seq)
}
