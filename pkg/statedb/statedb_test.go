package statedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func anmoSID(t *testing.T) SourceID {
	t.Helper()
	id, err := ParseSourceID("FDSN:IU_ANMO_00_B_H_Z")
	require.NoError(t, err)
	return id
}

func TestStoreThenSeqNumRoundTrips(t *testing.T) {
	db := openTestDB(t)
	sid := anmoSID(t)

	require.NoError(t, db.Store(sid, 42))
	seq, found, err := db.SeqNum(sid)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(42), seq)
}

func TestSeqNumNotFound(t *testing.T) {
	db := openTestDB(t)
	_, found, err := db.SeqNum(anmoSID(t))
	require.NoError(t, err)
	require.False(t, found)
}

func TestStoreOverwritesPreviousValue(t *testing.T) {
	db := openTestDB(t)
	sid := anmoSID(t)

	require.NoError(t, db.Store(sid, 1))
	require.NoError(t, db.Store(sid, 2))

	seq, found, err := db.SeqNum(sid)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(2), seq)
}

func TestStateEnumeratesOrderedBySID(t *testing.T) {
	db := openTestDB(t)

	other, err := ParseSourceID("FDSN:IU_COLA_00_B_H_Z")
	require.NoError(t, err)

	require.NoError(t, db.Store(anmoSID(t), 7))
	require.NoError(t, db.Store(other, 9))

	rows, err := db.State()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "FDSN:IU_ANMO_00_B_H_Z", rows[0].SID.String())
	require.Equal(t, uint64(7), rows[0].Seq)
	require.Equal(t, "FDSN:IU_COLA_00_B_H_Z", rows[1].SID.String())
	require.Equal(t, uint64(9), rows[1].Seq)
}
