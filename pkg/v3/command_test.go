package v3

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSerializeRoundTrip(t *testing.T) {
	cases := []string{
		"HELLO",
		"BYE",
		"STATION ANMO IU",
		"STATION ANMO",
		"SELECT BHZ",
		"SELECT",
		"END",
		"BATCH",
		"INFO ID",
		"TIME 2020,01,02,03,04,05 2020,02,02,00,00,00",
	}
	for _, c := range cases {
		cmd, err := Parse(c)
		require.NoError(t, err, c)
		again, err := Parse(cmd.Serialize())
		require.NoError(t, err)
		require.Equal(t, cmd, again, c)
	}
}

func TestParseUnknownKeyword(t *testing.T) {
	cmd, err := Parse("FOO bar")
	require.NoError(t, err)
	require.Equal(t, Unknown{Keyword: "FOO"}, cmd)
}

func TestParseInfoRejectsBadItem(t *testing.T) {
	_, err := Parse("INFO BOGUS")
	require.ErrorIs(t, err, ErrIncorrectArguments)
}

func TestParseStationRequiresArgs(t *testing.T) {
	_, err := Parse("STATION")
	require.ErrorIs(t, err, ErrIncorrectArguments)
}

func TestParseDataWithSeqAndTime(t *testing.T) {
	cmd, err := Parse("DATA 1A2B 2020,01,01,00,00,00")
	require.NoError(t, err)
	data, ok := cmd.(Data)
	require.True(t, ok)
	require.Equal(t, "1A2B", *data.Seq)
	require.NotNil(t, data.When)
}

func TestParseEmptyLine(t *testing.T) {
	_, err := Parse("")
	require.ErrorIs(t, err, ErrIncorrectArguments)
}
