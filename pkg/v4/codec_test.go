package v4

import (
	"bytes"
	"testing"

	"github.com/damb/slink/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestLineEndingTolerance(t *testing.T) {
	for _, term := range []string{"\r", "\n", "\r\n"} {
		d := NewDecoder(wire.DefaultServerVersion)
		d.Write([]byte("HELLO" + term))
		line, ok, err := d.Next(false)
		require.NoError(t, err, term)
		require.True(t, ok, term)
		require.Equal(t, "HELLO", string(line), term)
	}
}

func TestEmptyLinesSkipped(t *testing.T) {
	d := NewDecoder(wire.DefaultServerVersion)
	d.Write([]byte("\r\n\r\nHELLO\r\n"))
	line, ok, err := d.Next(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "HELLO", string(line))
}

func TestOverlengthRecovery(t *testing.T) {
	d := NewDecoder(wire.DefaultServerVersion)
	blob := bytes.Repeat([]byte{'x'}, 300)
	d.Write(blob)
	d.Write([]byte("\r\n"))
	d.Write([]byte("HELLO\r\n"))

	_, ok, err := d.Next(false)
	require.ErrorIs(t, err, ErrCommandLineTooLong)
	require.False(t, ok)

	line, ok, err := d.Next(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "HELLO", string(line))
}

func TestPartialLineYieldsNotOk(t *testing.T) {
	d := NewDecoder(wire.DefaultServerVersion)
	d.Write([]byte("HEL"))
	_, ok, err := d.Next(false)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVersionLock(t *testing.T) {
	d := NewDecoder(wire.DefaultServerVersion)
	require.NoError(t, d.SwitchVersion(wire.ProtocolVersion{Major: 4, Minor: 1}))
	d.Lock()
	err := d.SwitchVersion(wire.ProtocolVersion{Major: 3, Minor: 0})
	require.Error(t, err)
}
