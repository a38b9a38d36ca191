package v3

import (
	"bytes"
	"testing"

	"github.com/damb/slink/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestHandshakeLineClassification(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("OK\r\nERROR\r\nEND\r\nSEEDLINK v3.1\r\n"))

	f, ok, err := d.Next(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FrameOk, f.Kind)

	f, ok, err = d.Next(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FrameError, f.Kind)

	f, ok, err = d.Next(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FrameEnd, f.Kind)

	f, ok, err = d.Next(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FrameLine, f.Kind)
	require.Equal(t, "SEEDLINK v3.1", string(f.Line))
}

func TestHandshakePartialLineYieldsNotOk(t *testing.T) {
	d := NewDecoder()
	d.Write([]byte("OK"))
	_, ok, err := d.Next(false)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHandshakeSLINFOPivotSingleFrame(t *testing.T) {
	d := NewDecoder()
	var buf bytes.Buffer
	buf.WriteString(wire.Sig3Info)
	buf.Write(bytes.Repeat([]byte{0x42}, wire.Packet3Size-len(wire.Sig3Info)))
	d.Write(buf.Bytes())

	f, ok, err := d.Next(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FrameInfoPacket, f.Kind)
	require.Len(t, f.Packet, wire.Packet3Size)

	// no further frame should be pending
	_, ok, err = d.Next(false)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDataTransferGenericPacket(t *testing.T) {
	d := NewDecoder()
	d.EnterDataTransfer()
	packet := append([]byte(wire.Sig3Data), bytes.Repeat([]byte{0x01}, wire.Packet3Size-2)...)
	d.Write(packet)

	f, ok, err := d.Next(false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FrameGenericDataPacket, f.Kind)
	require.Equal(t, packet, f.Packet)
}

func TestDataTransferEnd(t *testing.T) {
	d := NewDecoder()
	d.EnterDataTransfer()
	d.Write([]byte(wire.LineEnd))
	f, ok, err := d.Next(true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FrameEnd, f.Kind)
}

func TestDataTransferEOFMidPacketIsBrokenPipe(t *testing.T) {
	d := NewDecoder()
	d.EnterDataTransfer()
	d.Write([]byte(wire.Sig3Data))
	d.Write(bytes.Repeat([]byte{0x00}, 10))
	_, _, err := d.Next(true)
	require.ErrorIs(t, err, ErrBrokenPipe)
}
