package client

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/damb/slink/pkg/v3"
	"github.com/damb/slink/pkg/wire"
	"github.com/stretchr/testify/require"
)

func buildDataPacket(t *testing.T, seqHex string, record byte) []byte {
	t.Helper()
	require.Len(t, seqHex, 6)
	buf := make([]byte, wire.Packet3Size)
	copy(buf, wire.Sig3Data)
	copy(buf[2:8], seqHex)
	for i := wire.Packet3HeaderSize; i < wire.Packet3Size; i++ {
		buf[i] = record
	}
	return buf
}

func buildInfoPacket(t *testing.T, more bool) []byte {
	t.Helper()
	buf := make([]byte, wire.Packet3Size)
	copy(buf, wire.Sig3Info)
	if more {
		buf[7] = '*'
	} else {
		buf[7] = ' '
	}
	return buf
}

// readUntilEnd drains handshake lines until it has consumed the END
// command, mirroring the real server's role in Session.Configure.
func readUntilEnd(t *testing.T, r *bufio.Reader) {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "END\r\n" || line == "END\n" {
			return
		}
	}
}

func TestPacketStreamYieldsDataThenEnds(t *testing.T) {
	addr := fakeV3Server(t, "SeedLink v3.1 (demo/1.0)", "Test Data Center", func(conn net.Conn, r *bufio.Reader) {
		readUntilEnd(t, r)
		conn.Write(buildDataPacket(t, "000001", 'A'))
		conn.Write([]byte("END"))
	})

	conn, err := Dial("slink://"+addr, DialOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer conn.Close()

	err = conn.Session().Configure(v3.ConfigureOptions{
		Streams: []v3.StationConfig{{Station: "ANMO", Net: "IU"}},
		Mode:    v3.RealTime,
		Batch:   true,
	})
	require.NoError(t, err)

	stream := conn.NewPacketStream(0)

	ev, ok, err := stream.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, EventGenericData, ev.Kind)
	seq, err := ev.Data.Sequence()
	require.NoError(t, err)
	require.Equal(t, uint32(1), seq)

	_, ok, err = stream.Next()
	require.NoError(t, err)
	require.False(t, ok)

	// Next() after the stream ended stays ended.
	_, ok, err = stream.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPacketStreamSurfacesInfoEvents(t *testing.T) {
	addr := fakeV3Server(t, "SeedLink v3.1 (demo/1.0)", "Test Data Center", func(conn net.Conn, r *bufio.Reader) {
		readUntilEnd(t, r)
		conn.Write(buildInfoPacket(t, false))
		conn.Write([]byte("END"))
	})

	conn, err := Dial("slink://"+addr, DialOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer conn.Close()

	err = conn.Session().Configure(v3.ConfigureOptions{
		Streams: []v3.StationConfig{{Station: "ANMO", Net: "IU"}},
		Mode:    v3.RealTime,
		Batch:   true,
	})
	require.NoError(t, err)

	stream := conn.NewPacketStream(0)

	ev, ok, err := stream.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, EventInfo, ev.Kind)
	require.False(t, conn.Session().ExpectingInfoResponse())

	_, ok, err = stream.Next()
	require.NoError(t, err)
	require.False(t, ok)
}
