package v3

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSayHelloParsesBannerAndDescription(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		r := bufio.NewReader(server)
		line, _ := r.ReadString('\n')
		require.Equal(t, "HELLO\r\n", line)
		server.Write([]byte("SeedLink v3.1 (test/1.0)\r\n"))
		server.Write([]byte("Test Data Center\r\n"))
	}()

	sess := NewSession(client)
	require.NoError(t, sess.SayHello())
	require.Equal(t, uint8(3), sess.Version.Major)
	require.Equal(t, uint8(1), sess.Version.Minor)
	require.Equal(t, "Test Data Center", sess.ServerDesc)
}

func TestConfigureNonBatchAcceptsStationAndIssuesEnd(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r := bufio.NewReader(server)
		line, _ := r.ReadString('\n')
		require.Equal(t, "STATION ANMO IU\r\n", line)
		server.Write([]byte("OK\r\n"))

		line, _ = r.ReadString('\n')
		require.Equal(t, "DATA\r\n", line)
		server.Write([]byte("OK\r\n"))

		line, _ = r.ReadString('\n')
		require.Equal(t, "END\r\n", line)
	}()

	sess := NewSession(client)
	sess.state = Initialized
	err := sess.Configure(ConfigureOptions{
		Streams: []StationConfig{{Station: "ANMO", Net: "IU"}},
		Mode:    RealTime,
	})
	require.NoError(t, err)
	require.Equal(t, DataTransferState, sess.StateOf())
	require.Len(t, sess.Accepted, 1)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server goroutine did not finish")
	}
}

func TestConfigureSkipsRejectedStation(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		r := bufio.NewReader(server)
		r.ReadString('\n') // STATION
		server.Write([]byte("ERROR\r\n"))
	}()

	sess := NewSession(client)
	err := sess.Configure(ConfigureOptions{
		Streams: []StationConfig{{Station: "BOGUS"}},
		Mode:    RealTime,
	})
	require.NoError(t, err)
	require.Equal(t, Initialized, sess.StateOf(), "no station accepted, session stays Initialized")
	require.Empty(t, sess.Accepted)
}

func TestRequestInfoRejectsConcurrent(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	go func() {
		r := bufio.NewReader(server)
		r.ReadString('\n')
	}()

	sess := NewSession(client)
	require.NoError(t, sess.RequestInfo(InfoID))
	err := sess.RequestInfo(InfoID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "multiple concurrent info requests")
}
