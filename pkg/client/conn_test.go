package client

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/damb/slink/pkg/wire"
	"github.com/stretchr/testify/require"
)

// fakeV3Server accepts exactly one connection, replies to the HELLO
// preflight with the given banner/description, then hands the
// connection to handleAfterHello for the rest of the exchange.
func fakeV3Server(t *testing.T, banner, desc string, handleAfterHello func(conn net.Conn, r *bufio.Reader)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		r.ReadString('\n') // HELLO
		conn.Write([]byte(banner + "\r\n"))
		conn.Write([]byte(desc + "\r\n"))
		if handleAfterHello != nil {
			handleAfterHello(conn, r)
		}
	}()

	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestDialNegotiatesV3(t *testing.T) {
	addr := fakeV3Server(t, "SeedLink v3.1 (demo/1.0)", "Test Data Center", nil)

	conn, err := Dial("slink://"+addr, DialOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, wire.ProtocolVersion{Major: 3, Minor: 0}, conn.Version())
	require.Equal(t, "Test Data Center", conn.Session().ServerDesc)
}

func TestDialRejectsWhenNoMutualVersion(t *testing.T) {
	addr := fakeV3Server(t, "SeedLink v4.0 (demo/1.0) :: SLPROTO:4.0", "Test Data Center", nil)

	_, err := Dial("slink://"+addr, DialOptions{Timeout: 2 * time.Second})
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, InvalidProtocolVersion, cerr.Kind)
}

func TestDialPicksV3WhenServerAdvertisesBoth(t *testing.T) {
	addr := fakeV3Server(t, "SeedLink v3.1 (demo/1.0) :: SLPROTO:3.1 SLPROTO:4.0", "Test Data Center", nil)

	conn, err := Dial("slink://"+addr, DialOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, uint8(3), conn.Version().Major)
}

func TestPickVersionPrefersHighestMutual(t *testing.T) {
	v, err := pickVersion(map[uint8]bool{3: true, 4: true}, []uint8{3, 4})
	require.NoError(t, err)
	require.Equal(t, uint8(4), v)
}

func TestPickVersionErrorsOnEmptyIntersection(t *testing.T) {
	_, err := pickVersion(map[uint8]bool{4: true}, []uint8{3})
	require.Error(t, err)
}
