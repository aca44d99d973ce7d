package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoUDPServer binds an ephemeral loopback UDP socket and echoes one
// datagram back to whoever sent it, for exercising OpenUDP's Send/TryRecv
// pair without a live LwM2M server.
func echoUDPServer(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })

	go func() {
		buf := make([]byte, 2048)
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
		_, _ = pc.WriteTo(buf[:n], addr)
	}()
	return pc.LocalAddr().String()
}

func TestOpenUDPSendAndRecvRoundTrip(t *testing.T) {
	addr := echoUDPServer(t)

	conn, err := OpenUDP(addr, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Send([]byte("hello")))

	got, err := conn.TryRecv(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestTryRecvTimesOutWithoutError(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	conn, err := OpenUDP(pc.LocalAddr().String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	got, err := conn.TryRecv(50 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}
