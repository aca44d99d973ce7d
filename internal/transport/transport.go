// Package transport implements the network operations OPEN_UDP,
// OPEN_DTLS_PSK, SEND, TRY_RECV and CLOSE (spec.md §6) over two
// concrete carriers: plain UDP (net.UDPConn, for NoSec/test setups) and
// DTLS-PSK via pion/dtls/v2 (for Security Mode 0 "PSK", spec.md §3's
// Security Object SecurityMode field).
package transport

import (
	"context"
	"net"
	"syscall"
	"time"

	"github.com/pion/dtls/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// reuseAddrListenConfig binds with SO_REUSEADDR, letting a socket rebind a
// local port a moment after the previous one closed. Only the plain-UDP
// path uses it (OpenUDP, on an ephemeral port); the DTLS-PSK path dials
// through pion/dtls without it.
var reuseAddrListenConfig = net.ListenConfig{
	Control: func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		if err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		}); err != nil {
			return err
		}
		return sockErr
	},
}

// listenUDP binds a local UDP socket with SO_REUSEADDR set; OpenUDP then
// addresses every datagram to the peer with WriteTo.
func listenUDP(ctx context.Context, localAddr string) (net.PacketConn, error) {
	return reuseAddrListenConfig.ListenPacket(ctx, "udp", localAddr)
}

// Conn is the minimal surface both carriers expose: the connection lifecycle
// calls spec.md §6 requires, independent of whether the bytes underneath are
// plaintext UDP datagrams or DTLS application data records.
type Conn interface {
	Send(b []byte) error
	TryRecv(timeout time.Duration) ([]byte, error)
	Close() error
}

// udpConn wraps a UDP socket bound with SO_REUSEADDR and a fixed peer
// address (spec.md §6 OPEN_UDP/SEND/TRY_RECV). It is not the result of
// net.DialUDP because Dial gives the kernel no opportunity to set socket
// options before bind(2); instead the local side is bound explicitly via
// reuseAddrListenConfig and every datagram is addressed to remote by hand.
type udpConn struct {
	pc     net.PacketConn
	remote net.Addr
	log    *logrus.Entry
}

// OpenUDP binds a NoSec UDP socket and targets it at host ("host:port").
func OpenUDP(host string, log *logrus.Entry) (Conn, error) {
	remote, err := net.ResolveUDPAddr("udp", host)
	if err != nil {
		return nil, errors.Wrap(err, "transport: resolve UDP address")
	}
	pc, err := listenUDP(context.Background(), ":0")
	if err != nil {
		return nil, errors.Wrap(err, "transport: bind UDP")
	}
	return &udpConn{pc: pc, remote: remote, log: log}, nil
}

func (u *udpConn) Send(b []byte) error {
	_, err := u.pc.WriteTo(b, u.remote)
	return errors.Wrap(err, "transport: UDP write")
}

func (u *udpConn) TryRecv(timeout time.Duration) ([]byte, error) {
	if err := u.pc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, 2048)
	n, _, err := u.pc.ReadFrom(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, errors.Wrap(err, "transport: UDP read")
	}
	return buf[:n], nil
}

func (u *udpConn) Close() error { return u.pc.Close() }

// dtlsConn wraps a pion/dtls/v2 PSK session (spec.md §6 OPEN_DTLS_PSK).
type dtlsConn struct {
	c   net.Conn
	log *logrus.Entry
}

// OpenDTLSPSK dials host over DTLS 1.2 with a PSK identity/key pair, the
// only cipher suite LwM2M's Security Mode 0 requires clients to support
// (TLS_PSK_WITH_AES_128_CCM_8, OMA-TS-LightweightM2M §7.1.7).
func OpenDTLSPSK(ctx context.Context, host string, identity, psk []byte, log *logrus.Entry) (Conn, error) {
	addr, err := net.ResolveUDPAddr("udp", host)
	if err != nil {
		return nil, errors.Wrap(err, "transport: resolve DTLS address")
	}
	cfg := &dtls.Config{
		PSK: func(hint []byte) ([]byte, error) {
			return psk, nil
		},
		PSKIdentityHint: identity,
		CipherSuites:    []dtls.CipherSuiteID{dtls.TLS_PSK_WITH_AES_128_CCM_8},
	}
	c, err := dtls.DialWithContext(ctx, "udp", addr, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "transport: DTLS-PSK handshake")
	}
	return &dtlsConn{c: c, log: log}, nil
}

func (d *dtlsConn) Send(b []byte) error {
	_, err := d.c.Write(b)
	return errors.Wrap(err, "transport: DTLS write")
}

func (d *dtlsConn) TryRecv(timeout time.Duration) ([]byte, error) {
	if err := d.c.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	buf := make([]byte, 2048)
	n, err := d.c.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, errors.Wrap(err, "transport: DTLS read")
	}
	return buf[:n], nil
}

func (d *dtlsConn) Close() error { return d.c.Close() }
