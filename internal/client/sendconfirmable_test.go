package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1stship/lwm2mcore/internal/fluf"
)

// fakeReplyConn is a transport.Conn stand-in that answers every Send with a
// matching ACK, queued for the next TryRecv call. It exists to prove
// sendConfirmable resolves its own exchange without any separately-running
// Poll loop (a prior bug had Register/Update block forever waiting on a
// channel only an external Poll goroutine, started too late, could fill).
type fakeReplyConn struct {
	enc     *fluf.Encoder
	ackCode byte

	mu      sync.Mutex
	sent    [][]byte
	pending [][]byte
}

func (c *fakeReplyConn) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, b)
	// Only the header's token and message ID are needed for the ACK; a full
	// fluf.Decode would reject the request's non-numeric "rd" Uri-Path.
	tkl := int(b[0] & 0x0F)
	token := append([]byte(nil), b[4:4+tkl]...)
	msgID := uint16(b[2])<<8 | uint16(b[3])
	code := c.ackCode
	if code == 0 {
		code = fluf.RespCreated
	}
	ack := &fluf.Descriptor{
		Type: fluf.TypeAcknowledgement, Code: code,
		Token: token, MessageID: msgID, LocationPath: []string{"rd", "0"},
	}
	raw, err := fluf.Encode(c.enc, ack, 0)
	if err != nil {
		return err
	}
	c.pending = append(c.pending, raw)
	return nil
}

func (c *fakeReplyConn) TryRecv(timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil, nil
	}
	raw := c.pending[0]
	c.pending = c.pending[1:]
	return raw, nil
}

func (c *fakeReplyConn) Close() error { return nil }

func TestRegisterSucceedsWithoutExternalPollLoop(t *testing.T) {
	s := newTestServer()
	conn := &fakeReplyConn{enc: fluf.NewEncoder()}
	s.conn = conn

	err := s.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateOnline, s.State())
	assert.Len(t, conn.sent, 1, "Register must succeed on the first attempt instead of retransmitting")
}

func TestUpdateSucceedsWithoutExternalPollLoop(t *testing.T) {
	s := newTestServer()
	conn := &fakeReplyConn{enc: fluf.NewEncoder()}
	s.conn = conn
	require.NoError(t, s.Register(context.Background()))

	conn.mu.Lock()
	conn.sent = nil
	conn.ackCode = fluf.RespChanged
	conn.mu.Unlock()

	err := s.Update(context.Background())
	require.NoError(t, err)
	assert.Len(t, conn.sent, 1, "Update must succeed on the first attempt instead of retransmitting")
}
