package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1stship/lwm2mcore/internal/fluf"
	"github.com/1stship/lwm2mcore/internal/sdm"
	"github.com/1stship/lwm2mcore/internal/sdm/std"
)

func newTestServer() *Server {
	dm := sdm.NewDataModel()
	dev := std.NewDeviceObject(std.DeviceInfo{Manufacturer: "Acme"}, nil)
	dm.Register(dev)
	return NewServer(1, "coap://localhost:5683", std.SecurityModeNoSec, nil, nil, dm, "urn:uuid:test", 3600, nil, nil, nil, nil)
}

func TestHandleIncomingMatchesOutstandingExchange(t *testing.T) {
	s := newTestServer()
	token := []byte{0x01, 0x02, 0x03, 0x04}
	ex := &exchange{replyCh: make(chan *fluf.Descriptor, 1)}
	s.exchanges[string(token)] = ex

	ack := &fluf.Descriptor{Type: fluf.TypeAcknowledgement, Code: fluf.RespCreated, Token: token, MessageID: 42}
	raw, err := fluf.Encode(s.enc, ack, 0)
	require.NoError(t, err)

	resp, err := s.HandleIncoming(raw)
	require.NoError(t, err)
	assert.Nil(t, resp, "a matched exchange reply produces no response to send back")

	select {
	case got := <-ex.replyCh:
		assert.Equal(t, fluf.RespCreated, got.Code)
	case <-time.After(time.Second):
		t.Fatal("exchange reply channel never received the matched ACK")
	}
	_, stillTracked := s.exchanges[string(token)]
	assert.False(t, stillTracked)
}

func TestHandleIncomingDispatchesServerInitiatedRead(t *testing.T) {
	s := newTestServer()
	req := &fluf.Descriptor{
		Type: fluf.TypeConfirmable, Code: fluf.CodeGET,
		Path:   sdm.ResourcePath(3, 0, std.RIDDevManufacturer),
		Accept: fluf.CTTextPlain,
	}
	raw, err := fluf.Encode(s.enc, req, 4)
	require.NoError(t, err)

	resp, err := s.HandleIncoming(raw)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, fluf.RespContent, resp.Code)
	assert.Equal(t, "Acme", string(resp.Payload))
}

func TestRegisterBodyExcludesSecurityObject(t *testing.T) {
	dm := sdm.NewDataModel()
	dm.Register(std.NewSecurityObject())
	dev := std.NewDeviceObject(std.DeviceInfo{}, nil)
	dm.Register(dev)

	body := registerBody(dm)
	assert.Contains(t, string(body), "</3/0>")
	assert.NotContains(t, string(body), "</0")
}

func TestInt64ToIntPtr(t *testing.T) {
	p := int64ToIntPtr(3600)
	require.NotNil(t, p)
	assert.Equal(t, 3600, *p)
}
