package fluf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1stship/lwm2mcore/internal/sdm"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder()
	req := &Descriptor{
		Type: TypeConfirmable, Code: CodeGET,
		Path:          sdm.ResourcePath(3, 0, 1),
		ContentFormat: CTNone,
		Accept:        CTSenMLCBOR,
	}
	buf, err := Encode(enc, req, 4)
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, OpDMRead, got.Op)
	assert.Equal(t, uint16(3), got.Path.OID)
	assert.Equal(t, uint16(0), got.Path.IID)
	assert.Equal(t, uint16(1), got.Path.RID)
	assert.Equal(t, CTSenMLCBOR, got.Accept)
	assert.Equal(t, req.Token, got.Token)
	assert.Len(t, got.Token, 4)
}

func TestDecodeBootstrapFinish(t *testing.T) {
	enc := NewEncoder()
	req := &Descriptor{Type: TypeConfirmable, Code: CodePOST, UriPath: []string{"bs"}}
	buf, err := Encode(enc, req, 4)
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, OpBootstrapFinish, got.Op)
}

func TestDecodeObserveRequest(t *testing.T) {
	enc := NewEncoder()
	req := &Descriptor{
		Type: TypeConfirmable, Code: CodeGET,
		Path:           sdm.InstancePath(3, 0),
		ObservePresent: true,
		ObserveValue:   0,
	}
	buf, err := Encode(enc, req, 4)
	require.NoError(t, err)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, OpInfObserve, got.Op)
}

func TestDecodeRejectsTruncatedHeader(t *testing.T) {
	_, err := Decode([]byte{0x40, 0x01})
	assert.ErrorIs(t, err, ErrFormat)
}
