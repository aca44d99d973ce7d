package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1stship/lwm2mcore/internal/sdm"
)

func TestTextOutputRendersInt(t *testing.T) {
	out, err := NewOutputCodec(FormatTextPlain, sdm.ResourcePath(3, 0, 9))
	require.NoError(t, err)
	require.NoError(t, out.NewEntry(sdm.Entry{Path: sdm.ResourcePath(3, 0, 9), Type: sdm.TypeInt, Value: sdm.IntValue(85)}))

	buf := make([]byte, 64)
	n, more, err := out.GetPayload(buf)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, "85", string(buf[:n]))
}

func TestTextInputParsesWithDeclaredType(t *testing.T) {
	in, err := NewInputCodec(FormatTextPlain, sdm.ResourcePath(3, 0, 9), func(sdm.Path) sdm.DataType { return sdm.TypeInt })
	require.NoError(t, err)
	require.NoError(t, in.Feed([]byte("85")))

	e, err := in.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(85), e.Value.Int)

	_, err = in.Next()
	assert.ErrorIs(t, err, sdm.ErrEOF)
}

func TestCBORRoundTrip(t *testing.T) {
	out, err := NewOutputCodec(FormatCBOR, sdm.ResourcePath(3, 0, 1))
	require.NoError(t, err)
	require.NoError(t, out.NewEntry(sdm.Entry{Path: sdm.ResourcePath(3, 0, 1), Type: sdm.TypeString, Value: sdm.StringValue("Acme")}))

	buf := make([]byte, 128)
	n, _, err := out.GetPayload(buf)
	require.NoError(t, err)

	in, err := NewInputCodec(FormatCBOR, sdm.ResourcePath(3, 0, 1), func(sdm.Path) sdm.DataType { return sdm.TypeString })
	require.NoError(t, err)
	require.NoError(t, in.Feed(buf[:n]))

	e, err := in.Next()
	require.NoError(t, err)
	assert.Equal(t, "Acme", e.Value.AsString())
}

func TestSelectOutputFormat(t *testing.T) {
	assert.Equal(t, FormatTextPlain, SelectOutputFormat(sdm.OpRead, true, false))
	assert.Equal(t, FormatCBOR, SelectOutputFormat(sdm.OpRead, true, true))
	assert.Equal(t, FormatSenMLCBOR, SelectOutputFormat(sdm.OpRead, false, false))
	assert.Equal(t, FormatLinkFormat, SelectOutputFormat(sdm.OpDiscover, false, false))
}
