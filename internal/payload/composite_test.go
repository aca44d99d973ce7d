package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1stship/lwm2mcore/internal/sdm"
)

func TestSenMLCBORRoundTripMultipleResources(t *testing.T) {
	base := sdm.InstancePath(3, 0)
	out, err := NewOutputCodec(FormatSenMLCBOR, base)
	require.NoError(t, err)
	require.NoError(t, out.NewEntry(sdm.Entry{Path: sdm.ResourcePath(3, 0, 0), Type: sdm.TypeString, Value: sdm.StringValue("Acme")}))
	require.NoError(t, out.NewEntry(sdm.Entry{Path: sdm.ResourcePath(3, 0, 9), Type: sdm.TypeInt, Value: sdm.IntValue(85)}))

	buf := make([]byte, 512)
	n, _, err := out.GetPayload(buf)
	require.NoError(t, err)

	in, err := NewInputCodec(FormatSenMLCBOR, base, func(p sdm.Path) sdm.DataType {
		if p.RID == 9 {
			return sdm.TypeInt
		}
		return sdm.TypeString
	})
	require.NoError(t, err)
	require.NoError(t, in.Feed(buf[:n]))

	e1, err := in.Next()
	require.NoError(t, err)
	assert.Equal(t, "Acme", e1.Value.AsString())

	e2, err := in.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(85), e2.Value.Int)
	assert.Equal(t, uint16(9), e2.Path.RID)

	_, err = in.Next()
	assert.ErrorIs(t, err, sdm.ErrEOF)
}

func TestLwM2MCBORRoundTripNestedTree(t *testing.T) {
	base := sdm.InstancePath(3, 0)
	out, err := NewOutputCodec(FormatLwM2MCBOR, base)
	require.NoError(t, err)
	require.NoError(t, out.NewEntry(sdm.Entry{Path: sdm.ResourcePath(3, 0, 0), Type: sdm.TypeString, Value: sdm.StringValue("Acme")}))
	require.NoError(t, out.NewEntry(sdm.Entry{Path: sdm.ResourcePath(3, 0, 9), Type: sdm.TypeInt, Value: sdm.IntValue(85)}))

	buf := make([]byte, 512)
	n, _, err := out.GetPayload(buf)
	require.NoError(t, err)

	in, err := NewInputCodec(FormatLwM2MCBOR, base, func(p sdm.Path) sdm.DataType {
		if p.RID == 9 {
			return sdm.TypeInt
		}
		return sdm.TypeString
	})
	require.NoError(t, err)
	require.NoError(t, in.Feed(buf[:n]))

	seen := map[uint16]sdm.Value{}
	for {
		e, err := in.Next()
		if err == sdm.ErrEOF {
			break
		}
		require.NoError(t, err)
		seen[e.Path.RID] = e.Value
	}
	require.Len(t, seen, 2)
	assert.Equal(t, "Acme", seen[0].AsString())
	assert.Equal(t, int64(85), seen[9].Int)
}
