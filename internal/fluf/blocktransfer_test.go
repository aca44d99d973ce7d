package fluf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockOutSplitsIntoFixedChunks(t *testing.T) {
	body := make([]byte, 25)
	for i := range body {
		body[i] = byte(i)
	}
	out := NewBlockOut(body, 16)

	chunk1, opt1, ok := out.Next()
	require.True(t, ok)
	assert.Len(t, chunk1, 16)
	assert.True(t, opt1.More)
	assert.Equal(t, uint32(0), opt1.Num)

	chunk2, opt2, ok := out.Next()
	require.True(t, ok)
	assert.Len(t, chunk2, 9)
	assert.False(t, opt2.More)
	assert.Equal(t, uint32(1), opt2.Num)

	assert.True(t, out.Done())
	_, _, ok = out.Next()
	assert.False(t, ok)
}

func TestBlockInReassemblesInOrder(t *testing.T) {
	in := NewBlockIn()
	require.NoError(t, in.Accept(&BlockOption{Num: 0, Size: 16, More: true}, []byte("0123456789abcdef")))
	assert.False(t, in.Done())
	require.NoError(t, in.Accept(&BlockOption{Num: 1, Size: 16, More: false}, []byte("ghi")))
	assert.True(t, in.Done())
	assert.Equal(t, "0123456789abcdefghi", string(in.Bytes()))
}

func TestBlockInRejectsOutOfOrder(t *testing.T) {
	in := NewBlockIn()
	require.NoError(t, in.Accept(&BlockOption{Num: 0, Size: 16, More: true}, []byte("0123456789abcdef")))
	err := in.Accept(&BlockOption{Num: 2, Size: 16, More: false}, []byte("x"))
	assert.ErrorIs(t, err, ErrIncomplete)
}
