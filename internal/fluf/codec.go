package fluf

import (
	"crypto/rand"
	mrand "math/rand"
)

// Encoder owns the message-id sequence and token PRNG for one server
// connection (spec.md §4.1 Encoding: "Token generation uses a seeded PRNG;
// message-ids wrap at 16 bits"). One Encoder per server: message ids and
// tokens are never shared across independent state machines (spec.md §5
// "no resource is shared across server state machines").
type Encoder struct {
	nextMessageID uint16
	rng           *mrand.Rand
}

// NewEncoder seeds the token PRNG from crypto/rand so distinct client runs
// don't collide; a deterministic seed can be supplied via NewEncoderSeeded
// for reproducible tests.
func NewEncoder() *Encoder {
	var seed int64
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		for _, x := range b {
			seed = seed<<8 | int64(x)
		}
	}
	return NewEncoderSeeded(seed)
}

// NewEncoderSeeded constructs an Encoder with a caller-chosen PRNG seed.
func NewEncoderSeeded(seed int64) *Encoder {
	return &Encoder{rng: mrand.New(mrand.NewSource(seed))}
}

// NextToken generates a token of the given length (0..8 bytes).
func (e *Encoder) NextToken(length int) []byte {
	tok := make([]byte, length)
	e.rng.Read(tok)
	return tok
}

// NextMessageID returns the next message id, wrapping at 16 bits.
func (e *Encoder) NextMessageID() uint16 {
	id := e.nextMessageID
	e.nextMessageID++
	return id
}
