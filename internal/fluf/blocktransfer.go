package fluf

import "fmt"

// Transfer holds the two independent block-wise cursors a single exchange
// may need: In accumulates an inbound request/response body across several
// CON messages, Out hands out successive chunks of an outbound body that
// didn't fit one datagram. Keeping both as named fields on a value the
// caller owns (one per in-flight exchange) avoids threading block-cursor
// state through mutable package globals (design note §9).
type Transfer struct {
	In  *BlockIn
	Out *BlockOut
}

// BlockIn accumulates inbound Block1 (or Block2, for a client receiving a
// large GET response) transfers. Blocks must arrive in strict ascending
// order with no gaps; anything else is ErrIncomplete (spec.md §4.1).
type BlockIn struct {
	buf         []byte
	expectedNum uint32
	size        uint16
	started     bool
	complete    bool
}

// NewBlockIn returns an empty inbound block-transfer accumulator.
func NewBlockIn() *BlockIn { return &BlockIn{} }

// Accept appends one block's payload. opt is the Block1/Block2 option that
// accompanied it; payload is the message body.
func (b *BlockIn) Accept(opt *BlockOption, payload []byte) error {
	if b.complete {
		return fmt.Errorf("%w: block received after transfer already complete", ErrIncomplete)
	}
	if opt.Num != b.expectedNum {
		return fmt.Errorf("%w: expected block %d, got %d", ErrIncomplete, b.expectedNum, opt.Num)
	}
	if b.started && opt.Size != b.size && opt.More {
		return fmt.Errorf("%w: block size changed mid-transfer", ErrIncomplete)
	}
	b.started = true
	b.size = opt.Size
	b.buf = append(b.buf, payload...)
	b.expectedNum++
	b.complete = !opt.More
	return nil
}

// Done reports whether the final block (More=false) has been accepted.
func (b *BlockIn) Done() bool { return b.complete }

// Bytes returns everything accumulated so far.
func (b *BlockIn) Bytes() []byte { return b.buf }

// BlockOut hands out successive fixed-size chunks of a body that exceeds the
// peer's configured block size, advancing its own NUM/M state (spec.md
// §4.1: "the codec emits Block1/Block2 with num=0, more=1; subsequent
// blocks repeat with incrementing num; the final block carries more=0").
type BlockOut struct {
	body  []byte
	size  uint16
	num   uint32
}

// NewBlockOut begins an outbound transfer of body, sliced into size-byte
// blocks (one of the RFC 7959 SZX sizes).
func NewBlockOut(body []byte, size uint16) *BlockOut {
	return &BlockOut{body: body, size: size}
}

// Next returns the next block's payload and the BlockOption describing it.
// Calling Next after the transfer is exhausted returns (nil, nil, false).
func (b *BlockOut) Next() ([]byte, *BlockOption, bool) {
	start := int(b.num) * int(b.size)
	if start >= len(b.body) {
		return nil, nil, false
	}
	end := start + int(b.size)
	more := end < len(b.body)
	if end > len(b.body) {
		end = len(b.body)
	}
	opt := &BlockOption{Num: b.num, Size: b.size, More: more}
	b.num++
	return b.body[start:end], opt, true
}

// Done reports whether every block has been handed out.
func (b *BlockOut) Done() bool { return int(b.num)*int(b.size) >= len(b.body) }
