package fluf

import (
	"encoding/binary"
	"fmt"
)

// CoAP option numbers recognized by the codec (spec.md §4.1).
const (
	OptIfMatch      uint16 = 1
	OptUriHost      uint16 = 3
	OptETag         uint16 = 4
	OptIfNoneMatch  uint16 = 5
	OptObserve      uint16 = 6
	OptUriPort      uint16 = 7
	OptLocationPath uint16 = 8
	OptUriPath      uint16 = 11
	OptContentFormat uint16 = 12
	OptMaxAge       uint16 = 14
	OptUriQuery     uint16 = 15
	OptAccept       uint16 = 17
	OptLocationQuery uint16 = 20
	OptBlock2       uint16 = 23
	OptBlock1       uint16 = 27
	OptSize2        uint16 = 28
	OptSize1        uint16 = 60
)

// rawOption is one decoded/to-be-encoded CoAP option.
type rawOption struct {
	Number uint16
	Value  []byte
}

// decodeOptions walks CoAP options in ascending-delta order starting at buf,
// returning the parsed options and the offset of the first byte after the
// options section (the 0xFF payload marker, if present, or len(buf)).
func decodeOptions(buf []byte) ([]rawOption, int, error) {
	var opts []rawOption
	var runningNumber uint16
	i := 0
	for i < len(buf) {
		if buf[i] == 0xFF {
			return opts, i, nil
		}
		deltaNibble := (buf[i] >> 4) & 0x0F
		lengthNibble := buf[i] & 0x0F
		i++

		delta, i2, err := extendedValue(buf, i, deltaNibble)
		if err != nil {
			return nil, 0, err
		}
		i = i2
		length, i3, err := extendedValue(buf, i, lengthNibble)
		if err != nil {
			return nil, 0, err
		}
		i = i3

		if i+int(length) > len(buf) {
			return nil, 0, fmt.Errorf("%w: option value truncated", ErrFormat)
		}
		runningNumber += uint16(delta)
		val := append([]byte(nil), buf[i:i+int(length)]...)
		opts = append(opts, rawOption{Number: runningNumber, Value: val})
		i += int(length)
	}
	return opts, i, nil
}

// extendedValue decodes a CoAP option delta/length nibble plus its 0/1/2
// extension bytes (RFC 7252 §3.1), returning the resolved value and the new
// offset.
func extendedValue(buf []byte, i int, nibble byte) (uint32, int, error) {
	switch {
	case nibble <= 12:
		return uint32(nibble), i, nil
	case nibble == 13:
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("%w: truncated option extension", ErrFormat)
		}
		return uint32(buf[i]) + 13, i + 1, nil
	case nibble == 14:
		if i+1 >= len(buf) {
			return 0, 0, fmt.Errorf("%w: truncated option extension", ErrFormat)
		}
		return uint32(binary.BigEndian.Uint16(buf[i:i+2])) + 269, i + 2, nil
	default:
		return 0, 0, fmt.Errorf("%w: reserved option extension nibble 15", ErrFormat)
	}
}

// encodeOptions emits opts (already sorted ascending by Number, caller's
// responsibility per spec.md §4.1 "callers must not interleave") into buf.
func encodeOptions(opts []rawOption) []byte {
	var out []byte
	var prev uint16
	for _, o := range opts {
		delta := o.Number - prev
		prev = o.Number
		out = append(out, encodeOneOption(delta, o.Value)...)
	}
	return out
}

func encodeOneOption(delta uint16, value []byte) []byte {
	deltaNibble, deltaExt := splitExtended(uint32(delta))
	lengthNibble, lengthExt := splitExtended(uint32(len(value)))
	out := []byte{(deltaNibble << 4) | lengthNibble}
	out = append(out, deltaExt...)
	out = append(out, lengthExt...)
	out = append(out, value...)
	return out
}

func splitExtended(v uint32) (byte, []byte) {
	switch {
	case v <= 12:
		return byte(v), nil
	case v <= 12+255:
		return 13, []byte{byte(v - 13)}
	default:
		ext := make([]byte, 2)
		binary.BigEndian.PutUint16(ext, uint16(v-269))
		return 14, ext
	}
}
