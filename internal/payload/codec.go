// Package payload implements the six LwM2M payload codecs (spec.md §4.2):
// plain-text, opaque, CBOR, SenML-CBOR, LwM2M-CBOR, and the Register/
// Discover link-format text output.
package payload

import (
	"fmt"

	"github.com/1stship/lwm2mcore/internal/sdm"
)

// Format identifies a content-format the payload package knows how to
// encode/decode. Values equal the CoAP Content-Format Registry ids used
// throughout spec.md §4.1/§4.2.
type Format int

const (
	FormatTextPlain  Format = 0
	FormatOpaque     Format = 42
	FormatCBOR       Format = 60
	FormatSenMLCBOR  Format = 112
	FormatLwM2MCBOR  Format = 11544
	FormatLinkFormat Format = 40
)

// OutputCodec accumulates entries and renders them to a wire payload,
// spilling across multiple GetPayload calls when the result doesn't fit the
// caller's buffer (spec.md §4.2).
type OutputCodec interface {
	NewEntry(e sdm.Entry) error
	GetPayload(buf []byte) (n int, more bool, err error)
}

// InputCodec is fed raw bytes (possibly in several chunks across block-wise
// transfer) and yields (path, type, value) tuples.
type InputCodec interface {
	Feed(chunk []byte) error
	Next() (sdm.Entry, error) // returns sdm.ErrEOF once exhausted
}

// ErrWantTypeDisambiguation is returned by the plain-text decoder when the
// target DataType it was given has no plain-text parser (e.g. bytes). A
// caller that supplies no DataType does not get this error: the body is
// decoded as a string.
var ErrWantTypeDisambiguation = fmt.Errorf("payload: ambiguous numeric literal needs a declared type")

// SelectOutputFormat implements the automatic codec selection spec.md §4.2
// describes for CONTENT_FORMAT_NOT_DEFINED: single-resource READ picks
// plain-text (or CBOR if the payload is non-text), multi-entry/composite
// operations and notify/send pick SenML-CBOR, otherwise LwM2M-CBOR.
func SelectOutputFormat(op sdm.Operation, singleResource bool, binaryValue bool) Format {
	switch op {
	case sdm.OpRead:
		if singleResource {
			if binaryValue {
				return FormatCBOR
			}
			return FormatTextPlain
		}
		return FormatSenMLCBOR
	case sdm.OpReadComposite, sdm.OpWriteComposite:
		return FormatSenMLCBOR
	case sdm.OpDiscover:
		return FormatLinkFormat
	default:
		return FormatLwM2MCBOR
	}
}

// NewOutputCodec constructs the codec for format, targeting entries under
// basePath.
func NewOutputCodec(format Format, basePath sdm.Path) (OutputCodec, error) {
	switch format {
	case FormatTextPlain:
		return &textOutput{}, nil
	case FormatOpaque:
		return &opaqueOutput{}, nil
	case FormatCBOR:
		return &cborOutput{}, nil
	case FormatSenMLCBOR:
		return &senMLOutput{basePath: basePath}, nil
	case FormatLwM2MCBOR:
		return &lwm2mCBOROutput{basePath: basePath}, nil
	case FormatLinkFormat:
		return &linkFormatOutput{}, nil
	default:
		return nil, fmt.Errorf("payload: unsupported output format %d", format)
	}
}

// NewInputCodec constructs the decoder for format, whose entries are
// resolved relative to basePath and typed per typeOf (the data model
// supplies a resource's declared type for a decoded path; decoders that
// carry no implicit type, like plain-text, rely on it to disambiguate).
func NewInputCodec(format Format, basePath sdm.Path, typeOf func(sdm.Path) sdm.DataType) (InputCodec, error) {
	switch format {
	case FormatTextPlain:
		return &textInput{basePath: basePath, typeOf: typeOf}, nil
	case FormatOpaque:
		return &opaqueInput{basePath: basePath}, nil
	case FormatCBOR:
		return &cborInput{basePath: basePath, typeOf: typeOf}, nil
	case FormatSenMLCBOR:
		return &senMLInput{typeOf: typeOf}, nil
	case FormatLwM2MCBOR:
		return &lwm2mCBORInput{typeOf: typeOf}, nil
	default:
		return nil, fmt.Errorf("payload: unsupported input format %d", format)
	}
}

// baseOutput provides the common accumulate-then-drain GetPayload
// implementation every OutputCodec uses: entries collect until the first
// GetPayload call, which renders once and then drains the result across as
// many calls as the caller's buffer size requires.
type baseOutput struct {
	entries []sdm.Entry
	built   []byte
	cursor  int
}

func (b *baseOutput) add(e sdm.Entry) { b.entries = append(b.entries, e) }

func (b *baseOutput) drain(buf []byte, render func([]sdm.Entry) ([]byte, error)) (int, bool, error) {
	if b.built == nil {
		built, err := render(b.entries)
		if err != nil {
			return 0, false, err
		}
		b.built = built
	}
	n := copy(buf, b.built[b.cursor:])
	b.cursor += n
	return n, b.cursor < len(b.built), nil
}
