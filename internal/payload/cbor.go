package payload

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/1stship/lwm2mcore/internal/sdm"
)

// cborOutput renders a single resource value as a bare CBOR item (spec.md
// §4.2 content-format 60), used for single-resource reads of binary or
// structured values where plain-text doesn't apply.
type cborOutput struct {
	baseOutput
}

func (o *cborOutput) NewEntry(e sdm.Entry) error {
	if len(o.entries) > 0 {
		return fmt.Errorf("payload: CBOR single-value carries exactly one entry")
	}
	o.add(e)
	return nil
}

func (o *cborOutput) GetPayload(buf []byte) (int, bool, error) {
	return o.drain(buf, func(entries []sdm.Entry) ([]byte, error) {
		if len(entries) == 0 {
			return nil, nil
		}
		return cbor.Marshal(valueToNative(entries[0].Value))
	})
}

// cborInput decodes a bare CBOR item into a single entry at basePath.
type cborInput struct {
	basePath sdm.Path
	typeOf   func(sdm.Path) sdm.DataType
	buf      []byte
	done     bool
}

func (in *cborInput) Feed(chunk []byte) error {
	in.buf = append(in.buf, chunk...)
	return nil
}

func (in *cborInput) Next() (sdm.Entry, error) {
	if in.done {
		return sdm.Entry{}, sdm.ErrEOF
	}
	in.done = true

	var native interface{}
	if err := cbor.Unmarshal(in.buf, &native); err != nil {
		return sdm.Entry{}, fmt.Errorf("%w: malformed CBOR item: %v", sdm.ErrBadRequest, err)
	}
	want := sdm.TypeNone
	if in.typeOf != nil {
		want = in.typeOf(in.basePath)
	}
	v, err := nativeToValue(native, want)
	if err != nil {
		return sdm.Entry{}, err
	}
	return sdm.Entry{Path: in.basePath, Type: v.Type, Value: v}, nil
}

// valueToNative converts a sdm.Value to the Go-native shape fxamacker/cbor
// encodes directly, used by every CBOR-based output codec (bare CBOR,
// SenML-CBOR field values, LwM2M-CBOR map values).
func valueToNative(v sdm.Value) interface{} {
	switch v.Type {
	case sdm.TypeString:
		return v.AsString()
	case sdm.TypeBytes:
		return v.Bytes
	case sdm.TypeInt:
		return v.Int
	case sdm.TypeUint:
		return v.Uint
	case sdm.TypeDouble:
		return v.Double
	case sdm.TypeBool:
		return v.Bool
	case sdm.TypeTime:
		return v.Time
	case sdm.TypeObjlnk:
		return fmt.Sprintf("%d:%d", v.Link.OID, v.Link.IID)
	default:
		return nil
	}
}

// nativeToValue converts a CBOR-decoded Go value back to a sdm.Value. When
// want is known it's used to pick the right tag among CBOR's overlapping
// numeric types (e.g. a decoded int64 for a TypeUint resource); when want is
// sdm.TypeNone the CBOR item's own type determines the tag.
func nativeToValue(native interface{}, want sdm.DataType) (sdm.Value, error) {
	switch x := native.(type) {
	case string:
		if want == sdm.TypeObjlnk {
			var oid, iid uint16
			if _, err := fmt.Sscanf(x, "%d:%d", &oid, &iid); err == nil {
				return sdm.ObjlnkValue(oid, iid), nil
			}
		}
		return sdm.StringValue(x), nil
	case []byte:
		return sdm.BytesValue(x), nil
	case bool:
		return sdm.BoolValue(x), nil
	case int64:
		switch want {
		case sdm.TypeUint:
			return sdm.UintValue(uint64(x)), nil
		case sdm.TypeTime:
			return sdm.TimeValue(x), nil
		case sdm.TypeDouble:
			return sdm.DoubleValue(float64(x)), nil
		default:
			return sdm.IntValue(x), nil
		}
	case uint64:
		if want == sdm.TypeInt {
			return sdm.IntValue(int64(x)), nil
		}
		return sdm.UintValue(x), nil
	case float64:
		return sdm.DoubleValue(x), nil
	case nil:
		return sdm.Value{}, fmt.Errorf("%w: null CBOR item has no LwM2M type", sdm.ErrBadRequest)
	default:
		return sdm.Value{}, fmt.Errorf("%w: unsupported CBOR item type %T", sdm.ErrBadRequest, x)
	}
}
