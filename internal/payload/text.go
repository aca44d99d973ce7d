package payload

import (
	"fmt"
	"strconv"

	"github.com/1stship/lwm2mcore/internal/sdm"
)

// textOutput renders a single resource value as LwM2M plain-text (spec.md
// §4.2): bool as "0"/"1", int/uint/double via strconv, bytes base64-free
// (plain-text never carries raw bytes; opaque does), objlnk as "OID:IID".
type textOutput struct {
	baseOutput
}

func (o *textOutput) NewEntry(e sdm.Entry) error {
	if len(o.entries) > 0 {
		return fmt.Errorf("payload: plain-text carries exactly one value")
	}
	o.add(e)
	return nil
}

func (o *textOutput) GetPayload(buf []byte) (int, bool, error) {
	return o.drain(buf, func(entries []sdm.Entry) ([]byte, error) {
		if len(entries) == 0 {
			return nil, nil
		}
		return renderTextValue(entries[0].Value)
	})
}

func renderTextValue(v sdm.Value) ([]byte, error) {
	switch v.Type {
	case sdm.TypeString:
		return v.Bytes, nil
	case sdm.TypeInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case sdm.TypeUint:
		return []byte(strconv.FormatUint(v.Uint, 10)), nil
	case sdm.TypeDouble:
		return []byte(strconv.FormatFloat(v.Double, 'g', -1, 64)), nil
	case sdm.TypeBool:
		if v.Bool {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	case sdm.TypeObjlnk:
		return []byte(fmt.Sprintf("%d:%d", v.Link.OID, v.Link.IID)), nil
	case sdm.TypeTime:
		return []byte(strconv.FormatInt(v.Time, 10)), nil
	default:
		return nil, fmt.Errorf("payload: type %s has no plain-text rendering", v.Type)
	}
}

// textInput decodes a plain-text body into a single entry at basePath. The
// wire form of "42" is ambiguous between int, uint and double, so the target
// DataType comes from typeOf; when typeOf is nil or returns TypeNone, the
// body is decoded as a string.
type textInput struct {
	basePath sdm.Path
	typeOf   func(sdm.Path) sdm.DataType
	buf      []byte
	done     bool
}

func (in *textInput) Feed(chunk []byte) error {
	in.buf = append(in.buf, chunk...)
	return nil
}

func (in *textInput) Next() (sdm.Entry, error) {
	if in.done {
		return sdm.Entry{}, sdm.ErrEOF
	}
	in.done = true

	want := sdm.TypeString
	if in.typeOf != nil {
		if t := in.typeOf(in.basePath); t != sdm.TypeNone {
			want = t
		}
	}
	v, err := parseTextValue(in.buf, want)
	if err != nil {
		return sdm.Entry{}, err
	}
	return sdm.Entry{Path: in.basePath, Type: want, Value: v}, nil
}

func parseTextValue(raw []byte, want sdm.DataType) (sdm.Value, error) {
	switch want {
	case sdm.TypeString:
		return sdm.StringValue(string(raw)), nil
	case sdm.TypeInt:
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return sdm.Value{}, fmt.Errorf("%w: malformed int literal %q", sdm.ErrBadRequest, raw)
		}
		return sdm.IntValue(n), nil
	case sdm.TypeUint:
		n, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return sdm.Value{}, fmt.Errorf("%w: malformed uint literal %q", sdm.ErrBadRequest, raw)
		}
		return sdm.UintValue(n), nil
	case sdm.TypeDouble:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return sdm.Value{}, fmt.Errorf("%w: malformed double literal %q", sdm.ErrBadRequest, raw)
		}
		return sdm.DoubleValue(f), nil
	case sdm.TypeBool:
		switch string(raw) {
		case "0":
			return sdm.BoolValue(false), nil
		case "1":
			return sdm.BoolValue(true), nil
		default:
			return sdm.Value{}, fmt.Errorf("%w: malformed bool literal %q", sdm.ErrBadRequest, raw)
		}
	case sdm.TypeTime:
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return sdm.Value{}, fmt.Errorf("%w: malformed time literal %q", sdm.ErrBadRequest, raw)
		}
		return sdm.TimeValue(n), nil
	case sdm.TypeObjlnk:
		var oid, iid uint16
		if _, err := fmt.Sscanf(string(raw), "%d:%d", &oid, &iid); err != nil {
			return sdm.Value{}, fmt.Errorf("%w: malformed objlnk literal %q", sdm.ErrBadRequest, raw)
		}
		return sdm.ObjlnkValue(oid, iid), nil
	default:
		return sdm.Value{}, ErrWantTypeDisambiguation
	}
}

// opaqueOutput renders a single resource's raw bytes verbatim.
type opaqueOutput struct {
	baseOutput
}

func (o *opaqueOutput) NewEntry(e sdm.Entry) error {
	if len(o.entries) > 0 {
		return fmt.Errorf("payload: opaque carries exactly one value")
	}
	o.add(e)
	return nil
}

func (o *opaqueOutput) GetPayload(buf []byte) (int, bool, error) {
	return o.drain(buf, func(entries []sdm.Entry) ([]byte, error) {
		if len(entries) == 0 {
			return nil, nil
		}
		if entries[0].Value.Type != sdm.TypeBytes {
			return nil, fmt.Errorf("payload: opaque requires a bytes value, got %s", entries[0].Value.Type)
		}
		return entries[0].Value.Bytes, nil
	})
}

// opaqueInput decodes an opaque body into a single bytes entry at basePath.
type opaqueInput struct {
	basePath sdm.Path
	buf      []byte
	done     bool
}

func (in *opaqueInput) Feed(chunk []byte) error {
	in.buf = append(in.buf, chunk...)
	return nil
}

func (in *opaqueInput) Next() (sdm.Entry, error) {
	if in.done {
		return sdm.Entry{}, sdm.ErrEOF
	}
	in.done = true
	return sdm.Entry{Path: in.basePath, Type: sdm.TypeBytes, Value: sdm.BytesValue(in.buf)}, nil
}
