package payload

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/1stship/lwm2mcore/internal/sdm"
)

// SenML-CBOR label numbers (RFC 8428 §6, CBOR variant): base name, base
// time, name, value, string value, bool value, data value, time.
const (
	senMLLabelBaseName = -2
	senMLLabelBaseTime = -3
	senMLLabelName     = 0
	senMLLabelValue    = 2
	senMLLabelString   = 3
	senMLLabelBool     = 4
	senMLLabelTime     = 6
	senMLLabelData     = 8
)

type senMLRecord struct {
	BaseName *string  `cbor:"-2,omitempty,keyasint"`
	BaseTime *float64 `cbor:"-3,omitempty,keyasint"`
	Name     *string  `cbor:"0,omitempty,keyasint"`
	Value    *float64 `cbor:"2,omitempty,keyasint"`
	VString  *string  `cbor:"3,omitempty,keyasint"`
	VBool    *bool    `cbor:"4,omitempty,keyasint"`
	Time     *float64 `cbor:"6,omitempty,keyasint"`
	VData    []byte   `cbor:"8,omitempty,keyasint"`
}

// senMLOutput renders a composite READ/NOTIFY result as a SenML-CBOR array
// (spec.md §4.2). The first record carries the base name: the textual form
// of basePath, which every later record's own name is relative to, matching
// how AVSystem's Anjay builds SenML pack bodies off an anchor path.
type senMLOutput struct {
	baseOutput
	basePath sdm.Path
}

func (o *senMLOutput) NewEntry(e sdm.Entry) error {
	o.add(e)
	return nil
}

func (o *senMLOutput) GetPayload(buf []byte) (int, bool, error) {
	return o.drain(buf, func(entries []sdm.Entry) ([]byte, error) {
		base := pathString(o.basePath)
		records := make([]senMLRecord, 0, len(entries)+1)
		for i, e := range entries {
			rec := senMLRecord{}
			name := strings.TrimPrefix(pathString(e.Path), base)
			if i == 0 {
				b := base
				rec.BaseName = &b
			}
			if name != "" {
				rec.Name = &name
			}
			if err := fillSenMLValue(&rec, e.Value); err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
		return cbor.Marshal(records)
	})
}

func fillSenMLValue(rec *senMLRecord, v sdm.Value) error {
	switch v.Type {
	case sdm.TypeInt:
		f := float64(v.Int)
		rec.Value = &f
	case sdm.TypeUint:
		f := float64(v.Uint)
		rec.Value = &f
	case sdm.TypeDouble:
		f := v.Double
		rec.Value = &f
	case sdm.TypeTime:
		f := float64(v.Time)
		rec.Value = &f
	case sdm.TypeBool:
		b := v.Bool
		rec.VBool = &b
	case sdm.TypeString:
		s := v.AsString()
		rec.VString = &s
	case sdm.TypeBytes:
		rec.VData = v.Bytes
	case sdm.TypeObjlnk:
		s := fmt.Sprintf("%d:%d", v.Link.OID, v.Link.IID)
		rec.VString = &s
	default:
		return fmt.Errorf("payload: type %s has no SenML-CBOR rendering", v.Type)
	}
	return nil
}

func pathString(p sdm.Path) string {
	var b strings.Builder
	if p.HasOID {
		fmt.Fprintf(&b, "/%d", p.OID)
	}
	if p.HasIID {
		fmt.Fprintf(&b, "/%d", p.IID)
	}
	if p.HasRID {
		fmt.Fprintf(&b, "/%d", p.RID)
	}
	if p.HasRIID {
		fmt.Fprintf(&b, "/%d", p.RIID)
	}
	return b.String()
}

// senMLInput decodes a SenML-CBOR array into entries, resolving each
// record's path against a running base name carried forward from the most
// recent record that set one (RFC 8428 §4.1: base fields apply to all
// subsequent records until overridden).
type senMLInput struct {
	typeOf func(sdm.Path) sdm.DataType
	buf    []byte
	recs   []senMLRecord
	cursor int
	parsed bool
}

func (in *senMLInput) Feed(chunk []byte) error {
	in.buf = append(in.buf, chunk...)
	return nil
}

func (in *senMLInput) Next() (sdm.Entry, error) {
	if !in.parsed {
		if err := cbor.Unmarshal(in.buf, &in.recs); err != nil {
			return sdm.Entry{}, fmt.Errorf("%w: malformed SenML-CBOR: %v", sdm.ErrBadRequest, err)
		}
		in.parsed = true
	}
	if in.cursor >= len(in.recs) {
		return sdm.Entry{}, sdm.ErrEOF
	}

	var base string
	for i := 0; i <= in.cursor; i++ {
		if in.recs[i].BaseName != nil {
			base = *in.recs[i].BaseName
		}
	}
	rec := in.recs[in.cursor]
	in.cursor++

	full := base
	if rec.Name != nil {
		full += *rec.Name
	}
	path, err := parseSenMLPath(full)
	if err != nil {
		return sdm.Entry{}, err
	}
	want := sdm.TypeNone
	if in.typeOf != nil {
		want = in.typeOf(path)
	}
	v, err := recordToValue(rec, want)
	if err != nil {
		return sdm.Entry{}, err
	}
	return sdm.Entry{Path: path, Type: v.Type, Value: v}, nil
}

func recordToValue(rec senMLRecord, want sdm.DataType) (sdm.Value, error) {
	switch {
	case rec.Value != nil:
		switch want {
		case sdm.TypeInt:
			return sdm.IntValue(int64(*rec.Value)), nil
		case sdm.TypeUint:
			return sdm.UintValue(uint64(*rec.Value)), nil
		case sdm.TypeTime:
			return sdm.TimeValue(int64(*rec.Value)), nil
		default:
			return sdm.DoubleValue(*rec.Value), nil
		}
	case rec.VBool != nil:
		return sdm.BoolValue(*rec.VBool), nil
	case rec.VString != nil:
		if want == sdm.TypeObjlnk {
			var oid, iid uint16
			if _, err := fmt.Sscanf(*rec.VString, "%d:%d", &oid, &iid); err == nil {
				return sdm.ObjlnkValue(oid, iid), nil
			}
		}
		return sdm.StringValue(*rec.VString), nil
	case rec.VData != nil:
		return sdm.BytesValue(rec.VData), nil
	default:
		return sdm.Value{}, fmt.Errorf("%w: SenML record carries no value field", sdm.ErrBadRequest)
	}
}

func parseSenMLPath(s string) (sdm.Path, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return sdm.RootPath(), nil
	}
	parts := strings.Split(s, "/")
	if len(parts) > 4 {
		return sdm.Path{}, fmt.Errorf("%w: SenML path %q too deep", sdm.ErrBadRequest, s)
	}
	ids := make([]uint16, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return sdm.Path{}, fmt.Errorf("%w: malformed SenML path %q", sdm.ErrBadRequest, s)
		}
		ids[i] = uint16(n)
	}
	var p sdm.Path
	if len(ids) > 0 {
		p.HasOID, p.OID = true, ids[0]
	}
	if len(ids) > 1 {
		p.HasIID, p.IID = true, ids[1]
	}
	if len(ids) > 2 {
		p.HasRID, p.RID = true, ids[2]
	}
	if len(ids) > 3 {
		p.HasRIID, p.RIID = true, ids[3]
	}
	return p, nil
}
