package payload

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/1stship/lwm2mcore/internal/sdm"
)

// lwm2mCBOROutput renders entries as the nested-map LwM2M-CBOR form (spec.md
// §4.2): {OID: {IID: {RID: value | {RIID: value}}}}. Map keys are CBOR
// integers (fxamacker/cbor's keyasint map type), not strings.
type lwm2mCBOROutput struct {
	baseOutput
	basePath sdm.Path
}

func (o *lwm2mCBOROutput) NewEntry(e sdm.Entry) error {
	o.add(e)
	return nil
}

func (o *lwm2mCBOROutput) GetPayload(buf []byte) (int, bool, error) {
	return o.drain(buf, func(entries []sdm.Entry) ([]byte, error) {
		tree := map[uint16]interface{}{}
		for _, e := range entries {
			if err := insertIntoTree(tree, e.Path, e.Value); err != nil {
				return nil, err
			}
		}
		return cbor.Marshal(tree)
	})
}

func insertIntoTree(tree map[uint16]interface{}, p sdm.Path, v sdm.Value) error {
	if !p.HasOID {
		return fmt.Errorf("payload: LwM2M-CBOR entry has no object id")
	}
	objLevel, _ := tree[p.OID].(map[uint16]interface{})
	if objLevel == nil {
		objLevel = map[uint16]interface{}{}
		tree[p.OID] = objLevel
	}
	if !p.HasIID {
		return nil
	}
	instLevel, _ := objLevel[p.IID].(map[uint16]interface{})
	if instLevel == nil {
		instLevel = map[uint16]interface{}{}
		objLevel[p.IID] = instLevel
	}
	if !p.HasRID {
		return nil
	}
	if !p.HasRIID {
		instLevel[p.RID] = valueToNative(v)
		return nil
	}
	resLevel, _ := instLevel[p.RID].(map[uint16]interface{})
	if resLevel == nil {
		resLevel = map[uint16]interface{}{}
		instLevel[p.RID] = resLevel
	}
	resLevel[p.RIID] = valueToNative(v)
	return nil
}

// lwm2mCBORInput decodes a nested LwM2M-CBOR map back into a flat entry
// list, walking the tree depth-first in ascending key order to satisfy the
// same iteration contract read_entry promises (spec.md §4.3).
type lwm2mCBORInput struct {
	typeOf  func(sdm.Path) sdm.DataType
	buf     []byte
	entries []sdm.Entry
	cursor  int
	parsed  bool
}

func (in *lwm2mCBORInput) Feed(chunk []byte) error {
	in.buf = append(in.buf, chunk...)
	return nil
}

func (in *lwm2mCBORInput) Next() (sdm.Entry, error) {
	if !in.parsed {
		var tree map[uint16]cbor.RawMessage
		if err := cbor.Unmarshal(in.buf, &tree); err != nil {
			return sdm.Entry{}, fmt.Errorf("%w: malformed LwM2M-CBOR: %v", sdm.ErrBadRequest, err)
		}
		entries, err := flattenTree(tree, sdm.RootPath(), in.typeOf)
		if err != nil {
			return sdm.Entry{}, err
		}
		in.entries = entries
		in.parsed = true
	}
	if in.cursor >= len(in.entries) {
		return sdm.Entry{}, sdm.ErrEOF
	}
	e := in.entries[in.cursor]
	in.cursor++
	return e, nil
}

// flattenTree walks a decoded LwM2M-CBOR level depth-first in ascending key
// order. Each raw CBOR item is first tried as a nested map (an object or
// instance level); if that fails to parse it's a leaf value.
func flattenTree(level map[uint16]cbor.RawMessage, prefix sdm.Path, typeOf func(sdm.Path) sdm.DataType) ([]sdm.Entry, error) {
	keys := sortedKeys(level)
	var out []sdm.Entry
	for _, k := range keys {
		p := extendPath(prefix, k)
		raw := level[k]

		var sub map[uint16]cbor.RawMessage
		if err := cbor.Unmarshal(raw, &sub); err == nil && p.Depth() < 4 {
			children, err := flattenTree(sub, p, typeOf)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
			continue
		}

		var native interface{}
		if err := cbor.Unmarshal(raw, &native); err != nil {
			return nil, fmt.Errorf("%w: malformed LwM2M-CBOR leaf at %v: %v", sdm.ErrBadRequest, p, err)
		}
		want := sdm.TypeNone
		if typeOf != nil {
			want = typeOf(p)
		}
		v, err := nativeToValue(native, want)
		if err != nil {
			return nil, err
		}
		out = append(out, sdm.Entry{Path: p, Type: v.Type, Value: v})
	}
	return out, nil
}

func sortedKeys(m map[uint16]cbor.RawMessage) []uint16 {
	keys := make([]uint16, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func extendPath(p sdm.Path, id uint16) sdm.Path {
	switch {
	case !p.HasOID:
		return sdm.ObjectPath(id)
	case !p.HasIID:
		return sdm.InstancePath(p.OID, id)
	case !p.HasRID:
		return sdm.ResourcePath(p.OID, p.IID, id)
	default:
		return sdm.ResourceInstancePath(p.OID, p.IID, p.RID, id)
	}
}
