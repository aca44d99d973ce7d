package sdm

import "sort"

// DataModel holds the Object pointer array. Objects are registered once at
// initialization (spec.md §3 Lifecycle) and never added or removed during
// normal operation.
type DataModel struct {
	objects []*Object
}

// NewDataModel constructs an empty data model context.
func NewDataModel() *DataModel { return &DataModel{} }

// Register adds an Object, keeping the array ascending by OID. Calling
// Register after the first operation_begin is a caller error; the core does
// not guard against it since it is not part of the server-facing contract.
func (dm *DataModel) Register(o *Object) {
	idx := sort.Search(len(dm.objects), func(i int) bool { return dm.objects[i].OID >= o.OID })
	dm.objects = append(dm.objects, nil)
	copy(dm.objects[idx+1:], dm.objects[idx:])
	dm.objects[idx] = o
}

// Object returns the registered Object with the given OID, or nil.
func (dm *DataModel) Object(oid uint16) *Object {
	for _, o := range dm.objects {
		if o.OID == oid {
			return o
		}
	}
	return nil
}

// Objects returns the ordered (ascending OID) object slice.
func (dm *DataModel) Objects() []*Object { return dm.objects }

// locate resolves a path to whichever of (object, instance, resource,
// resource instance) it names, filling only the levels the path specifies.
// It never follows back-pointers; the caller threads the four-tuple forward
// as it descends (design note §9: parent-owning references only).
func (dm *DataModel) locate(p Path) (obj *Object, inst *Instance, res *Resource, ri *ResourceInstance, err error) {
	if !p.HasOID {
		return nil, nil, nil, nil, nil
	}
	obj = dm.Object(p.OID)
	if obj == nil {
		return nil, nil, nil, nil, ErrNotFound
	}
	if !p.HasIID {
		return obj, nil, nil, nil, nil
	}
	inst = obj.Instance(p.IID)
	if inst == nil {
		return obj, nil, nil, nil, ErrNotFound
	}
	if !p.HasRID {
		return obj, inst, nil, nil, nil
	}
	res = inst.Resource(p.RID)
	if res == nil {
		return obj, inst, nil, nil, ErrNotFound
	}
	if !p.HasRIID {
		return obj, inst, res, nil, nil
	}
	ri = res.Instance(p.RIID)
	if ri == nil {
		return obj, inst, res, nil, ErrNotFound
	}
	return obj, inst, res, ri, nil
}
