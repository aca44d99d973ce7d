package sdm

import "sort"

// Instance is an Object Instance identified by a 16-bit IID, holding an
// ordered array of Resources ascending by RID.
type Instance struct {
	IID       uint16
	resources []*Resource
}

// NewInstance constructs an empty instance with the given IID.
func NewInstance(iid uint16) *Instance {
	return &Instance{IID: iid, resources: make([]*Resource, 0)}
}

// AddResource inserts r, preserving ascending RID order (spec invariant 1).
// Intended for object initialization; server-driven mutation never adds a
// Resource outright, only Resource Instances within one.
func (inst *Instance) AddResource(r *Resource) {
	idx := sort.Search(len(inst.resources), func(i int) bool { return inst.resources[i].RID >= r.RID })
	inst.resources = append(inst.resources, nil)
	copy(inst.resources[idx+1:], inst.resources[idx:])
	inst.resources[idx] = r
}

// Resource returns the Resource with the given RID, or nil.
func (inst *Instance) Resource(rid uint16) *Resource {
	for _, r := range inst.resources {
		if r.RID == rid {
			return r
		}
	}
	return nil
}

// Resources returns the ordered (ascending RID) resource slice.
func (inst *Instance) Resources() []*Resource { return inst.resources }

func (inst *Instance) clone() *Instance {
	c := &Instance{IID: inst.IID, resources: make([]*Resource, len(inst.resources))}
	for i, r := range inst.resources {
		c.resources[i] = r.clone()
	}
	return c
}
