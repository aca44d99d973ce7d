package sdm

import "sort"

// ResourceKind is the closed set of operation kinds a Resource may declare.
// BS_RW resources are read-only to ordinary servers but writable for the
// duration of a bootstrap operation (spec invariant 4).
type ResourceKind int

const (
	KindR ResourceKind = iota
	KindRM
	KindW
	KindWM
	KindRW
	KindRWM
	KindE
	KindBsRW
)

// Readable returns true for kinds a non-bootstrap READ may target.
func (k ResourceKind) Readable() bool {
	switch k {
	case KindR, KindRM, KindRW, KindRWM, KindBsRW:
		return true
	default:
		return false
	}
}

// Writable returns true for kinds a non-bootstrap WRITE may target.
func (k ResourceKind) Writable() bool {
	switch k {
	case KindW, KindWM, KindRW, KindRWM:
		return true
	default:
		return false
	}
}

// Multi returns true for kinds backed by an array of Resource Instances.
func (k ResourceKind) Multi() bool {
	switch k {
	case KindRM, KindWM, KindRWM:
		return true
	default:
		return false
	}
}

// Readable/Writable/Executable/InstanceCreator/InstanceDeleter are the
// handler surfaces a Resource.Handler may optionally implement. This is the
// Go rendering of "a sum type over {Readable, Writable, Executable,
// Bootstrap-only}" (design note, §9): rather than a vtable of nullable
// function pointers, dispatch does a type assertion per capability, and a
// Resource with no Handler at all falls back to its inline value cell.
type Readable interface {
	ResRead(ctx *OpContext, riid uint16) (Value, error)
}

type Writable interface {
	ResWrite(ctx *OpContext, riid uint16, v Value) error
}

type Executable interface {
	ResExecute(ctx *OpContext, args []byte) error
}

type InstanceCreator interface {
	ResInstCreate(ctx *OpContext, riid uint16) (*ResourceInstance, error)
}

type InstanceDeleter interface {
	ResInstDelete(ctx *OpContext, riid uint16) error
}

// ResourceInstance is a single element of a multi-instance Resource's array,
// identified by a 16-bit RIID.
type ResourceInstance struct {
	RIID  uint16
	Value Value
}

// Resource is identified by an RID and declares a DataType and Kind. A
// single-valued resource holds `value`; a multi-instance resource holds an
// ordered `instances` slice instead. Execute (E) resources hold neither.
type Resource struct {
	RID     uint16
	Type    DataType
	Kind    ResourceKind
	Handler any // optionally Readable/Writable/Executable/InstanceCreator/InstanceDeleter

	value     Value
	instances []*ResourceInstance
}

// NewResource constructs a resource with an empty value; callers set the
// initial value with SetInline.
func NewResource(rid uint16, typ DataType, kind ResourceKind, handler any) *Resource {
	return &Resource{RID: rid, Type: typ, Kind: kind, Handler: handler}
}

// NewMultiResource constructs a multi-instance resource.
func NewMultiResource(rid uint16, typ DataType, kind ResourceKind, handler any) *Resource {
	r := &Resource{RID: rid, Type: typ, Kind: kind, Handler: handler}
	r.instances = make([]*ResourceInstance, 0)
	return r
}

// SetInline sets the inline value cell directly, used when Handler does not
// implement Writable (dispatch writes the value cell directly per §4.3).
func (r *Resource) SetInline(v Value) { r.value = v }

// Inline returns the inline value cell.
func (r *Resource) Inline() Value { return r.value }

// Instance returns the Resource Instance with the given RIID, or nil.
func (r *Resource) Instance(riid uint16) *ResourceInstance {
	for _, ri := range r.instances {
		if ri.RIID == riid {
			return ri
		}
	}
	return nil
}

// Instances returns the ordered (ascending RIID) instance slice.
func (r *Resource) Instances() []*ResourceInstance { return r.instances }

// SeedInstance populates an initial Resource Instance outside any
// transaction, for object construction time (spec.md §3 Lifecycle: Objects
// are registered once at initialization).
func (r *Resource) SeedInstance(riid uint16, v Value) {
	r.insertInstanceSorted(&ResourceInstance{RIID: riid, Value: v})
}

// insertInstanceSorted inserts ri into the instances slice, preserving
// ascending order by RIID (spec invariant 1 and 5: any handler-created
// Resource Instance must leave the array ascending before control returns).
func (r *Resource) insertInstanceSorted(ri *ResourceInstance) {
	idx := sort.Search(len(r.instances), func(i int) bool { return r.instances[i].RIID >= ri.RIID })
	r.instances = append(r.instances, nil)
	copy(r.instances[idx+1:], r.instances[idx:])
	r.instances[idx] = ri
}

func (r *Resource) clone() *Resource {
	c := &Resource{RID: r.RID, Type: r.Type, Kind: r.Kind, Handler: r.Handler, value: r.value}
	if r.instances != nil {
		c.instances = make([]*ResourceInstance, len(r.instances))
		for i, ri := range r.instances {
			riCopy := *ri
			c.instances[i] = &riCopy
		}
	}
	return c
}

// removeInstance deletes the Resource Instance with the given RIID, if present.
func (r *Resource) removeInstance(riid uint16) {
	for i, ri := range r.instances {
		if ri.RIID == riid {
			r.instances = append(r.instances[:i], r.instances[i+1:]...)
			return
		}
	}
}
