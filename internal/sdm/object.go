package sdm

import "sort"

// ObjectHandler is the required transaction hook surface every Object
// implements: begin/validate/end bracket every server-driven modification
// (spec.md §3 Lifecycle). DataModel.Register does not check for it: an
// Object with a nil Handler fails with INTERNAL when an operation first
// touches it.
type ObjectHandler interface {
	OperationBegin(ctx *OpContext) error
	OperationValidate(ctx *OpContext) error
	OperationEnd(ctx *OpContext, success bool) error
}

// ObjectInstanceCreator is implemented by Objects that support CREATE. Its
// absence yields METHOD_NOT_ALLOWED on CREATE (spec.md §4.3).
type ObjectInstanceCreator interface {
	InstCreate(ctx *OpContext, iid uint16) (*Instance, error)
}

// ObjectInstanceDeleter is implemented by Objects that support DELETE on an
// Instance.
type ObjectInstanceDeleter interface {
	InstDelete(ctx *OpContext, iid uint16) error
}

// InstanceResetter is implemented by Objects whose Instances support
// WRITE_REPLACE. Its absence yields INTERNAL at operation_begin when a
// WRITE_REPLACE targets an Instance of this Object (spec.md §4.3).
type InstanceResetter interface {
	InstReset(ctx *OpContext, inst *Instance) error
}

// Object is identified by a 16-bit OID and holds an ordered Instance array
// ascending by IID, up to MaxInstances, an optional "X.Y" Version, and the
// ObjectHandler transaction vtable.
type Object struct {
	OID          uint16
	Version      string
	MaxInstances int
	Handler      ObjectHandler

	instances     []*Instance
	inTransaction bool
}

// NewObject constructs an empty Object.
func NewObject(oid uint16, version string, maxInstances int, handler ObjectHandler) *Object {
	return &Object{OID: oid, Version: version, MaxInstances: maxInstances, Handler: handler, instances: make([]*Instance, 0)}
}

// InTransaction reports whether operation_begin has been called on this
// Object without a matching operation_end (spec invariant 3).
func (o *Object) InTransaction() bool { return o.inTransaction }

// Instance returns the Instance with the given IID, or nil.
func (o *Object) Instance(iid uint16) *Instance {
	for _, inst := range o.instances {
		if inst.IID == iid {
			return inst
		}
	}
	return nil
}

// Instances returns the ordered (ascending IID) instance slice.
func (o *Object) Instances() []*Instance { return o.instances }

// addInstance inserts inst, preserving ascending IID order. Used both at
// initialization time and from CreateInstance during a CREATE transaction.
func (o *Object) addInstance(inst *Instance) {
	idx := sort.Search(len(o.instances), func(i int) bool { return o.instances[i].IID >= inst.IID })
	o.instances = append(o.instances, nil)
	copy(o.instances[idx+1:], o.instances[idx:])
	o.instances[idx] = inst
}

// AddInstance is the initialization-time equivalent of addInstance, exposed
// for standard-object constructors that pre-populate instances outside any
// transaction.
func (o *Object) AddInstance(inst *Instance) { o.addInstance(inst) }

// removeInstance deletes the Instance with the given IID, if present.
func (o *Object) removeInstance(iid uint16) {
	for i, inst := range o.instances {
		if inst.IID == iid {
			o.instances = append(o.instances[:i], o.instances[i+1:]...)
			return
		}
	}
}

// ObjectSnapshot is an opaque deep copy of an Object's mutable Instance tree,
// taken at operation_begin time so a handler can implement operation_rollback
// (spec invariant 6) by restoring it wholesale on failure.
type ObjectSnapshot struct {
	instances []*Instance
}

// Snapshot deep-copies the current Instance tree.
func (o *Object) Snapshot() *ObjectSnapshot {
	clone := make([]*Instance, len(o.instances))
	for i, inst := range o.instances {
		clone[i] = inst.clone()
	}
	return &ObjectSnapshot{instances: clone}
}

// Restore replaces the current Instance tree with a prior Snapshot.
func (o *Object) Restore(s *ObjectSnapshot) {
	o.instances = s.instances
}

// ExcludedFromRegister reports whether oid is excluded from Register
// link-format output (spec.md §3: Security and OSCORE objects).
func ExcludedFromRegister(oid uint16) bool {
	return oid == OIDSecurity || oid == OIDOSCORE
}

// Standard object IDs named throughout spec.md.
const (
	OIDSecurity uint16 = 0
	OIDServer   uint16 = 1
	OIDDevice   uint16 = 3
	OIDOSCORE   uint16 = 21
)
