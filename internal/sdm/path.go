package sdm

import "fmt"

// Path is a URI path of up to four components (OID, IID, RID, RIID), each
// optionally present. The root path has zero components set.
type Path struct {
	HasOID, HasIID, HasRID, HasRIID bool
	OID, IID, RID, RIID             uint16
}

// RootPath returns the zero-component path.
func RootPath() Path { return Path{} }

// ObjectPath returns a one-component path.
func ObjectPath(oid uint16) Path { return Path{HasOID: true, OID: oid} }

// InstancePath returns a two-component path.
func InstancePath(oid, iid uint16) Path {
	return Path{HasOID: true, OID: oid, HasIID: true, IID: iid}
}

// ResourcePath returns a three-component path.
func ResourcePath(oid, iid, rid uint16) Path {
	return Path{HasOID: true, OID: oid, HasIID: true, IID: iid, HasRID: true, RID: rid}
}

// ResourceInstancePath returns a four-component path.
func ResourceInstancePath(oid, iid, rid, riid uint16) Path {
	return Path{HasOID: true, OID: oid, HasIID: true, IID: iid, HasRID: true, RID: rid, HasRIID: true, RIID: riid}
}

// Depth returns how many of the four components are present (0..4).
func (p Path) Depth() int {
	d := 0
	if p.HasOID {
		d++
	}
	if p.HasIID {
		d++
	}
	if p.HasRID {
		d++
	}
	if p.HasRIID {
		d++
	}
	return d
}

// IsRoot reports whether p has zero components.
func (p Path) IsRoot() bool { return p.Depth() == 0 }

// Equal reports whether p and other name the same entity.
func (p Path) Equal(other Path) bool {
	if p.Depth() != other.Depth() {
		return false
	}
	if p.HasOID && p.OID != other.OID {
		return false
	}
	if p.HasIID && p.IID != other.IID {
		return false
	}
	if p.HasRID && p.RID != other.RID {
		return false
	}
	if p.HasRIID && p.RIID != other.RIID {
		return false
	}
	return true
}

// HasPrefix reports whether prefix's components are a leading subsequence of
// p's components, i.e. p lies at or under prefix's path: prefix.Depth() <=
// p.Depth() and all shared components agree.
func (p Path) HasPrefix(prefix Path) bool {
	if prefix.Depth() > p.Depth() {
		return false
	}
	if prefix.HasOID && (!p.HasOID || p.OID != prefix.OID) {
		return false
	}
	if prefix.HasIID && (!p.HasIID || p.IID != prefix.IID) {
		return false
	}
	if prefix.HasRID && (!p.HasRID || p.RID != prefix.RID) {
		return false
	}
	if prefix.HasRIID && (!p.HasRIID || p.RIID != prefix.RIID) {
		return false
	}
	return true
}

// String renders the path as "/oid/iid/rid/riid", omitting trailing unset
// components.
func (p Path) String() string {
	if p.IsRoot() {
		return "/"
	}
	s := ""
	if p.HasOID {
		s += fmt.Sprintf("/%d", p.OID)
	}
	if p.HasIID {
		s += fmt.Sprintf("/%d", p.IID)
	}
	if p.HasRID {
		s += fmt.Sprintf("/%d", p.RID)
	}
	if p.HasRIID {
		s += fmt.Sprintf("/%d", p.RIID)
	}
	return s
}

// IsInvalidIID reports whether iid is the sentinel "invalid/absent" id.
func IsInvalidIID(iid uint16) bool { return iid == InvalidIID }

// InvalidIID is the IID sentinel denoting an absent instance.
const InvalidIID uint16 = 0xFFFF
