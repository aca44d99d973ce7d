package payload

import (
	"fmt"
	"sort"
	"strings"

	"github.com/1stship/lwm2mcore/internal/sdm"
)

// linkFormatOutput renders entries as CoRE Link Format (RFC 6690), the
// payload used by both the Register request body and DISCOVER responses
// (spec.md §4.2, §4.4). Each entry's Path becomes one "<path>" link; the
// only link-param rendered is ";ver=", set through AddObjectVersion.
// Attributes such as pmin/pmax are not rendered.
type linkFormatOutput struct {
	links []linkFormatLink
	built []byte
}

type linkFormatLink struct {
	path    sdm.Path
	version string
}

func (o *linkFormatOutput) NewEntry(e sdm.Entry) error {
	o.links = append(o.links, linkFormatLink{path: e.Path})
	return nil
}

// AddObjectVersion attaches an object-version link-param to every
// object-level link (no instance id) added so far for the given object id
// (spec.md §4.4 "</OID>;ver=\"x.y\"").
func (o *linkFormatOutput) AddObjectVersion(oid uint16, version string) {
	for i := range o.links {
		if o.links[i].path.HasOID && o.links[i].path.OID == oid && !o.links[i].path.HasIID {
			o.links[i].version = version
		}
	}
}

func (o *linkFormatOutput) GetPayload(buf []byte) (int, bool, error) {
	if o.built == nil {
		sort.SliceStable(o.links, func(i, j int) bool { return lessPath(o.links[i].path, o.links[j].path) })
		parts := make([]string, 0, len(o.links))
		for _, l := range o.links {
			s := "<" + pathString(l.path) + ">"
			if l.version != "" {
				s += fmt.Sprintf(";ver=\"%s\"", l.version)
			}
			parts = append(parts, s)
		}
		o.built = []byte(strings.Join(parts, ","))
	}
	n := copy(buf, o.built)
	o.built = o.built[n:]
	return n, len(o.built) > 0, nil
}

func lessPath(a, b sdm.Path) bool {
	ai := []uint16{boolToID(a.HasOID, a.OID), boolToID(a.HasIID, a.IID), boolToID(a.HasRID, a.RID)}
	bi := []uint16{boolToID(b.HasOID, b.OID), boolToID(b.HasIID, b.IID), boolToID(b.HasRID, b.RID)}
	for i := range ai {
		if ai[i] != bi[i] {
			return ai[i] < bi[i]
		}
	}
	return false
}

func boolToID(has bool, id uint16) uint16 {
	if !has {
		return 0
	}
	return id + 1
}
