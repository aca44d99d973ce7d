package sdm

// Operation is the data-model-facing operation kind. The CoAP-level
// inference table of spec.md §4.1 lives in package fluf; the engine package
// translates a decoded fluf.Operation into one of these before calling into
// the data model.
type Operation int

const (
	OpRead Operation = iota
	OpReadComposite
	OpDiscover
	OpWriteReplace
	OpWritePartialUpdate
	OpWriteComposite
	OpWriteAttr
	OpCreate
	OpDelete
	OpExecute
)

// Entry is the (path, type, value) tuple exchanged with read_entry and
// write_entry (spec.md §4.3).
type Entry struct {
	Path  Path
	Type  DataType
	Value Value
}
