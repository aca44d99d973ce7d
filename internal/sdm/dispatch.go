package sdm

// ReadEntry yields the next (path, type, value) for READ/DISCOVER, in
// declared iteration order (spec.md §4.3): depth-first, ascending ID at
// every level. Returns ErrEOF after the last entry.
func ReadEntry(ctx *OpContext) (Entry, error) {
	if !ctx.readBuilt {
		ctx.readBuf = buildReadBuffer(ctx)
		ctx.readBuilt = true
		ctx.readIdx = 0
	}
	if ctx.readIdx >= len(ctx.readBuf) {
		return Entry{}, ErrEOF
	}
	e := ctx.readBuf[ctx.readIdx]
	ctx.readIdx++
	return e, nil
}

func buildReadBuffer(ctx *OpContext) []Entry {
	var out []Entry
	p := ctx.Path
	switch {
	case p.HasRIID:
		_, _, res, ri, err := ctx.dm.locate(p)
		if err == nil {
			out = append(out, Entry{Path: p, Type: res.Type, Value: readResourceInstance(ctx, res, ri)})
		}
	case p.HasRID:
		_, _, res, _, err := ctx.dm.locate(p)
		if err == nil {
			out = append(out, readResourceEntries(ctx, p, res)...)
		}
	case p.HasIID:
		_, inst, _, _, err := ctx.dm.locate(p)
		if err == nil {
			out = append(out, readInstanceEntries(ctx, p, inst)...)
		}
	case p.HasOID:
		obj := ctx.dm.Object(p.OID)
		if obj != nil {
			out = append(out, readObjectEntries(ctx, p, obj)...)
		}
	default:
		for _, obj := range ctx.dm.Objects() {
			out = append(out, readObjectEntries(ctx, ObjectPath(obj.OID), obj)...)
		}
	}
	if ctx.DiscoverDepth != nil {
		out = truncateDepth(out, ctx.Path.Depth(), *ctx.DiscoverDepth)
	}
	return out
}

func truncateDepth(entries []Entry, baseDepth, maxDepth int) []Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Path.Depth()-baseDepth <= maxDepth {
			out = append(out, e)
		}
	}
	return out
}

func readObjectEntries(ctx *OpContext, p Path, obj *Object) []Entry {
	var out []Entry
	for _, inst := range obj.Instances() {
		out = append(out, readInstanceEntries(ctx, InstancePath(p.OID, inst.IID), inst)...)
	}
	return out
}

func readInstanceEntries(ctx *OpContext, p Path, inst *Instance) []Entry {
	var out []Entry
	for _, res := range inst.Resources() {
		rp := ResourcePath(p.OID, p.IID, res.RID)
		out = append(out, readResourceEntries(ctx, rp, res)...)
	}
	return out
}

func readResourceEntries(ctx *OpContext, p Path, res *Resource) []Entry {
	if res.Kind == KindE {
		return nil
	}
	if res.Kind.Multi() {
		var out []Entry
		for _, ri := range res.Instances() {
			rip := ResourceInstancePath(p.OID, p.IID, p.RID, ri.RIID)
			out = append(out, Entry{Path: rip, Type: res.Type, Value: readResourceInstance(ctx, res, ri)})
		}
		return out
	}
	return []Entry{{Path: p, Type: res.Type, Value: readSingle(ctx, res)}}
}

// readSingle applies the READ handler-inversion rule: use res_read if the
// Handler implements Readable, otherwise read the inlined value cell.
func readSingle(ctx *OpContext, res *Resource) Value {
	if h, ok := res.Handler.(Readable); ok {
		if v, err := h.ResRead(ctx, 0); err == nil {
			return v
		}
		return Value{Type: res.Type}
	}
	return res.Inline()
}

func readResourceInstance(ctx *OpContext, res *Resource, ri *ResourceInstance) Value {
	if h, ok := res.Handler.(Readable); ok {
		if v, err := h.ResRead(ctx, ri.RIID); err == nil {
			return v
		}
		return Value{Type: res.Type}
	}
	return ri.Value
}

// WriteEntry applies one entry for WRITE/CREATE operations (spec.md §4.3).
func WriteEntry(ctx *OpContext, in Entry) error {
	if ctx.failed {
		return ctx.failErr
	}

	var inst *Instance

	switch ctx.Op {
	case OpCreate:
		inst = ctx.currentInstance
		if inst == nil {
			return ctx.fail(wrap(ErrInternal, "create did not establish a target instance"))
		}
	default:
		obj, located, _, _, err := ctx.dm.locate(InstancePath(in.Path.OID, in.Path.IID))
		if err != nil {
			return ctx.fail(err)
		}
		if err := ctx.touch(obj); err != nil {
			return ctx.fail(err)
		}
		inst = located
	}

	res := inst.Resource(in.Path.RID)
	if res == nil {
		return ctx.fail(ErrNotFound)
	}
	if err := res.Type.checkAssignable(in.Type); err != nil {
		return ctx.fail(err)
	}
	if !writableFor(res.Kind, ctx.IsBootstrap) {
		return ctx.fail(ErrMethodNotAllowed)
	}

	if res.Kind.Multi() {
		if err := writeMultiEntry(ctx, res, in); err != nil {
			return ctx.fail(err)
		}
		return nil
	}

	if h, ok := res.Handler.(Writable); ok {
		if err := h.ResWrite(ctx, 0, in.Value); err != nil {
			return ctx.fail(err)
		}
		return nil
	}
	v := in.Value
	if in.Value.Offset > 0 {
		v = appendChunk(res.Inline(), in.Value)
	}
	res.SetInline(v)
	return nil
}

func appendChunk(cur, incoming Value) Value {
	cur.Bytes = append(cur.Bytes, incoming.Bytes...)
	cur.ChunkLength = len(cur.Bytes)
	if incoming.FullLengthHint > 0 {
		cur.FullLengthHint = incoming.FullLengthHint
	}
	cur.Type = incoming.Type
	return cur
}

func writeMultiEntry(ctx *OpContext, res *Resource, in Entry) error {
	riid := in.Path.RIID
	existing := res.Instance(riid)

	if ctx.Op == OpWriteReplace && existing != nil {
		if d, ok := res.Handler.(InstanceDeleter); ok {
			if err := d.ResInstDelete(ctx, riid); err != nil {
				return err
			}
		}
		res.removeInstance(riid)
		existing = nil
	}

	if existing == nil {
		if c, ok := res.Handler.(InstanceCreator); ok {
			ri, err := c.ResInstCreate(ctx, riid)
			if err != nil {
				return err
			}
			ri.RIID = riid
			ri.Value = in.Value
			res.insertInstanceSorted(ri)
			return nil
		}
		res.insertInstanceSorted(&ResourceInstance{RIID: riid, Value: in.Value})
		return nil
	}

	if h, ok := res.Handler.(Writable); ok {
		return h.ResWrite(ctx, riid, in.Value)
	}
	if in.Value.Offset > 0 {
		existing.Value = appendChunk(existing.Value, in.Value)
	} else {
		existing.Value = in.Value
	}
	return nil
}

// writableFor reports whether kind may be written under the current mode.
// BOOTSTRAP-mode writes may target read-only (R, RM) resources (spec.md §4.3);
// outside bootstrap only W/WM/RW/RWM accept writes (spec invariant 4).
func writableFor(kind ResourceKind, isBootstrap bool) bool {
	if isBootstrap {
		return kind != KindE
	}
	return kind.Writable()
}

// checkAssignable enforces spec invariant 2 loosely: a null/none-typed entry
// (e.g. an EXECUTE's empty argument marker round-tripped through the same
// Entry type) is never assignable; otherwise the types must match exactly.
func (t DataType) checkAssignable(in DataType) error {
	if in == TypeNone || t != in {
		return ErrBadRequest
	}
	return nil
}

// Execute invokes res_execute for an EXECUTE operation (spec.md §4.3).
func Execute(ctx *OpContext, args []byte) error {
	if ctx.Op != OpExecute {
		return wrap(ErrInternal, "Execute called outside an EXECUTE operation")
	}
	_, _, res, _, err := ctx.dm.locate(ctx.Path)
	if err != nil {
		return ctx.fail(err)
	}
	h, ok := res.Handler.(Executable)
	if !ok {
		return ctx.fail(ErrMethodNotAllowed)
	}
	if err := h.ResExecute(ctx, args); err != nil {
		return ctx.fail(err)
	}
	return nil
}

// CreateInstance performs the object-level half of a CREATE operation:
// it resolves the handler's chosen IID (InstCreate may pick its own when the
// caller does not supply one) and inserts the resulting Instance into the
// Object's ordered array before WriteEntry starts filling its resources.
func CreateInstance(ctx *OpContext, iid uint16) (*Instance, error) {
	if ctx.Op != OpCreate {
		return nil, wrap(ErrInternal, "CreateInstance called outside a CREATE operation")
	}
	obj := ctx.touched[0]
	creator, ok := obj.Handler.(ObjectInstanceCreator)
	if !ok {
		return nil, ctx.fail(ErrMethodNotAllowed)
	}
	inst, err := creator.InstCreate(ctx, iid)
	if err != nil {
		return nil, ctx.fail(err)
	}
	obj.addInstance(inst)
	ctx.currentInstance = inst
	return inst, nil
}

// DeleteTarget performs a DELETE operation against ctx.Path, which must name
// an Instance; a deeper path is rejected with METHOD_NOT_ALLOWED.
func DeleteTarget(ctx *OpContext) error {
	if ctx.Op != OpDelete {
		return wrap(ErrInternal, "DeleteTarget called outside a DELETE operation")
	}
	if ctx.Path.Depth() != 2 {
		return ctx.fail(wrap(ErrMethodNotAllowed, "delete supports instance paths only"))
	}
	obj, inst, _, _, err := ctx.dm.locate(ctx.Path)
	if err != nil {
		return ctx.fail(err)
	}
	deleter, ok := obj.Handler.(ObjectInstanceDeleter)
	if !ok {
		return ctx.fail(ErrMethodNotAllowed)
	}
	if err := deleter.InstDelete(ctx, inst.IID); err != nil {
		return ctx.fail(err)
	}
	obj.removeInstance(inst.IID)
	return nil
}
