package sdm

// OpContext is the explicit, owned transaction object that brackets one
// server-driven operation (design note §9): it holds references to every
// Object touched by the operation and exposes Commit/Rollback-flavored
// behavior through End, instead of a bare in_transaction bool plus a global
// context.
type OpContext struct {
	Op          Operation
	Path        Path
	IsBootstrap bool

	dm      *DataModel
	touched []*Object
	failed  bool
	failErr error

	// Cursor indices, set to -1 by Begin and not otherwise used: read_entry
	// walks readBuf below instead.
	curObj, curInst, curRes, curRI int

	// write_entry bookkeeping.
	currentInstance *Instance
	resetDone       map[*Instance]bool

	// read_entry is implemented as a lazily built, fully ordered buffer
	// rather than incremental cursor walking: the ordering rule (depth-first,
	// ascending ID at every level) is simplest to get right, and to keep
	// correct under Discover depth-limiting, as a single recursive pass.
	readBuf   []Entry
	readBuilt bool
	readIdx   int

	// DiscoverDepth optionally truncates DISCOVER output to paths whose
	// depth relative to ctx.Path does not exceed this value (server-supplied
	// "depth=" attribute, spec.md §4.1 Uri-Query attributes).
	DiscoverDepth *int
}

// Begin validates path against the model and calls OperationBegin on each
// Object it touches, per spec.md §4.3.
func Begin(dm *DataModel, op Operation, isBootstrap bool, path Path) (*OpContext, error) {
	ctx := &OpContext{
		Op: op, Path: path, IsBootstrap: isBootstrap, dm: dm,
		curObj: -1, curInst: -1, curRes: -1, curRI: -1,
		resetDone: make(map[*Instance]bool),
	}

	switch op {
	case OpRead, OpDiscover:
		if err := ctx.beginTouch(path, false); err != nil {
			return nil, err
		}
	case OpReadComposite, OpWriteComposite:
		// composite writes touch whichever objects their entries name, as
		// each entry arrives via write_entry. Composite reads walk
		// everything under path (the whole model for the root path); the
		// paths listed in the request body are not used to narrow them.
	case OpWriteReplace:
		if path.Depth() < 2 {
			return nil, wrap(ErrMethodNotAllowed, "write-replace requires at least an instance path")
		}
		if err := ctx.beginTouch(path, false); err != nil {
			return nil, err
		}
		if path.Depth() == 2 {
			obj, inst, _, _, _ := dm.locate(path)
			if _, ok := obj.Handler.(InstanceResetter); !ok {
				return nil, wrap(ErrInternal, "object has no InstReset handler for WRITE_REPLACE on instance")
			}
			resetter := obj.Handler.(InstanceResetter)
			if err := resetter.InstReset(ctx, inst); err != nil {
				return nil, ctx.fail(err)
			}
			ctx.resetDone[inst] = true
			ctx.currentInstance = inst
		} else {
			_, inst, res, _, _ := dm.locate(path)
			ctx.currentInstance = inst
			// A resource-level WRITE_REPLACE against a multi-instance
			// resource replaces the whole array: clear it now so entries
			// supplied by the caller are inserted as fresh instances, and
			// any RIID absent from the payload (scenario 4, spec.md §8)
			// ends up deleted rather than retained.
			if res != nil && res.Kind.Multi() {
				for _, ri := range append([]*ResourceInstance(nil), res.Instances()...) {
					if d, ok := res.Handler.(InstanceDeleter); ok {
						_ = d.ResInstDelete(ctx, ri.RIID)
					}
					res.removeInstance(ri.RIID)
				}
			}
		}
	case OpWritePartialUpdate, OpWriteAttr:
		if path.Depth() < 3 {
			return nil, wrap(ErrMethodNotAllowed, "write requires a resource path")
		}
		if err := ctx.beginTouch(path, false); err != nil {
			return nil, err
		}
		_, inst, _, _, _ := dm.locate(path)
		ctx.currentInstance = inst
	case OpCreate:
		if path.Depth() != 1 {
			return nil, wrap(ErrMethodNotAllowed, "create requires an object path")
		}
		obj := dm.Object(path.OID)
		if obj == nil {
			return nil, wrap(ErrNotFound, "object not found")
		}
		if _, ok := obj.Handler.(ObjectInstanceCreator); !ok {
			return nil, wrap(ErrMethodNotAllowed, "object does not support create")
		}
		if err := ctx.touch(obj); err != nil {
			return nil, ctx.fail(err)
		}
	case OpDelete:
		if path.Depth() < 2 {
			return nil, wrap(ErrMethodNotAllowed, "delete requires at least an instance path")
		}
		if err := ctx.beginTouch(path, false); err != nil {
			return nil, err
		}
	case OpExecute:
		if path.Depth() != 3 {
			return nil, wrap(ErrMethodNotAllowed, "execute requires a resource path")
		}
		if err := ctx.beginTouch(path, false); err != nil {
			return nil, err
		}
		_, _, res, _, _ := dm.locate(path)
		if res.Kind != KindE {
			return nil, wrap(ErrMethodNotAllowed, "resource is not executable")
		}
		if _, ok := res.Handler.(Executable); !ok {
			return nil, wrap(ErrInternal, "executable resource has no Executable handler")
		}
	}

	return ctx, nil
}

// beginTouch resolves path and, if allowMissing is false, requires every
// named component to exist; it then calls OperationBegin on the resolved
// Object.
func (ctx *OpContext) beginTouch(path Path, allowMissing bool) error {
	obj, _, _, _, err := ctx.dm.locate(path)
	if err != nil {
		if !allowMissing {
			return err
		}
	}
	if obj == nil {
		return ErrNotFound
	}
	return ctx.touch(obj)
}

// touch records obj as participating in the transaction (if not already)
// and invokes its OperationBegin hook.
func (ctx *OpContext) touch(obj *Object) error {
	for _, o := range ctx.touched {
		if o == obj {
			return nil
		}
	}
	if obj.Handler == nil {
		return wrap(ErrInternal, "object lacks a handler")
	}
	if err := obj.Handler.OperationBegin(ctx); err != nil {
		return err
	}
	obj.inTransaction = true
	ctx.touched = append(ctx.touched, obj)
	return nil
}

// fail transitions the transaction to FAILURE state; subsequent mutations
// short-circuit (spec.md §4.3 Transaction protocol).
func (ctx *OpContext) fail(err error) error {
	ctx.failed = true
	ctx.failErr = err
	return err
}

// End invokes OperationValidate then OperationCommit/OperationRollback
// (modeled as OperationEnd(success)) on every touched Object, in the order
// they were first touched, and returns the worst prior error.
func End(ctx *OpContext) error {
	if !ctx.failed {
		for _, obj := range ctx.touched {
			if err := obj.Handler.OperationValidate(ctx); err != nil {
				ctx.fail(err)
				break
			}
		}
	}
	success := !ctx.failed
	var endErr error
	for _, obj := range ctx.touched {
		if err := obj.Handler.OperationEnd(ctx, success); err != nil && endErr == nil {
			endErr = err
		}
		obj.inTransaction = false
	}
	if ctx.failed {
		return ctx.failErr
	}
	return endErr
}

func wrap(base *Error, msg string) *Error {
	return &Error{Code: base.Code, Message: msg}
}
