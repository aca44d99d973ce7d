// Package std implements the three standard LwM2M objects the core carries
// per spec.md §2/§4.3: Security (OID 0), Server (OID 1) and Device (OID 3).
package std

import "github.com/1stship/lwm2mcore/internal/sdm"

// TransactionBase gives every standard object the snapshot/restore rollback
// behavior of spec invariant 6 ("a transaction either commits atomically...
// or rolls back entirely") without each object re-implementing it: Begin
// snapshots the Instance tree, End restores it on failure. Embedders call
// Init once, after the sdm.Object has been constructed with them as its
// Handler, to close the reference cycle.
type TransactionBase struct {
	obj      *sdm.Object
	snapshot *sdm.ObjectSnapshot
}

// Init binds the owning Object so OperationBegin/OperationEnd can snapshot
// and restore it.
func (b *TransactionBase) Init(obj *sdm.Object) { b.obj = obj }

// OperationBegin snapshots the owning Object's Instance tree.
func (b *TransactionBase) OperationBegin(ctx *sdm.OpContext) error {
	b.snapshot = b.obj.Snapshot()
	return nil
}

// OperationValidate has nothing generic to check; standard objects that need
// cross-resource validation override this in their own handler type.
func (b *TransactionBase) OperationValidate(ctx *sdm.OpContext) error { return nil }

// OperationEnd restores the pre-transaction snapshot on failure; on success
// it simply drops the snapshot.
func (b *TransactionBase) OperationEnd(ctx *sdm.OpContext, success bool) error {
	if !success && b.snapshot != nil {
		b.obj.Restore(b.snapshot)
	}
	b.snapshot = nil
	return nil
}
