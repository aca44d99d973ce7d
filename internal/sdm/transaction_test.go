package sdm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandler is a minimal ObjectHandler that records the begin/validate/end
// calls it receives, and optionally fails validation.
type fakeHandler struct {
	begins    int
	validates int
	ends      []bool
	failValidate bool
}

func (h *fakeHandler) OperationBegin(ctx *OpContext) error    { h.begins++; return nil }
func (h *fakeHandler) OperationValidate(ctx *OpContext) error {
	h.validates++
	if h.failValidate {
		return ErrBadRequest
	}
	return nil
}
func (h *fakeHandler) OperationEnd(ctx *OpContext, success bool) error {
	h.ends = append(h.ends, success)
	return nil
}

func newTestObject() (*DataModel, *Object, *fakeHandler) {
	h := &fakeHandler{}
	obj := NewObject(3, "1.1", 1, h)
	inst := NewInstance(0)
	inst.AddResource(NewResource(1, TypeString, KindRW, nil))
	obj.AddInstance(inst)
	dm := NewDataModel()
	dm.Register(obj)
	return dm, obj, h
}

func TestReadEntryReturnsInlineValue(t *testing.T) {
	dm, obj, _ := newTestObject()
	obj.Instance(0).Resource(1).SetInline(StringValue("Acme"))

	ctx, err := Begin(dm, OpRead, false, ResourcePath(3, 0, 1))
	require.NoError(t, err)

	e, err := ReadEntry(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme", e.Value.AsString())

	_, err = ReadEntry(ctx)
	assert.ErrorIs(t, err, ErrEOF)

	require.NoError(t, End(ctx))
}

func TestWriteEntryRejectsReadOnlyResourceOutsideBootstrap(t *testing.T) {
	dm := NewDataModel()
	h := &fakeHandler{}
	obj := NewObject(3, "1.1", 1, h)
	inst := NewInstance(0)
	inst.AddResource(NewResource(1, TypeString, KindR, nil))
	obj.AddInstance(inst)
	dm.Register(obj)

	ctx, err := Begin(dm, OpWritePartialUpdate, false, ResourcePath(3, 0, 1))
	require.NoError(t, err)

	err = WriteEntry(ctx, Entry{Path: ResourcePath(3, 0, 1), Type: TypeString, Value: StringValue("x")})
	assert.ErrorIs(t, err, ErrMethodNotAllowed)

	assert.Error(t, End(ctx))
	require.Len(t, h.ends, 1)
	assert.False(t, h.ends[0], "operation_end must see success=false after a failed write")
}

func TestWriteEntryAllowsReadOnlyResourceDuringBootstrap(t *testing.T) {
	dm := NewDataModel()
	h := &fakeHandler{}
	obj := NewObject(3, "1.1", 1, h)
	inst := NewInstance(0)
	inst.AddResource(NewResource(1, TypeString, KindR, nil))
	obj.AddInstance(inst)
	dm.Register(obj)

	ctx, err := Begin(dm, OpWritePartialUpdate, true, ResourcePath(3, 0, 1))
	require.NoError(t, err)

	require.NoError(t, WriteEntry(ctx, Entry{Path: ResourcePath(3, 0, 1), Type: TypeString, Value: StringValue("x")}))
	require.NoError(t, End(ctx))

	assert.Equal(t, "x", obj.Instance(0).Resource(1).Inline().AsString())
}

func TestEndRollsBackOnValidateFailure(t *testing.T) {
	dm, _, h := newTestObject()
	h.failValidate = true

	ctx, err := Begin(dm, OpWritePartialUpdate, false, ResourcePath(3, 0, 1))
	require.NoError(t, err)
	require.NoError(t, WriteEntry(ctx, Entry{Path: ResourcePath(3, 0, 1), Type: TypeString, Value: StringValue("y")}))

	err = End(ctx)
	assert.Error(t, err)
	require.Len(t, h.ends, 1)
	assert.False(t, h.ends[0])
	assert.Equal(t, 1, h.validates)
}

func TestObjectSnapshotRestoreRoundTrips(t *testing.T) {
	_, obj, _ := newTestObject()
	obj.Instance(0).Resource(1).SetInline(StringValue("before"))

	snap := obj.Snapshot()
	obj.Instance(0).Resource(1).SetInline(StringValue("after"))
	assert.Equal(t, "after", obj.Instance(0).Resource(1).Inline().AsString())

	obj.Restore(snap)
	assert.Equal(t, "before", obj.Instance(0).Resource(1).Inline().AsString())
}
