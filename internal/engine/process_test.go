package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1stship/lwm2mcore/internal/fluf"
	"github.com/1stship/lwm2mcore/internal/sdm"
)

type noopHandler struct{}

func (noopHandler) OperationBegin(ctx *sdm.OpContext) error        { return nil }
func (noopHandler) OperationValidate(ctx *sdm.OpContext) error     { return nil }
func (noopHandler) OperationEnd(ctx *sdm.OpContext, ok bool) error { return nil }

func newDeviceLikeModel() *sdm.DataModel {
	dm := sdm.NewDataModel()
	obj := sdm.NewObject(3, "1.1", 1, noopHandler{})
	inst := sdm.NewInstance(0)
	inst.AddResource(sdm.NewResource(0, sdm.TypeString, sdm.KindR, nil))
	inst.AddResource(sdm.NewResource(1, sdm.TypeString, sdm.KindRW, nil))
	obj.AddInstance(inst)
	obj.Instance(0).Resource(0).SetInline(sdm.StringValue("Acme Corp"))
	dm.Register(obj)
	return dm
}

func TestProcessReadRendersTextPlain(t *testing.T) {
	dm := newDeviceLikeModel()
	req := &fluf.Descriptor{
		Op: fluf.OpDMRead, Type: fluf.TypeConfirmable, Code: fluf.CodeGET,
		Path: sdm.ResourcePath(3, 0, 0), Accept: fluf.CTTextPlain,
	}
	resp, err := Process(dm, req, false, &fluf.Transfer{})
	require.NoError(t, err)
	assert.Equal(t, fluf.RespContent, resp.Code)
	assert.Equal(t, "Acme Corp", string(resp.Payload))
}

func TestProcessWritePartialUpdate(t *testing.T) {
	dm := newDeviceLikeModel()
	req := &fluf.Descriptor{
		Op: fluf.OpDMWritePartialUpdate, Type: fluf.TypeConfirmable, Code: fluf.CodePUT,
		Path: sdm.ResourcePath(3, 0, 1), ContentFormat: fluf.CTTextPlain,
		Payload: []byte("new-name"),
	}
	resp, err := Process(dm, req, false, &fluf.Transfer{})
	require.NoError(t, err)
	assert.Equal(t, fluf.RespChanged, resp.Code)

	dm2 := dm
	obj := dm2.Object(3)
	assert.Equal(t, "new-name", obj.Instance(0).Resource(1).Inline().AsString())
}

func TestProcessReadMissingPathReturnsNotFound(t *testing.T) {
	dm := newDeviceLikeModel()
	req := &fluf.Descriptor{
		Op: fluf.OpDMRead, Type: fluf.TypeConfirmable, Code: fluf.CodeGET,
		Path: sdm.ResourcePath(3, 0, 9), Accept: fluf.CTTextPlain,
	}
	resp, err := Process(dm, req, false, &fluf.Transfer{})
	require.NoError(t, err)
	assert.Equal(t, fluf.RespNotFound, resp.Code)
}

func TestProcessBootstrapFinishSkipsDataModel(t *testing.T) {
	dm := newDeviceLikeModel()
	req := &fluf.Descriptor{
		Op: fluf.OpBootstrapFinish, Type: fluf.TypeConfirmable, Code: fluf.CodePOST,
	}
	resp, err := Process(dm, req, true, &fluf.Transfer{})
	require.NoError(t, err)
	assert.Equal(t, fluf.RespChanged, resp.Code)
}

func TestProcessBlockSpilloverProducesBlock2(t *testing.T) {
	dm := sdm.NewDataModel()
	obj := sdm.NewObject(3, "1.1", 1, noopHandler{})
	inst := sdm.NewInstance(0)
	big := make([]byte, 3000)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	res := sdm.NewResource(0, sdm.TypeString, sdm.KindR, nil)
	res.SetInline(sdm.Value{Type: sdm.TypeString, Bytes: big, ChunkLength: len(big), FullLengthHint: len(big)})
	inst.AddResource(res)
	obj.AddInstance(inst)
	dm.Register(obj)

	req := &fluf.Descriptor{
		Op: fluf.OpDMRead, Type: fluf.TypeConfirmable, Code: fluf.CodeGET,
		Path: sdm.ResourcePath(3, 0, 0), Accept: fluf.CTTextPlain,
	}
	transfer := &fluf.Transfer{}
	resp, err := Process(dm, req, false, transfer)
	require.NoError(t, err)
	require.NotNil(t, resp.Block2)
	assert.True(t, resp.Block2.More)
	assert.Equal(t, uint32(0), resp.Block2.Num)
	assert.Less(t, len(resp.Payload), len(big))
}
