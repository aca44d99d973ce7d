// Package engine ties the CoAP codec (fluf) to the data model (sdm) and the
// payload codecs, implementing the "process" façade spec.md §4.3 describes:
// given a decoded request descriptor, drive begin/read-or-write/end and
// render a response descriptor, including block-wise spillover.
package engine

import (
	"github.com/pkg/errors"

	"github.com/1stship/lwm2mcore/internal/fluf"
	"github.com/1stship/lwm2mcore/internal/payload"
	"github.com/1stship/lwm2mcore/internal/sdm"
)

// DefaultBlockSize is used when a request carries no explicit Block2 size
// preference.
const DefaultBlockSize = 1024

// Process executes one LwM2M operation against dm and returns the response
// descriptor to encode back to the peer. transfer carries any in-flight
// block-wise state for this exchange; the caller owns one Transfer per
// token for as long as a multi-block exchange is in progress and must pass
// a non-nil (possibly zero-valued) *fluf.Transfer even for exchanges it
// doesn't expect to span multiple blocks.
func Process(dm *sdm.DataModel, req *fluf.Descriptor, isBootstrap bool, transfer *fluf.Transfer) (*fluf.Descriptor, error) {
	if req.Block1 != nil {
		if transfer.In == nil {
			transfer.In = fluf.NewBlockIn()
		}
		if err := transfer.In.Accept(req.Block1, req.Payload); err != nil {
			return errorResponse(req, err), nil
		}
		if !transfer.In.Done() {
			return &fluf.Descriptor{
				Type: fluf.TypeAcknowledgement, Code: fluf.RespContinue,
				Token: req.Token, MessageID: req.MessageID,
				Block1: &fluf.BlockOption{Num: req.Block1.Num, Size: req.Block1.Size, More: false},
			}, nil
		}
		req.Payload = transfer.In.Bytes()
	}

	if req.Op == fluf.OpBootstrapFinish {
		// Bootstrap-finish touches no Object and so never calls
		// sdm.Begin/End. Process only acknowledges it with 2.04 Changed; no
		// package makes a client state transition in response to it.
		return &fluf.Descriptor{Type: ackType(req), Code: fluf.RespChanged, Token: req.Token, MessageID: req.MessageID}, nil
	}

	op, ok := mapOperation(req.Op)
	if !ok {
		return errorResponse(req, sdm.ErrMethodNotAllowed), nil
	}

	ctx, err := sdm.Begin(dm, op, isBootstrap, req.Path)
	if err != nil {
		return errorResponse(req, err), nil
	}

	var respPayload []byte
	var respCode byte
	var respContentFormat = fluf.CTNone

	switch req.Op {
	case fluf.OpDMRead, fluf.OpDMReadComposite:
		respPayload, respContentFormat, err = renderRead(ctx, req, op == sdm.OpReadComposite)
		respCode = fluf.RespContent
	case fluf.OpDiscover:
		respPayload, err = renderDiscover(ctx, req)
		respContentFormat = fluf.CTLinkFormat
		respCode = fluf.RespContent
	case fluf.OpDMWriteReplace, fluf.OpDMWritePartialUpdate, fluf.OpDMWriteComposite:
		err = applyWrite(ctx, req)
		respCode = fluf.RespChanged
	case fluf.OpDMWriteAttr:
		err = applyWriteAttr(ctx, req)
		respCode = fluf.RespChanged
	case fluf.OpDMCreate:
		respPayload, err = applyCreate(ctx, req)
		respCode = fluf.RespCreated
	case fluf.OpDMDelete:
		err = sdm.DeleteTarget(ctx)
		respCode = fluf.RespDeleted
	case fluf.OpDMExecute:
		err = sdm.Execute(ctx, req.Payload)
		respCode = fluf.RespChanged
	default:
		err = errors.WithMessage(sdm.ErrMethodNotAllowed, "operation not handled by engine.Process")
	}

	if endErr := sdm.End(ctx); endErr != nil && err == nil {
		err = endErr
	}
	if err != nil {
		return errorResponse(req, err), nil
	}

	resp := &fluf.Descriptor{
		Type: ackType(req), Code: respCode, Token: req.Token, MessageID: req.MessageID,
		ContentFormat: respContentFormat,
	}
	if req.Op == fluf.OpDMCreate {
		resp.LocationPath = []string{pathFirstSegment(req.Path)}
		if respPayload != nil {
			resp.LocationPath = append(resp.LocationPath, string(respPayload))
		}
	}
	if len(respPayload) > 0 && req.Op != fluf.OpDMCreate {
		resp.Payload, resp.Block2 = maybeBlock(respPayload, transfer, blockSizeOf(req))
	}
	return resp, nil
}

func ackType(req *fluf.Descriptor) fluf.MessageType {
	if req.Type == fluf.TypeConfirmable {
		return fluf.TypeAcknowledgement
	}
	return fluf.TypeNonConfirmable
}

func maybeBlock(body []byte, transfer *fluf.Transfer, size uint16) ([]byte, *fluf.BlockOption) {
	if len(body) <= int(size) {
		return body, nil
	}
	if transfer.Out == nil {
		transfer.Out = fluf.NewBlockOut(body, size)
	}
	chunk, opt, ok := transfer.Out.Next()
	if !ok {
		return nil, nil
	}
	return chunk, opt
}

func blockSizeOf(req *fluf.Descriptor) uint16 {
	if req.Block2 != nil && req.Block2.Size > 0 {
		return req.Block2.Size
	}
	return DefaultBlockSize
}

func pathFirstSegment(p sdm.Path) string {
	if !p.HasOID {
		return ""
	}
	return itoa(int(p.OID))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

// mapOperation translates a fluf.Operation into the data-model-facing
// sdm.Operation. Bootstrap-finish never reaches here: Process answers it
// before mapping. Observe/cancel-observe have no mapping; the client package
// turns them into plain reads before calling Process.
func mapOperation(op fluf.Operation) (sdm.Operation, bool) {
	switch op {
	case fluf.OpDMRead:
		return sdm.OpRead, true
	case fluf.OpDMReadComposite:
		return sdm.OpReadComposite, true
	case fluf.OpDiscover:
		return sdm.OpDiscover, true
	case fluf.OpDMWriteReplace:
		return sdm.OpWriteReplace, true
	case fluf.OpDMWritePartialUpdate:
		return sdm.OpWritePartialUpdate, true
	case fluf.OpDMWriteComposite:
		return sdm.OpWriteComposite, true
	case fluf.OpDMWriteAttr:
		return sdm.OpWriteAttr, true
	case fluf.OpDMCreate:
		return sdm.OpCreate, true
	case fluf.OpDMDelete:
		return sdm.OpDelete, true
	case fluf.OpDMExecute:
		return sdm.OpExecute, true
	default:
		return 0, false
	}
}

func errorResponse(req *fluf.Descriptor, err error) *fluf.Descriptor {
	return &fluf.Descriptor{
		Type: ackType(req), Code: codeToCoAP(err), Token: req.Token, MessageID: req.MessageID,
	}
}

func codeToCoAP(err error) byte {
	switch sdm.CodeOf(err) {
	case sdm.CodeBadRequest:
		return fluf.RespBadRequest
	case sdm.CodeUnauthorized:
		return fluf.RespUnauthorized
	case sdm.CodeNotFound:
		return fluf.RespNotFound
	case sdm.CodeMethodNotAllowed:
		return fluf.RespMethodNotAllowed
	case sdm.CodeNotImplemented:
		return fluf.RespNotImplemented
	case sdm.CodeServiceUnavailable:
		return fluf.RespServiceUnavailable
	default:
		if errors.Is(err, fluf.ErrIncomplete) {
			return fluf.RespRequestEntityIncomplete
		}
		return fluf.RespInternalServerError
	}
}

func renderRead(ctx *sdm.OpContext, req *fluf.Descriptor, composite bool) ([]byte, int, error) {
	format := req.Accept
	if format == fluf.CTNone {
		sel := payload.SelectOutputFormat(ctx.Op, req.Path.Depth() == 3, false)
		format = int(sel)
	}
	out, err := payload.NewOutputCodec(payload.Format(format), req.Path)
	if err != nil {
		return nil, 0, err
	}
	for {
		e, err := sdm.ReadEntry(ctx)
		if errors.Is(err, sdm.ErrEOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if err := out.NewEntry(e); err != nil {
			return nil, 0, err
		}
	}
	buf := make([]byte, 1<<20)
	n, _, err := out.GetPayload(buf)
	if err != nil {
		return nil, 0, err
	}
	return buf[:n], format, nil
}

func renderDiscover(ctx *sdm.OpContext, req *fluf.Descriptor) ([]byte, error) {
	out, err := payload.NewOutputCodec(payload.FormatLinkFormat, req.Path)
	if err != nil {
		return nil, err
	}
	if ctx.DiscoverDepth == nil && req.Attrs.Depth != nil {
		ctx.DiscoverDepth = req.Attrs.Depth
	}
	for {
		e, err := sdm.ReadEntry(ctx)
		if errors.Is(err, sdm.ErrEOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := out.NewEntry(e); err != nil {
			return nil, err
		}
	}
	buf := make([]byte, 1<<16)
	n, _, err := out.GetPayload(buf)
	return buf[:n], err
}

func applyWrite(ctx *sdm.OpContext, req *fluf.Descriptor) error {
	format := req.ContentFormat
	if format == fluf.CTNone {
		format = fluf.CTLwM2MCBOR
	}
	in, err := payload.NewInputCodec(payload.Format(format), req.Path, nil)
	if err != nil {
		return err
	}
	if err := in.Feed(req.Payload); err != nil {
		return err
	}
	for {
		e, err := in.Next()
		if errors.Is(err, sdm.ErrEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sdm.WriteEntry(ctx, e); err != nil {
			return err
		}
	}
}

func applyWriteAttr(ctx *sdm.OpContext, req *fluf.Descriptor) error {
	// Write-attributes never touch a Resource's Value. sdm.Begin has already
	// checked that the named path exists; the attributes themselves are not
	// stored anywhere, and observations use only the attributes carried on
	// their own Observe request.
	return nil
}

func applyCreate(ctx *sdm.OpContext, req *fluf.Descriptor) ([]byte, error) {
	format := req.ContentFormat
	if format == fluf.CTNone {
		format = fluf.CTLwM2MCBOR
	}
	in, err := payload.NewInputCodec(payload.Format(format), req.Path, nil)
	if err != nil {
		return nil, err
	}
	if err := in.Feed(req.Payload); err != nil {
		return nil, err
	}
	var iid uint16 = 0xFFFF
	var entries []sdm.Entry
	for {
		e, err := in.Next()
		if errors.Is(err, sdm.ErrEOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if e.Path.HasIID && iid == 0xFFFF {
			iid = e.Path.IID
		}
		entries = append(entries, e)
	}
	if iid == 0xFFFF {
		iid = 0
	}
	inst, err := sdm.CreateInstance(ctx, iid)
	if err != nil {
		return nil, err
	}
	_ = inst
	for _, e := range entries {
		if err := sdm.WriteEntry(ctx, e); err != nil {
			return nil, err
		}
	}
	return []byte(itoa(int(iid))), nil
}
