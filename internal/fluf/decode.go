package fluf

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/1stship/lwm2mcore/internal/sdm"
)

// Decode parses a CoAP-UDP message and infers its LwM2M operation (spec.md
// §4.1 Decoding / Operation inference).
func Decode(buf []byte) (*Descriptor, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("%w: header truncated", ErrFormat)
	}
	version := buf[0] >> 6
	if version != 1 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, version)
	}
	typ := MessageType((buf[0] >> 4) & 0x03)
	tokenLen := buf[0] & 0x0F
	if tokenLen > 8 {
		return nil, fmt.Errorf("%w: token length %d exceeds 8", ErrFormat, tokenLen)
	}
	code := buf[1]
	msgID := binary.BigEndian.Uint16(buf[2:4])

	i := 4
	if i+int(tokenLen) > len(buf) {
		return nil, fmt.Errorf("%w: token truncated", ErrFormat)
	}
	token := append([]byte(nil), buf[i:i+int(tokenLen)]...)
	i += int(tokenLen)

	opts, optEnd, err := decodeOptions(buf[i:])
	if err != nil {
		return nil, err
	}
	if err := checkAscending(opts); err != nil {
		return nil, err
	}

	var payload []byte
	payloadStart := i + optEnd
	if payloadStart < len(buf) && buf[payloadStart] == 0xFF {
		payload = append([]byte(nil), buf[payloadStart+1:]...)
	} else if payloadStart < len(buf) {
		return nil, fmt.Errorf("%w: trailing bytes without payload marker", ErrFormat)
	}

	d := &Descriptor{
		Token: token, MessageID: msgID, Type: typ, Code: code, Payload: payload,
		ContentFormat: CTNone, Accept: CTNone,
	}

	var uriPathSegs []string
	var uriQuery []string
	for _, o := range opts {
		switch o.Number {
		case OptUriPath:
			uriPathSegs = append(uriPathSegs, string(o.Value))
		case OptUriQuery:
			uriQuery = append(uriQuery, string(o.Value))
		case OptContentFormat:
			d.ContentFormat = int(beUint(o.Value))
		case OptAccept:
			d.Accept = int(beUint(o.Value))
		case OptETag:
			d.ETag = o.Value
		case OptObserve:
			d.ObservePresent = true
			d.ObserveValue = uint32(beUint(o.Value))
		case OptBlock1:
			b, err := decodeBlockValue(o.Value)
			if err != nil {
				return nil, err
			}
			d.Block1 = b
		case OptBlock2:
			b, err := decodeBlockValue(o.Value)
			if err != nil {
				return nil, err
			}
			d.Block2 = b
		case OptLocationPath:
			d.LocationPath = append(d.LocationPath, string(o.Value))
		case OptIfMatch, OptIfNoneMatch, OptUriHost, OptUriPort, OptMaxAge, OptLocationQuery, OptSize1, OptSize2:
			// recognized, not required for decode's LwM2M operation inference.
		default:
			if isCriticalOption(o.Number) {
				return nil, fmt.Errorf("%w: unknown critical option %d", ErrFormat, o.Number)
			}
		}
	}

	path, isBootstrapFinish, err := parsePath(uriPathSegs)
	if err != nil {
		return nil, err
	}
	d.Path = path
	if err := parseQuery(uriQuery, &d.Attrs); err != nil {
		return nil, err
	}

	d.Op = inferOperation(code, d, isBootstrapFinish, len(uriQuery) > 0)
	return d, nil
}

func beUint(v []byte) uint64 {
	var out uint64
	for _, b := range v {
		out = out<<8 | uint64(b)
	}
	return out
}

// isCriticalOption reports whether option number n is critical (odd-numbered
// per RFC 7252 §5.4.1); an unrecognized critical option is a format error.
func isCriticalOption(n uint16) bool { return n%2 == 1 }

func checkAscending(opts []rawOption) error {
	var prev uint16
	for idx, o := range opts {
		if idx > 0 && o.Number < prev {
			return fmt.Errorf("%w: options out of order", ErrFormat)
		}
		prev = o.Number
	}
	return nil
}

// parsePath builds a sdm.Path from Uri-Path segments, recognizing the
// textual "/bs" bootstrap-finish path as a special case (spec.md §4.1).
func parsePath(segs []string) (sdm.Path, bool, error) {
	if len(segs) == 1 && segs[0] == "bs" {
		return sdm.RootPath(), true, nil
	}
	if len(segs) > 4 {
		return sdm.Path{}, false, fmt.Errorf("%w: path too deep", ErrFormat)
	}
	ids := make([]uint16, 0, 4)
	for _, s := range segs {
		if s == "" {
			continue
		}
		n, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return sdm.Path{}, false, fmt.Errorf("%w: malformed path component %q", ErrFormat, s)
		}
		ids = append(ids, uint16(n))
	}
	var p sdm.Path
	if len(ids) > 0 {
		p.HasOID, p.OID = true, ids[0]
	}
	if len(ids) > 1 {
		p.HasIID, p.IID = true, ids[1]
	}
	if len(ids) > 2 {
		p.HasRID, p.RID = true, ids[2]
	}
	if len(ids) > 3 {
		p.HasRIID, p.RIID = true, ids[3]
	}
	return p, false, nil
}

func parseQuery(queries []string, attrs *AttrBag) error {
	for _, q := range queries {
		key, val, hasVal := strings.Cut(q, "=")
		switch key {
		case "pmin":
			n, err := parseIntAttr(val)
			if err != nil {
				return err
			}
			attrs.Pmin = &n
		case "pmax":
			n, err := parseIntAttr(val)
			if err != nil {
				return err
			}
			attrs.Pmax = &n
		case "epmin":
			n, err := parseIntAttr(val)
			if err != nil {
				return err
			}
			attrs.Epmin = &n
		case "epmax":
			n, err := parseIntAttr(val)
			if err != nil {
				return err
			}
			attrs.Epmax = &n
		case "gt":
			f, err := parseFloatAttr(val)
			if err != nil {
				return err
			}
			attrs.Gt = &f
		case "lt":
			f, err := parseFloatAttr(val)
			if err != nil {
				return err
			}
			attrs.Lt = &f
		case "st":
			f, err := parseFloatAttr(val)
			if err != nil {
				return err
			}
			attrs.St = &f
		case "pct":
			f, err := parseFloatAttr(val)
			if err != nil {
				return err
			}
			attrs.Pct = &f
		case "edge":
			n, err := parseIntAttr(val)
			if err != nil {
				return err
			}
			attrs.Edge = &n
		case "con":
			n, err := parseIntAttr(val)
			if err != nil {
				return err
			}
			attrs.Con = &n
		case "hqmax":
			n, err := parseIntAttr(val)
			if err != nil {
				return err
			}
			attrs.Hqmax = &n
		case "depth":
			n, err := parseIntAttr(val)
			if err != nil {
				return err
			}
			attrs.Depth = &n
		case "lwm2m":
			attrs.Lwm2mVersion = val
		case "ep":
			attrs.Endpoint = val
		case "b":
			attrs.Binding = val
		case "Q":
			attrs.QueueMode = true
		default:
			_ = hasVal // unrecognized query keys are ignored, not fatal.
		}
	}
	return nil
}

func parseIntAttr(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed numeric attribute %q", ErrFormat, s)
	}
	return n, nil
}

func parseFloatAttr(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed numeric attribute %q", ErrFormat, s)
	}
	return f, nil
}

// inferOperation applies the table in spec.md §4.1.
func inferOperation(code byte, d *Descriptor, isBootstrapFinish, hasQuery bool) Operation {
	switch code {
	case CodeGET:
		if d.ObservePresent {
			if d.ObserveValue == 0 {
				return OpInfObserve
			}
			return OpInfCancelObserve
		}
		if d.Accept == CTLinkFormat {
			return OpDiscover
		}
		return OpDMRead
	case CodeFETCH:
		if d.ObservePresent {
			if d.ObserveValue == 0 {
				return OpInfObserveComposite
			}
			return OpInfCancelObserveComposite
		}
		return OpDMReadComposite
	case CodePUT:
		if len(d.Payload) > 0 {
			return OpDMWriteReplace
		}
		if hasQuery {
			return OpDMWriteAttr
		}
		return OpDMWriteReplace
	case CodePOST:
		if isBootstrapFinish {
			return OpBootstrapFinish
		}
		if d.Path.Depth() == 1 {
			return OpDMCreate
		}
		if len(d.Payload) == 0 || d.ContentFormat == CTTextPlain || d.ContentFormat == CTNone {
			return OpDMExecute
		}
		return OpDMWritePartialUpdate
	case CodeIPATCH:
		return OpDMWriteComposite
	case CodeDELETE:
		return OpDMDelete
	default:
		return OpNone
	}
}
