package fluf

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Encode renders d to wire bytes (spec.md §4.1 Encoding). If d.MessageID is
// zero, enc assigns the next message id from its sequence; a non-zero value
// (e.g. a response that must echo its request's id) is used as-is. If
// d.Token is nil and tokenLen > 0, enc generates a fresh token.
func Encode(enc *Encoder, d *Descriptor, tokenLen int) ([]byte, error) {
	if d.MessageID == 0 {
		d.MessageID = enc.NextMessageID()
	}
	if d.Token == nil && tokenLen > 0 {
		d.Token = enc.NextToken(tokenLen)
	}
	if len(d.Token) > 8 {
		return nil, fmt.Errorf("%w: token length %d exceeds 8", ErrFormat, len(d.Token))
	}

	header := []byte{
		(1 << 6) | (byte(d.Type) << 4) | byte(len(d.Token)),
		d.Code,
		byte(d.MessageID >> 8), byte(d.MessageID),
	}
	out := append(header, d.Token...)

	opts, err := buildOptions(d)
	if err != nil {
		return nil, err
	}
	out = append(out, encodeOptions(opts)...)

	if len(d.Payload) > 0 {
		out = append(out, 0xFF)
		out = append(out, d.Payload...)
	}
	return out, nil
}

// buildOptions renders d's fields into an ascending-number option list.
func buildOptions(d *Descriptor) ([]rawOption, error) {
	var opts []rawOption

	if d.ETag != nil {
		opts = append(opts, rawOption{OptETag, d.ETag})
	}
	if d.ObservePresent {
		opts = append(opts, rawOption{OptObserve, beBytes(uint64(d.ObserveValue))})
	}
	for _, seg := range pathSegments(d) {
		opts = append(opts, rawOption{OptUriPath, []byte(seg)})
	}
	if d.ContentFormat != CTNone {
		opts = append(opts, rawOption{OptContentFormat, beBytes(uint64(d.ContentFormat))})
	}
	for _, q := range buildQuery(d.Attrs) {
		opts = append(opts, rawOption{OptUriQuery, []byte(q)})
	}
	if d.Accept != CTNone {
		opts = append(opts, rawOption{OptAccept, beBytes(uint64(d.Accept))})
	}
	for _, seg := range d.LocationPath {
		opts = append(opts, rawOption{OptLocationPath, []byte(seg)})
	}
	if d.Block2 != nil {
		v, err := encodeBlockValue(d.Block2)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rawOption{OptBlock2, v})
	}
	if d.Block1 != nil {
		v, err := encodeBlockValue(d.Block1)
		if err != nil {
			return nil, err
		}
		opts = append(opts, rawOption{OptBlock1, v})
	}

	sortOptionsAscending(opts)
	return opts, nil
}

func sortOptionsAscending(opts []rawOption) {
	for i := 1; i < len(opts); i++ {
		for j := i; j > 0 && opts[j].Number < opts[j-1].Number; j-- {
			opts[j], opts[j-1] = opts[j-1], opts[j]
		}
	}
}

func pathSegments(d *Descriptor) []string {
	if d.UriPath != nil {
		return d.UriPath
	}
	if d.Path.IsRoot() {
		return nil
	}
	var segs []string
	if d.Path.HasOID {
		segs = append(segs, strconv.Itoa(int(d.Path.OID)))
	}
	if d.Path.HasIID {
		segs = append(segs, strconv.Itoa(int(d.Path.IID)))
	}
	if d.Path.HasRID {
		segs = append(segs, strconv.Itoa(int(d.Path.RID)))
	}
	if d.Path.HasRIID {
		segs = append(segs, strconv.Itoa(int(d.Path.RIID)))
	}
	return segs
}

func buildQuery(a AttrBag) []string {
	var qs []string
	add := func(k string, v string) { qs = append(qs, k+"="+v) }
	if a.Pmin != nil {
		add("pmin", strconv.Itoa(*a.Pmin))
	}
	if a.Pmax != nil {
		add("pmax", strconv.Itoa(*a.Pmax))
	}
	if a.Gt != nil {
		add("gt", strconv.FormatFloat(*a.Gt, 'g', -1, 64))
	}
	if a.Lt != nil {
		add("lt", strconv.FormatFloat(*a.Lt, 'g', -1, 64))
	}
	if a.St != nil {
		add("st", strconv.FormatFloat(*a.St, 'g', -1, 64))
	}
	if a.Epmin != nil {
		add("epmin", strconv.Itoa(*a.Epmin))
	}
	if a.Epmax != nil {
		add("epmax", strconv.Itoa(*a.Epmax))
	}
	if a.Depth != nil {
		add("depth", strconv.Itoa(*a.Depth))
	}
	if a.Endpoint != "" {
		add("ep", a.Endpoint)
	}
	if a.Lifetime != nil {
		add("lt", strconv.Itoa(*a.Lifetime))
	}
	if a.Binding != "" {
		add("b", a.Binding)
	}
	if a.Lwm2mVersion != "" {
		add("lwm2m", a.Lwm2mVersion)
	}
	if a.QueueMode {
		qs = append(qs, "Q")
	}
	return qs
}

func beBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	full := make([]byte, 8)
	binary.BigEndian.PutUint64(full, v)
	i := 0
	for i < len(full)-1 && full[i] == 0 {
		i++
	}
	return full[i:]
}

// JoinLocationPath renders a decoded Location-Path as a single "/a/b" string,
// the form the client state machine stores and reuses as Uri-Path on Update.
func JoinLocationPath(segs []string) string { return "/" + strings.Join(segs, "/") }
