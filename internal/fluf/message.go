// Package fluf implements the CoAP-UDP message codec carrying LwM2M
// operations: bit-exact RFC 7252 encode/decode, RFC 7959 block-wise
// transfer, and RFC 7641 observation (spec.md §4.1).
package fluf

import "github.com/1stship/lwm2mcore/internal/sdm"

// MessageType is the CoAP header Type field (RFC 7252 §3).
type MessageType byte

const (
	TypeConfirmable    MessageType = 0
	TypeNonConfirmable MessageType = 1
	TypeAcknowledgement MessageType = 2
	TypeReset           MessageType = 3
)

// Method codes (RFC 7252 §12.1.1, plus FETCH/iPATCH used by LwM2M TS).
const (
	CodeEmpty  byte = 0
	CodeGET    byte = 1
	CodePOST   byte = 2
	CodePUT    byte = 3
	CodeDELETE byte = 4
	CodeFETCH  byte = 5
	CodePATCH  byte = 6
	CodeIPATCH byte = 7
)

// Response codes (RFC 7252 §12.1.2), encoded (class<<5)|detail.
const (
	RespCreated              byte = 2<<5 | 1
	RespDeleted              byte = 2<<5 | 2
	RespValid                byte = 2<<5 | 3
	RespChanged              byte = 2<<5 | 4
	RespContent              byte = 2<<5 | 5
	RespContinue             byte = 2<<5 | 31
	RespBadRequest           byte = 4<<5 | 0
	RespUnauthorized         byte = 4<<5 | 1
	RespBadOption            byte = 4<<5 | 2
	RespForbidden            byte = 4<<5 | 3
	RespNotFound             byte = 4<<5 | 4
	RespMethodNotAllowed     byte = 4<<5 | 5
	RespNotAcceptable        byte = 4<<5 | 6
	RespRequestEntityIncomplete byte = 4<<5 | 8
	RespPreconditionFailed   byte = 4<<5 | 12
	RespRequestEntityTooLarge byte = 4<<5 | 13
	RespUnsupportedContentFormat byte = 4<<5 | 15
	RespInternalServerError  byte = 5<<5 | 0
	RespNotImplemented       byte = 5<<5 | 1
	RespServiceUnavailable   byte = 5<<5 | 3
)

// Content-Format identifiers (RFC 7252 §12.3, OMA TS LwM2M Appendix).
const (
	CTNone           = -1
	CTTextPlain      = 0
	CTOpaque         = 42
	CTLinkFormat     = 40
	CTOctetStream    = 42
	CTCBOR           = 60
	CTSenMLJSON      = 110
	CTSenMLCBOR      = 112
	CTLwM2MTLV       = 11542
	CTLwM2MJSON      = 11543
	CTLwM2MCBOR      = 11544
)

// Operation is the CoAP-level operation inferred from method + Observe +
// path shape + content-format (spec.md §4.1 inference table).
type Operation int

const (
	OpNone Operation = iota
	OpDMRead
	OpDMReadComposite
	OpDiscover
	OpInfObserve
	OpInfCancelObserve
	OpInfObserveComposite
	OpInfCancelObserveComposite
	OpDMWriteReplace
	OpDMWriteAttr
	OpBootstrapFinish
	OpDMCreate
	OpDMExecute
	OpDMWritePartialUpdate
	OpDMWriteComposite
	OpDMDelete
)

// BlockOption carries a decoded/pending Block1 or Block2 option (RFC 7959).
type BlockOption struct {
	Num  uint32
	Size uint16 // one of 16,32,64,128,256,512,1024
	More bool
}

// AttrBag is the optional notification/register/bootstrap/discover
// attribute bag populated from Uri-Query options (spec.md §4.1) or, on the
// encode side, used to build them.
type AttrBag struct {
	Pmin, Pmax   *int
	Gt, Lt, St   *float64
	Epmin, Epmax *int
	Edge, Con    *int
	Hqmax        *int
	Depth        *int
	Lwm2mVersion string
	Endpoint     string
	Lifetime     *int
	Binding      string
	QueueMode    bool
	Pct          *float64
}

// Descriptor is the operation descriptor the codec decodes into / encodes
// from (spec.md §4.1).
type Descriptor struct {
	Op   Operation
	Path sdm.Path
	// UriPath, when non-nil, overrides Path for rendering Uri-Path options:
	// it carries literal segments ("rd", a registration location) that
	// aren't expressible as a numeric data-model Path (spec.md §4.4
	// Register/Update target /rd, not an Object/Instance/Resource).
	UriPath       []string
	ContentFormat int
	Accept        int
	Token         []byte
	MessageID     uint16
	Type          MessageType
	Code          byte

	ETag         []byte
	Block1       *BlockOption
	Block2       *BlockOption
	ObservePresent bool
	ObserveValue   uint32
	Attrs          AttrBag
	LocationPath   []string

	Payload []byte
}
