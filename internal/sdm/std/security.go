package std

import "github.com/1stship/lwm2mcore/internal/sdm"

// Security resource IDs, OMA-TS-LightweightM2M-V1_0_2 Appendix D.1.
const (
	RIDSecServerURI          uint16 = 0
	RIDSecBootstrapServer    uint16 = 1
	RIDSecSecurityMode       uint16 = 2
	RIDSecPublicKeyOrID      uint16 = 3
	RIDSecServerPublicKey    uint16 = 4
	RIDSecSecretKey          uint16 = 5
	RIDSecShortServerID      uint16 = 10
	RIDSecClientHoldOffTime  uint16 = 11
)

// SecurityMode enumerates resource 2's closed value set. The transport layer
// (internal/transport) implements PSK (DTLS) and NoSec (plain UDP) only.
type SecurityMode int64

const (
	SecurityModePSK SecurityMode = iota
	SecurityModeRPK
	SecurityModeCertificate
	SecurityModeNoSec
)

// SecurityHandler implements sdm.ObjectHandler for OID 0. Every field is a
// BS_RW resource: writable by ordinary servers only during bootstrap
// (spec.md §3 invariant 4), always writable by the bootstrap server itself.
type SecurityHandler struct {
	TransactionBase
}

// NewSecurityObject constructs the Security object with no instances; call
// AddInstance (via NewSecurityInstance) to provision bootstrap/registration
// server entries.
func NewSecurityObject() *sdm.Object {
	h := &SecurityHandler{}
	obj := sdm.NewObject(sdm.OIDSecurity, "1.0", 16, h)
	h.Init(obj)
	return obj
}

// NewSecurityInstance builds one Security Instance (one LwM2M server entry).
func NewSecurityInstance(iid uint16, serverURI string, bootstrapServer bool, mode SecurityMode, identity, key []byte, shortServerID int64) *sdm.Instance {
	inst := sdm.NewInstance(iid)
	inst.AddResource(sdm.NewResource(RIDSecServerURI, sdm.TypeString, sdm.KindBsRW, nil))
	inst.Resource(RIDSecServerURI).SetInline(sdm.StringValue(serverURI))
	inst.AddResource(sdm.NewResource(RIDSecBootstrapServer, sdm.TypeBool, sdm.KindBsRW, nil))
	inst.Resource(RIDSecBootstrapServer).SetInline(sdm.BoolValue(bootstrapServer))
	inst.AddResource(sdm.NewResource(RIDSecSecurityMode, sdm.TypeInt, sdm.KindBsRW, nil))
	inst.Resource(RIDSecSecurityMode).SetInline(sdm.IntValue(int64(mode)))
	inst.AddResource(sdm.NewResource(RIDSecPublicKeyOrID, sdm.TypeBytes, sdm.KindBsRW, nil))
	inst.Resource(RIDSecPublicKeyOrID).SetInline(sdm.BytesValue(identity))
	inst.AddResource(sdm.NewResource(RIDSecServerPublicKey, sdm.TypeBytes, sdm.KindBsRW, nil))
	inst.AddResource(sdm.NewResource(RIDSecSecretKey, sdm.TypeBytes, sdm.KindBsRW, nil))
	inst.Resource(RIDSecSecretKey).SetInline(sdm.BytesValue(key))
	inst.AddResource(sdm.NewResource(RIDSecShortServerID, sdm.TypeInt, sdm.KindBsRW, nil))
	inst.Resource(RIDSecShortServerID).SetInline(sdm.IntValue(shortServerID))
	inst.AddResource(sdm.NewResource(RIDSecClientHoldOffTime, sdm.TypeInt, sdm.KindBsRW, nil))
	inst.Resource(RIDSecClientHoldOffTime).SetInline(sdm.IntValue(0))
	return inst
}

// SecurityParams is the subset of a Security Instance the client state
// machine needs to open a connection (spec.md §4.4).
type SecurityParams struct {
	ServerURI       string
	BootstrapServer bool
	Mode            SecurityMode
	Identity        []byte
	Key             []byte
	ShortServerID   int64
}

// ReadSecurityParams extracts SecurityParams from a Security Instance.
func ReadSecurityParams(inst *sdm.Instance) SecurityParams {
	get := func(rid uint16) *sdm.Resource { return inst.Resource(rid) }
	return SecurityParams{
		ServerURI:       get(RIDSecServerURI).Inline().AsString(),
		BootstrapServer: get(RIDSecBootstrapServer).Inline().Bool,
		Mode:            SecurityMode(get(RIDSecSecurityMode).Inline().Int),
		Identity:        get(RIDSecPublicKeyOrID).Inline().Bytes,
		Key:             get(RIDSecSecretKey).Inline().Bytes,
		ShortServerID:   get(RIDSecShortServerID).Inline().Int,
	}
}
