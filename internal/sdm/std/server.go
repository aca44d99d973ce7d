package std

import "github.com/1stship/lwm2mcore/internal/sdm"

// Server resource IDs, OMA-TS-LightweightM2M-V1_0_2 Appendix D.1.
const (
	RIDSrvShortServerID             uint16 = 0
	RIDSrvLifetime                  uint16 = 1
	RIDSrvDefaultMinPeriod          uint16 = 2
	RIDSrvDefaultMaxPeriod          uint16 = 3
	RIDSrvDisableTimeout            uint16 = 5
	RIDSrvNotificationStoring       uint16 = 6
	RIDSrvBinding                   uint16 = 7
	RIDSrvRegistrationUpdateTrigger uint16 = 8
)

// updateTrigger implements sdm.Executable for resource 8: executing it sets
// the Instance's pending-update flag. client.Server.Update clears the flag
// after a successful Update; nothing in the client starts an Update because
// the flag is set.
type updateTrigger struct {
	pending *bool
}

func (t *updateTrigger) ResExecute(ctx *sdm.OpContext, args []byte) error {
	*t.pending = true
	return nil
}

// ServerHandler implements sdm.ObjectHandler for OID 1.
type ServerHandler struct {
	TransactionBase
}

// NewServerObject constructs the Server object.
func NewServerObject() *sdm.Object {
	h := &ServerHandler{}
	obj := sdm.NewObject(sdm.OIDServer, "1.0", 16, h)
	h.Init(obj)
	return obj
}

// NewServerInstance builds one Server Instance and returns a pointer to its
// pending-update flag, which executing resource 8 sets and
// client.Server.Update clears after a successful Update.
func NewServerInstance(iid uint16, shortServerID int64, lifetime, minPeriod, maxPeriod int64, binding string) (*sdm.Instance, *bool) {
	pending := new(bool)
	inst := sdm.NewInstance(iid)
	inst.AddResource(sdm.NewResource(RIDSrvShortServerID, sdm.TypeInt, sdm.KindR, nil))
	inst.Resource(RIDSrvShortServerID).SetInline(sdm.IntValue(shortServerID))
	inst.AddResource(sdm.NewResource(RIDSrvLifetime, sdm.TypeInt, sdm.KindRW, nil))
	inst.Resource(RIDSrvLifetime).SetInline(sdm.IntValue(lifetime))
	inst.AddResource(sdm.NewResource(RIDSrvDefaultMinPeriod, sdm.TypeInt, sdm.KindRW, nil))
	inst.Resource(RIDSrvDefaultMinPeriod).SetInline(sdm.IntValue(minPeriod))
	inst.AddResource(sdm.NewResource(RIDSrvDefaultMaxPeriod, sdm.TypeInt, sdm.KindRW, nil))
	inst.Resource(RIDSrvDefaultMaxPeriod).SetInline(sdm.IntValue(maxPeriod))
	inst.AddResource(sdm.NewResource(RIDSrvDisableTimeout, sdm.TypeInt, sdm.KindRW, nil))
	inst.Resource(RIDSrvDisableTimeout).SetInline(sdm.IntValue(86400))
	inst.AddResource(sdm.NewResource(RIDSrvNotificationStoring, sdm.TypeBool, sdm.KindRW, nil))
	inst.Resource(RIDSrvNotificationStoring).SetInline(sdm.BoolValue(true))
	inst.AddResource(sdm.NewResource(RIDSrvBinding, sdm.TypeString, sdm.KindRW, nil))
	inst.Resource(RIDSrvBinding).SetInline(sdm.StringValue(binding))
	inst.AddResource(sdm.NewResource(RIDSrvRegistrationUpdateTrigger, sdm.TypeNone, sdm.KindE, &updateTrigger{pending: pending}))
	return inst, pending
}

// ServerParams is the subset of a Server Instance that the persistence
// package saves and loads.
type ServerParams struct {
	ShortServerID int64
	Lifetime      int64
	Binding       string
}

// ReadServerParams extracts ServerParams from a Server Instance.
func ReadServerParams(inst *sdm.Instance) ServerParams {
	return ServerParams{
		ShortServerID: inst.Resource(RIDSrvShortServerID).Inline().Int,
		Lifetime:      inst.Resource(RIDSrvLifetime).Inline().Int,
		Binding:       inst.Resource(RIDSrvBinding).Inline().AsString(),
	}
}
