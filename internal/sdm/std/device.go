package std

import "github.com/1stship/lwm2mcore/internal/sdm"

// Device resource IDs, OMA-TS-LightweightM2M-V1_0_2 Appendix D.1.
const (
	RIDDevManufacturer         uint16 = 0
	RIDDevModelNumber          uint16 = 1
	RIDDevSerialNumber         uint16 = 2
	RIDDevFirmwareVersion      uint16 = 3
	RIDDevReboot               uint16 = 4
	RIDDevAvailablePower       uint16 = 6
	RIDDevBatteryLevel         uint16 = 9
	RIDDevErrorCode            uint16 = 11
	RIDDevCurrentTime          uint16 = 13
	RIDDevSupportedBindingMode uint16 = 16
)

// RebootFn is invoked when the Reboot resource is executed; the core has no
// opinion on what rebooting means for a given device and defers entirely to
// the caller, per spec.md §1 ("firmware-update business logic" is an
// external collaborator).
type RebootFn func() error

type rebootHandler struct{ fn RebootFn }

func (r *rebootHandler) ResExecute(ctx *sdm.OpContext, args []byte) error {
	if r.fn == nil {
		return nil
	}
	return r.fn()
}

// DeviceHandler implements sdm.ObjectHandler for OID 3.
type DeviceHandler struct {
	TransactionBase
}

// DeviceInfo seeds the read-only identification resources.
type DeviceInfo struct {
	Manufacturer         string
	ModelNumber          string
	SerialNumber         string
	FirmwareVersion      string
	SupportedBindingMode string
}

// NewDeviceObject constructs the Device object and its single Instance 0,
// which LwM2M always expects to be present.
func NewDeviceObject(info DeviceInfo, reboot RebootFn) *sdm.Object {
	h := &DeviceHandler{}
	obj := sdm.NewObject(sdm.OIDDevice, "1.1", 1, h)
	h.Init(obj)

	inst := sdm.NewInstance(0)
	inst.AddResource(sdm.NewResource(RIDDevManufacturer, sdm.TypeString, sdm.KindR, nil))
	inst.Resource(RIDDevManufacturer).SetInline(sdm.StringValue(info.Manufacturer))
	inst.AddResource(sdm.NewResource(RIDDevModelNumber, sdm.TypeString, sdm.KindR, nil))
	inst.Resource(RIDDevModelNumber).SetInline(sdm.StringValue(info.ModelNumber))
	inst.AddResource(sdm.NewResource(RIDDevSerialNumber, sdm.TypeString, sdm.KindR, nil))
	inst.Resource(RIDDevSerialNumber).SetInline(sdm.StringValue(info.SerialNumber))
	inst.AddResource(sdm.NewResource(RIDDevFirmwareVersion, sdm.TypeString, sdm.KindR, nil))
	inst.Resource(RIDDevFirmwareVersion).SetInline(sdm.StringValue(info.FirmwareVersion))
	inst.AddResource(sdm.NewResource(RIDDevReboot, sdm.TypeNone, sdm.KindE, &rebootHandler{fn: reboot}))

	power := sdm.NewMultiResource(RIDDevAvailablePower, sdm.TypeInt, sdm.KindRM, nil)
	power.SeedInstance(0, sdm.IntValue(0)) // DC power
	inst.AddResource(power)

	inst.AddResource(sdm.NewResource(RIDDevBatteryLevel, sdm.TypeInt, sdm.KindR, nil))
	inst.Resource(RIDDevBatteryLevel).SetInline(sdm.IntValue(100))

	errCodes := sdm.NewMultiResource(RIDDevErrorCode, sdm.TypeInt, sdm.KindRM, nil)
	errCodes.SeedInstance(0, sdm.IntValue(0)) // no error
	inst.AddResource(errCodes)

	inst.AddResource(sdm.NewResource(RIDDevCurrentTime, sdm.TypeTime, sdm.KindRW, nil))
	inst.AddResource(sdm.NewResource(RIDDevSupportedBindingMode, sdm.TypeString, sdm.KindR, nil))
	inst.Resource(RIDDevSupportedBindingMode).SetInline(sdm.StringValue(info.SupportedBindingMode))

	obj.AddInstance(inst)
	return obj
}

// SetBatteryLevel updates resource 9 outside of any server-driven
// transaction, for the owning application to report sensor state.
func SetBatteryLevel(obj *sdm.Object, pct int64) {
	inst := obj.Instance(0)
	if inst == nil {
		return
	}
	inst.Resource(RIDDevBatteryLevel).SetInline(sdm.IntValue(pct))
}

// SetErrorCode appends an error code to resource 11 outside of any
// server-driven transaction.
func SetErrorCode(obj *sdm.Object, code int64) {
	inst := obj.Instance(0)
	if inst == nil {
		return
	}
	res := inst.Resource(RIDDevErrorCode)
	res.SeedInstance(uint16(len(res.Instances())), sdm.IntValue(code))
}
