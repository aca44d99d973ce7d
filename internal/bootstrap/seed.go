// Package bootstrap implements the one-shot "prepare" seeding AVSystem's
// Anjay calls bootstrap_prepare: writing a fresh Security/Server/Device
// object tree from static config before the client has ever talked to a
// server. The client-initiated Bootstrap-Request itself is sent by
// client.Server.RequestBootstrap.
package bootstrap

import (
	"github.com/1stship/lwm2mcore/internal/sdm"
	"github.com/1stship/lwm2mcore/internal/sdm/std"
)

// DeviceInfo is re-exported so callers building a Seed don't need to import
// internal/sdm/std directly.
type DeviceInfo = std.DeviceInfo

// Seed is the static configuration "prepare" provisions a fresh data model
// from: one bootstrap server entry plus, optionally, one already-known
// registration server entry (the common field-provisioning path where the
// device ships with its LwM2M server credentials baked in and only needs
// the bootstrap server to hand it the rest).
type Seed struct {
	EndpointName string

	BootstrapServerURI string
	BootstrapMode      std.SecurityMode
	BootstrapIdentity  []byte
	BootstrapKey       []byte

	KnownServerURI   string
	KnownServerMode  std.SecurityMode
	KnownIdentity    []byte
	KnownKey         []byte
	KnownShortServer int64
	KnownLifetime    int64

	Device DeviceInfo
}

// Model is the data model Seed produces, plus the pending-update flag of
// the Server Instance it seeded (nil when no known server was seeded).
type Model struct {
	DM                *sdm.DataModel
	Security          *sdm.Object
	Server            *sdm.Object
	Device            *sdm.Object
	ServerUpdatePending *bool
}

// Prepare builds a DataModel with Security/Server/Device objects populated
// from s, registering the bootstrap server entry (and, if s.KnownServerURI
// is set, a second entry for the already-known registration server) in
// Security, mirroring Anjay's anjay_new + anjay_security_object_add /
// anjay_server_object_add seeding sequence (original_source/).
func Prepare(s Seed, reboot std.RebootFn) *Model {
	dm := sdm.NewDataModel()

	sec := std.NewSecurityObject()
	sec.AddInstance(std.NewSecurityInstance(0, s.BootstrapServerURI, true, s.BootstrapMode, s.BootstrapIdentity, s.BootstrapKey, 0))

	srv := std.NewServerObject()
	var pending *bool
	if s.KnownServerURI != "" {
		sec.AddInstance(std.NewSecurityInstance(1, s.KnownServerURI, false, s.KnownServerMode, s.KnownIdentity, s.KnownKey, s.KnownShortServer))
		var inst *sdm.Instance
		inst, pending = std.NewServerInstance(0, s.KnownShortServer, s.KnownLifetime, 60, 3600, "U")
		srv.AddInstance(inst)
	}

	dev := std.NewDeviceObject(s.Device, reboot)

	dm.Register(sec)
	dm.Register(srv)
	dm.Register(dev)

	return &Model{DM: dm, Security: sec, Server: srv, Device: dev, ServerUpdatePending: pending}
}
