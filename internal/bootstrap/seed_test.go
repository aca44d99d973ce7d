package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1stship/lwm2mcore/internal/sdm"
	"github.com/1stship/lwm2mcore/internal/sdm/std"
)

func TestPrepareSeedsBootstrapServerOnly(t *testing.T) {
	s := Seed{
		EndpointName:       "urn:uuid:test",
		BootstrapServerURI: "coaps://bs.example.com:5684",
		BootstrapMode:      std.SecurityModePSK,
		BootstrapIdentity:  []byte("client-id"),
		BootstrapKey:       []byte("secret"),
		Device:             DeviceInfo{Manufacturer: "Acme", ModelNumber: "X1"},
	}

	m := Prepare(s, nil)
	require.NotNil(t, m.DM)
	require.Len(t, m.Security.Instances(), 1)
	assert.Len(t, m.Server.Instances(), 0)
	assert.Nil(t, m.ServerUpdatePending)

	params := std.ReadSecurityParams(m.Security.Instance(0))
	assert.Equal(t, "coaps://bs.example.com:5684", params.ServerURI)
	assert.True(t, params.BootstrapServer)
}

func TestPrepareSeedsKnownServerAlongsideBootstrap(t *testing.T) {
	s := Seed{
		BootstrapServerURI: "coaps://bs.example.com:5684",
		BootstrapMode:      std.SecurityModePSK,
		KnownServerURI:     "coaps://lwm2m.example.com:5684",
		KnownServerMode:    std.SecurityModePSK,
		KnownShortServer:   1,
		KnownLifetime:      3600,
		Device:             DeviceInfo{Manufacturer: "Acme"},
	}

	m := Prepare(s, nil)
	require.Len(t, m.Security.Instances(), 2)
	require.Len(t, m.Server.Instances(), 1)
	require.NotNil(t, m.ServerUpdatePending)
	assert.False(t, *m.ServerUpdatePending)

	known := std.ReadSecurityParams(m.Security.Instance(1))
	assert.False(t, known.BootstrapServer)
	assert.Equal(t, int64(1), known.ShortServerID)

	srvParams := std.ReadServerParams(m.Server.Instance(0))
	assert.Equal(t, int64(3600), srvParams.Lifetime)
}

func TestPrepareRebootExecutesProvidedFn(t *testing.T) {
	called := false
	m := Prepare(Seed{BootstrapServerURI: "coaps://bs", Device: DeviceInfo{}}, func() error {
		called = true
		return nil
	})
	res := m.Device.Instance(0).Resource(std.RIDDevReboot)
	exec, ok := res.Handler.(sdm.Executable)
	require.True(t, ok)
	require.NoError(t, exec.ResExecute(nil, nil))
	assert.True(t, called)
}
