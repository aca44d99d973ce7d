package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1stship/lwm2mcore/internal/sdm/std"
)

func TestSecurityRoundTrip(t *testing.T) {
	obj := std.NewSecurityObject()
	obj.AddInstance(std.NewSecurityInstance(0, "coaps://bs.example.com", true, std.SecurityModePSK, []byte("id"), []byte("key"), 0))
	obj.AddInstance(std.NewSecurityInstance(1, "coaps://lwm2m.example.com", false, std.SecurityModePSK, []byte("id2"), []byte("key2"), 1))

	path := filepath.Join(t.TempDir(), "security.bin")
	require.NoError(t, SaveSecurity(path, obj))

	params, err := LoadSecurity(path)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "coaps://bs.example.com", params[0].ServerURI)
	assert.True(t, params[0].BootstrapServer)
	assert.Equal(t, "coaps://lwm2m.example.com", params[1].ServerURI)
	assert.Equal(t, int64(1), params[1].ShortServerID)
}

func TestServerRoundTrip(t *testing.T) {
	obj := std.NewServerObject()
	inst, _ := std.NewServerInstance(0, 1, 3600, 60, 3600, "U")
	obj.AddInstance(inst)

	path := filepath.Join(t.TempDir(), "server.bin")
	require.NoError(t, SaveServer(path, obj))

	params, err := LoadServer(path)
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, int64(1), params[0].ShortServerID)
	assert.Equal(t, int64(3600), params[0].Lifetime)
	assert.Equal(t, "U", params[0].Binding)
}

func TestLoadRejectsWrongMagic(t *testing.T) {
	obj := std.NewServerObject()
	inst, _ := std.NewServerInstance(0, 1, 3600, 60, 3600, "U")
	obj.AddInstance(inst)

	path := filepath.Join(t.TempDir(), "server.bin")
	require.NoError(t, SaveServer(path, obj))

	_, err := LoadSecurity(path)
	assert.ErrorIs(t, err, ErrBadMagic)
}
