package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1stship/lwm2mcore/internal/sdm/std"
)

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("endpointClientName: urn:uuid:fixed\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:fixed", cfg.EndpointClientName)
	assert.Equal(t, 30, cfg.ObserveInterval, "default observeInterval applies when unset")
	assert.Equal(t, "psk", cfg.BootstrapMode)
}

func TestSaveLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := Default()
	cfg.EndpointClientName = "urn:uuid:abc"
	cfg.Device.Manufacturer = "Acme"
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:abc", got.EndpointClientName)
	assert.Equal(t, "Acme", got.Device.Manufacturer)
}

func TestGenerateEndpointNameHasUUIDURNForm(t *testing.T) {
	name := GenerateEndpointName()
	assert.Contains(t, name, "urn:uuid:")
	assert.NotEqual(t, GenerateEndpointName(), GenerateEndpointName())
}

func TestSecurityModeParsesKnownValues(t *testing.T) {
	assert.Equal(t, std.SecurityModeNoSec, SecurityMode("nosec"))
	assert.Equal(t, std.SecurityModeRPK, SecurityMode("rpk"))
	assert.Equal(t, std.SecurityModeCertificate, SecurityMode("cert"))
	assert.Equal(t, std.SecurityModePSK, SecurityMode("whatever"))
}
