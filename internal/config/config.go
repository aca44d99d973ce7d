// Package config loads lwm2mcored's runtime configuration via viper
// (config.yaml plus environment overrides), replacing the teacher's
// hand-rolled flag + JSON config (spec.md §4.4 ambient stack).
package config

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/1stship/lwm2mcore/internal/sdm/std"
)

// Config is lwm2mcored's full runtime configuration: where the device
// stores its object definitions and persisted credentials, the endpoint
// name it registers under, and the bootstrap/known-server seeds used the
// first time it runs (mirrors the teacher's Config but adds the fields
// SPEC_FULL.md's bootstrap/security/observe modules need).
type Config struct {
	RootPath           string `mapstructure:"rootPath"`
	EndpointClientName string `mapstructure:"endpointClientName"`
	ObserveInterval    int    `mapstructure:"observeInterval"`

	BootstrapServer string `mapstructure:"bootstrapServer"`
	BootstrapMode   string `mapstructure:"bootstrapMode"`

	KnownServer     string `mapstructure:"knownServer"`
	KnownShortID    int64  `mapstructure:"knownShortId"`
	KnownLifetime   int64  `mapstructure:"knownLifetime"`
	KnownMode       string `mapstructure:"knownMode"`

	LogLevel string `mapstructure:"logLevel"`

	Device struct {
		Manufacturer    string `mapstructure:"manufacturer"`
		ModelNumber     string `mapstructure:"modelNumber"`
		SerialNumber    string `mapstructure:"serialNumber"`
		FirmwareVersion string `mapstructure:"firmwareVersion"`
	} `mapstructure:"device"`
}

// Default fills in the values the teacher's CreateDefaultConfig seeded a
// fresh config.json with.
func Default() *Config {
	c := &Config{
		RootPath:        ".",
		ObserveInterval: 30,
		BootstrapMode:   "psk",
		KnownMode:       "nosec",
		LogLevel:        "info",
	}
	c.Device.Manufacturer = "lwm2mcore"
	c.Device.ModelNumber = "generic"
	c.Device.FirmwareVersion = "0.1.0"
	return c
}

// Load reads configPath (a YAML file) into a fresh viper instance, applying
// LWM2MCORE_-prefixed environment overrides (LWM2MCORE_ENDPOINTCLIENTNAME
// overrides endpointClientName, etc.) the way the teacher's flag package let
// command-line flags override config.json fields.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LWM2MCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("rootPath", def.RootPath)
	v.SetDefault("observeInterval", def.ObserveInterval)
	v.SetDefault("bootstrapMode", def.BootstrapMode)
	v.SetDefault("knownMode", def.KnownMode)
	v.SetDefault("logLevel", def.LogLevel)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "config: read")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}
	return cfg, nil
}

// Save writes cfg back to configPath as YAML, the way the teacher's
// SaveConfig persisted endpoint/root-path edits made via flags.
func Save(configPath string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.Set("rootPath", cfg.RootPath)
	v.Set("endpointClientName", cfg.EndpointClientName)
	v.Set("observeInterval", cfg.ObserveInterval)
	v.Set("bootstrapServer", cfg.BootstrapServer)
	v.Set("bootstrapMode", cfg.BootstrapMode)
	v.Set("knownServer", cfg.KnownServer)
	v.Set("knownShortId", cfg.KnownShortID)
	v.Set("knownLifetime", cfg.KnownLifetime)
	v.Set("knownMode", cfg.KnownMode)
	v.Set("logLevel", cfg.LogLevel)
	v.Set("device.manufacturer", cfg.Device.Manufacturer)
	v.Set("device.modelNumber", cfg.Device.ModelNumber)
	v.Set("device.serialNumber", cfg.Device.SerialNumber)
	v.Set("device.firmwareVersion", cfg.Device.FirmwareVersion)
	return v.WriteConfigAs(configPath)
}

// GenerateEndpointName returns a fresh "urn:uuid:" endpoint name, the form
// the LwM2M TS allows for devices with no natural human-assigned identity
// (OMA-TS-LightweightM2M Appendix C). The teacher instead stamped a
// timestamp into inventoryd-<yyyymmddhhmmss>; a random UUID also avoids
// collisions across two devices provisioned in the same second.
func GenerateEndpointName() string {
	return "urn:uuid:" + uuid.New().String()
}

// SecurityMode parses one of the config's mode strings into the sdm/std
// enum, defaulting to PSK if the value is empty or unrecognized.
func SecurityMode(s string) std.SecurityMode {
	switch strings.ToLower(s) {
	case "nosec":
		return std.SecurityModeNoSec
	case "rpk":
		return std.SecurityModeRPK
	case "cert":
		return std.SecurityModeCertificate
	default:
		return std.SecurityModePSK
	}
}
