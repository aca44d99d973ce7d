// Command lwm2mcored is the LwM2M client daemon: it loads a device's
// object tree and security credentials, then runs the register/update/
// observe state machine against its configured servers (spec.md §4.4).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/1stship/lwm2mcore/internal/bootstrap"
	"github.com/1stship/lwm2mcore/internal/client"
	"github.com/1stship/lwm2mcore/internal/config"
	"github.com/1stship/lwm2mcore/internal/lwlog"
	"github.com/1stship/lwm2mcore/internal/lwmetrics"
	"github.com/1stship/lwm2mcore/internal/persistence"
	"github.com/1stship/lwm2mcore/internal/sdm/std"
)

const version = "0.1.0"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "lwm2mcored",
		Short:   "LwM2M client core daemon",
		Version: version,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.yaml", "path to config.yaml")

	root.AddCommand(
		newPrepareCmd(&configPath),
		newBootstrapCmd(&configPath),
		newRegisterCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newPrepareCmd scaffolds a fresh config.yaml and seeds the endpoint name,
// the way the teacher's "-init" flag wrote a default config.json.
func newPrepareCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "create a default config.yaml for a new device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(*configPath); err == nil {
				return fmt.Errorf("lwm2mcored: %s already exists", *configPath)
			}
			cfg := config.Default()
			cfg.RootPath = filepath.Dir(*configPath)
			cfg.EndpointClientName = config.GenerateEndpointName()
			if err := os.MkdirAll(cfg.RootPath, 0755); err != nil {
				return err
			}
			if err := config.Save(*configPath, cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s with endpoint %s\n", *configPath, cfg.EndpointClientName)
			return nil
		},
	}
}

// newBootstrapCmd runs the client-initiated bootstrap flow against
// cfg.BootstrapServer and persists whatever Security/Server instances the
// bootstrap server writes (spec.md §4.4 supplement).
func newBootstrapCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "run the bootstrap flow against the configured bootstrap server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := lwlog.New(cfg.LogLevel)
			metrics := lwmetrics.NewRegistry(newLocalRegistry())

			model := bootstrap.Prepare(bootstrap.Seed{
				EndpointName:       cfg.EndpointClientName,
				BootstrapServerURI: cfg.BootstrapServer,
				BootstrapMode:      config.SecurityMode(cfg.BootstrapMode),
				Device:             deviceInfoFromConfig(cfg),
			}, rebootFn(log))

			srv := client.NewServer(0, cfg.BootstrapServer, config.SecurityMode(cfg.BootstrapMode), nil, nil,
				model.DM, cfg.EndpointClientName, 0, nil, nil, metrics, lwlog.WithServer(log, 0))

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			if err := srv.Open(ctx); err != nil {
				return err
			}
			defer srv.Close()

			if err := srv.RequestBootstrap(ctx); err != nil {
				return err
			}

			deadline := time.Now().Add(60 * time.Second)
			for time.Now().Before(deadline) {
				if err := srv.Poll(2 * time.Second); err != nil {
					return err
				}
				if len(model.Security.Instances()) > 1 {
					break
				}
			}

			if err := persistence.SaveSecurity(filepath.Join(cfg.RootPath, "security.dat"), model.Security); err != nil {
				return err
			}
			if err := persistence.SaveServer(filepath.Join(cfg.RootPath, "server.dat"), model.Server); err != nil {
				return err
			}
			fmt.Println("bootstrap complete")
			return nil
		},
	}
}

// newRegisterCmd is the long-running daemon: it registers with the one known
// server, then runs Update/Observe ticking until a termination signal
// arrives, mirroring the teacher's Inventoryd.Run.
func newRegisterCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "register with configured servers and run the client state machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := lwlog.New(cfg.LogLevel)
			metrics := lwmetrics.NewRegistry(newLocalRegistry())

			seed := bootstrap.Seed{
				EndpointName:       cfg.EndpointClientName,
				BootstrapServerURI: cfg.BootstrapServer,
				BootstrapMode:      config.SecurityMode(cfg.BootstrapMode),
				KnownServerURI:     cfg.KnownServer,
				KnownServerMode:    config.SecurityMode(cfg.KnownMode),
				KnownShortServer:   cfg.KnownShortID,
				KnownLifetime:      cfg.KnownLifetime,
				Device:             deviceInfoFromConfig(cfg),
			}
			if secParams, err := persistence.LoadSecurity(filepath.Join(cfg.RootPath, "security.dat")); err == nil && len(secParams) > 0 {
				for _, p := range secParams {
					if !p.BootstrapServer {
						seed.KnownServerURI = p.ServerURI
						seed.KnownServerMode = p.Mode
						seed.KnownIdentity = p.Identity
						seed.KnownKey = p.Key
						seed.KnownShortServer = p.ShortServerID
					}
				}
			}

			model := bootstrap.Prepare(seed, rebootFn(log))
			if model.Server == nil || len(model.Server.Instances()) == 0 {
				return fmt.Errorf("lwm2mcored: no known server configured; run bootstrap first")
			}

			srv := client.NewServer(seed.KnownShortServer, seed.KnownServerURI, seed.KnownServerMode,
				seed.KnownIdentity, seed.KnownKey, model.DM, cfg.EndpointClientName, seed.KnownLifetime,
				model.Server, model.ServerUpdatePending, metrics, lwlog.WithServer(log, uint16(seed.KnownShortServer)))

			ctx := context.Background()
			if err := srv.Open(ctx); err != nil {
				return err
			}
			if err := srv.Register(ctx); err != nil {
				return err
			}

			stopUpdate := make(chan struct{})
			stopObserve := make(chan struct{})
			lifetime := time.Duration(seed.KnownLifetime) * time.Second
			go srv.StartUpdate(ctx, lifetime*9/10, stopUpdate)
			observeInterval := time.Duration(cfg.ObserveInterval) * time.Second
			go srv.StartObserving(observeInterval, stopObserve)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

			stopPoll := make(chan struct{})
			pollDone := make(chan struct{})
			go func() {
				defer close(pollDone)
				for {
					select {
					case <-stopPoll:
						return
					default:
						if err := srv.Poll(500 * time.Millisecond); err != nil {
							log.WithError(err).Warn("poll failed")
						}
					}
				}
			}()

			<-sigCh
			log.Info("received termination signal")
			close(stopUpdate)
			close(stopObserve)
			close(stopPoll)
			deregCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Deregister(deregCtx)
			<-pollDone
			return nil
		},
	}
}

func newLocalRegistry() prometheus.Registerer {
	return prometheus.NewRegistry()
}

func deviceInfoFromConfig(cfg *config.Config) std.DeviceInfo {
	return std.DeviceInfo{
		Manufacturer:    cfg.Device.Manufacturer,
		ModelNumber:     cfg.Device.ModelNumber,
		SerialNumber:    cfg.Device.SerialNumber,
		FirmwareVersion: cfg.Device.FirmwareVersion,
	}
}

func rebootFn(log interface{ Warn(args ...interface{}) }) std.RebootFn {
	return func() error {
		log.Warn("reboot executed unexpectedly")
		return nil
	}
}
