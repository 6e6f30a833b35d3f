// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/we-are-mono/provisiond/daemon"
	"github.com/we-are-mono/provisiond/daemon/logger"
	"github.com/we-are-mono/provisiond/state"
	"github.com/we-are-mono/provisiond/system"
	"github.com/we-are-mono/provisiond/types"
)

const defaultPIDFile = "/var/run/provisiond.pid"

var foreground bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the provisioning daemon",
	Long: `Brings up the setup access point, serves the control socket and watches
uplink connectivity until the device is online.`,
	Run: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().BoolVar(&foreground, "foreground", false, "Also log to stderr")
}

func runDaemon(cmd *cobra.Command, args []string) {
	pidFile := os.Getenv("PROVISIOND_PID_FILE")
	if pidFile == "" {
		pidFile = defaultPIDFile
	}
	if err := checkExistingDaemon(pidFile); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	cfg, err := state.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	if err := writePIDFile(pidFile); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Failed to write PID file: %v\n", err)
		os.Exit(1)
	}

	if err := initializeLogger(cfg, foreground); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] Failed to initialize logger: %v\n", err)
		os.Remove(pidFile)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = serveDaemon(ctx, cfg, buildComponents(cfg))
	stop()

	code := 0
	if err != nil {
		logger.Error("Daemon failed",
			logger.Field{Key: "component", Value: "daemon"},
			logger.Field{Key: "error", Value: err.Error()})
		code = 1
	}
	logger.Close()
	os.Remove(pidFile)
	os.Exit(code)
}

// buildComponents wires the system layer for cfg.
func buildComponents(cfg *types.Config) daemon.Components {
	timeout := cfg.CommandTimeout.Std()
	runner := system.NewDefaultCommandRunner()
	nl := system.NewDefaultNetlinkClient()

	nm := system.NewNMClient(runner, timeout)
	radio := system.NewDefaultRadio(runner, timeout)
	diag := system.NewDiagnostics(nm, radio, nl, cfg.APInterface)

	backend, err := system.NewFirewallBackend(cfg.FirewallBackend, runner, timeout)
	if err != nil {
		// ValidateConfig already rejected unknown kinds.
		backend = system.NewNetlinkFirewall()
	}

	return daemon.Components{
		Interfaces:  system.NewInterfaceManager(radio, nm, diag, cfg.UplinkInterface, cfg.DeviceWaitTimeout.Std()),
		AccessPoint: system.NewProfileManager(nm, radio, diag, cfg),
		Firewall:    system.NewFirewallManager(backend),
		Uplink:      nm,
		Routes:      system.NewRouteAdjuster(nm, nl, cfg),
		Host:        system.NewDefaultHostNetwork(),
		Prober:      system.NewHTTPProber(cfg.CheckURL, cfg.UplinkInterface, cfg.CheckTimeout.Std()),
		Marker:      state.NewMarker(cfg.ProvisionedMarker, cfg.ForceSetup),
	}
}

// serveDaemon runs bootstrap, then the socket server, monitor, link watcher
// and optional metrics listener until ctx is cancelled or the device is
// online with ExitOnOnline set. An existing provisioned marker ends the run
// successfully before anything is touched.
func serveDaemon(ctx context.Context, cfg *types.Config, c daemon.Components) error {
	metrics := daemon.NewMetrics()
	st := daemon.NewState()
	prov := daemon.NewProvisioner(cfg, st, c, metrics)

	if err := prov.Bootstrap(ctx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyProvisioned) {
			return nil
		}
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := daemon.NewServer(cfg.SocketPath, prov)
	if err := server.Listen(); err != nil {
		return err
	}

	onOnline := func() {
		logger.Info("Online, exiting",
			logger.Field{Key: "component", Value: "daemon"})
		cancel()
	}
	monitor := daemon.NewMonitor(cfg, st, c, metrics, onOnline)
	watcher := daemon.NewLinkWatcher(cfg, st, metrics)

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx); err != nil {
			errCh <- fmt.Errorf("server: %w", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		// The watcher is diagnostic only.
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("Link watcher stopped",
				logger.Field{Key: "component", Value: "daemon"},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}()

	if cfg.MetricsListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.MetricsListen); err != nil {
				logger.Warn("Metrics listener stopped",
					logger.Field{Key: "component", Value: "daemon"},
					logger.Field{Key: "error", Value: err.Error()})
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down...",
		logger.Field{Key: "component", Value: "daemon"})
	server.Stop()
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

// checkExistingDaemon checks if another daemon is already running
func checkExistingDaemon(pidFile string) error {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("PID file exists but cannot be read: %w (remove %s manually if daemon is not running)", err, pidFile)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return fmt.Errorf("invalid PID in %s: %s (remove file manually if daemon is not running)", pidFile, pidStr)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(pidFile)
		return nil
	}

	// Signal 0 only probes for existence.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		os.Remove(pidFile)
		return nil
	}

	return fmt.Errorf("daemon already running with PID %d (stop it first or remove %s if it's stale)", pid, pidFile)
}

// writePIDFile writes the current process PID to a file
func writePIDFile(pidFile string) error {
	return os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0600)
}

// initializeLogger sets up journald (or the log file) per cfg, plus stderr
// when running in the foreground.
func initializeLogger(cfg *types.Config, foreground bool) error {
	config := logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Component: "daemon",
	}

	var backends []logger.Backend
	backendName := "journald"

	journald, err := logger.NewJournaldBackend(config.Format)
	if err == nil {
		backends = append(backends, journald)
	} else {
		backendName = "file"
		file, ferr := logger.NewFileBackend(logger.DefaultLogPath, config.Format)
		if ferr != nil {
			if !foreground {
				return fmt.Errorf("failed to initialize file backend: %w", ferr)
			}
			backendName = "stderr"
		} else {
			backends = append(backends, file)
		}
	}

	if foreground {
		backends = append(backends, logger.NewWriterBackend(os.Stderr, "text"))
	}

	logger.Init(config, backends, logger.NewEmitter())

	logger.Info("Logging initialized",
		logger.Field{Key: "backend", Value: backendName},
		logger.Field{Key: "level", Value: config.Level},
		logger.Field{Key: "format", Value: config.Format})
	return nil
}
