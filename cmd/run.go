// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/nautilus/pkg/command"
	"github.com/Thermoquad/nautilus/pkg/config"
	"github.com/Thermoquad/nautilus/pkg/hal"
	"github.com/Thermoquad/nautilus/pkg/logging"
	"github.com/Thermoquad/nautilus/pkg/metrics"
	"github.com/Thermoquad/nautilus/pkg/scheduler"
	"github.com/Thermoquad/nautilus/pkg/telemetry"
	"github.com/Thermoquad/nautilus/pkg/vehicle"
)

var (
	runSink     string
	runSafeStop bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control daemon",
	Long: `Start the control daemon.

The daemon binds the command socket, acquires the hardware, starts the
telemetry transport and runs the tick loop until SIGINT or SIGTERM. SIGHUP
starts a new log file when file logging is enabled.

Peripheral acquisition failures are fatal and reported before the loop
starts.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runSink, "sink", "", "Override telemetry.sink (fifo:PATH, serial:DEV@BAUD, ws://HOST/PATH)")
	runCmd.Flags().BoolVar(&runSafeStop, "safe-stop", false, "Drive all actuators to their safe state on exit")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runSink != "" {
		cfg.Telemetry.Sink = runSink
	}
	if runSafeStop {
		cfg.System.SafeStopOnExit = true
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		JSON:       cfg.Logging.Format == "json",
		Stderr:     cfg.Logging.Stderr,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runWith(ctx, cfg, logger)
}

// runWith builds every component from cfg and runs until ctx is done
func runWith(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("serving metrics", "addr", cfg.Metrics.Listen, "path", cfg.Metrics.Path)
			if err := m.Serve(ctx, cfg.Metrics.Listen, cfg.Metrics.Path); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := logger.Rotate(); err != nil {
					logger.Error("log rotation failed", "error", err)
				}
			}
		}
	}()

	// Hardware
	board := hal.NewSimBoard(cfg.Hardware.PinCount)
	v, err := vehicle.New(board, cfg.Hardware, logger.Named("vehicle"), m)
	if err != nil {
		return fmt.Errorf("peripheral initialisation failed: %w", err)
	}

	// Commanding
	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	queue := command.NewQueue(cfg.Commanding.QueueCapacity)
	listener := command.NewListener(command.ListenerConfig{
		Path:               cfg.Commanding.Socket,
		Registry:           registry,
		MaxFramesPerSecond: cfg.Commanding.MaxFramesPerSecond,
		Burst:              cfg.Commanding.Burst,
	}, queue, logger.Named("listener"), m)
	if err := listener.Listen(); err != nil {
		return err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Serve(ctx); err != nil {
			logger.Error("command listener stopped", "error", err)
		}
	}()
	dispatcher := command.NewDispatcher(queue, v, logger.Named("dispatcher"), m)

	// Telemetry
	open, err := telemetry.ParseSink(cfg.Telemetry.Sink)
	if err != nil {
		return fmt.Errorf("telemetry.sink: %w", err)
	}
	telemetryLogger := logger.Named("telemetry")
	transport := telemetry.NewTransport(open, telemetry.TransportConfig{
		ChannelCapacity: cfg.Telemetry.ChannelCapacity,
		Backoff:         cfg.Telemetry.RespawnBackoff.Duration,
		MaxBackoff:      cfg.Telemetry.MaxRespawnBackoff.Duration,
	}, telemetryLogger, m)
	transport.Start(ctx)
	defer transport.Wait()
	logger.Info("telemetry transport started", "sink", cfg.Telemetry.Sink)

	pipeline := telemetry.NewPipeline(transport, telemetry.PipelineConfig{
		Environment: cfg.Telemetry.Telemeters.Environment,
		Ballast:     cfg.Telemetry.Telemeters.Ballast,
		Propulsion:  cfg.Telemetry.Telemeters.Propulsion,
		System:      cfg.Telemetry.Telemeters.System,
	}, telemetryLogger, m)

	// Tick loop
	sched := scheduler.New(scheduler.Config{
		TickRate:       cfg.System.TickRate,
		SafeStopOnExit: cfg.System.SafeStopOnExit,
	}, v, dispatcher, pipeline, logger.Named("scheduler"), m)

	err = sched.Run(ctx)
	cancel()

	last := sched.LastTiming()
	logger.Info("daemon stopped",
		"ticks", sched.Tick(),
		"last_run", last.Run,
		"last_idle", last.Idle,
		"queue_dropped", queue.Dropped(),
		"packets_sent", transport.Sent(),
		"packets_dropped", transport.Dropped(),
		"worker_restarts", transport.Restarts())
	return err
}
