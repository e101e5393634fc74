// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Thermoquad/nautilus/pkg/config"
)

var (
	// Daemon flags
	configPath string
	logLevel   string
	socketPath string

	// Telemetry source flags
	pipePath   string
	portName   string
	baudRate   int
	listenAddr string
	listenPath string
	wsUsername string
)

var rootCmd = &cobra.Command{
	Use:   "nautilus",
	Short: "Submersible control daemon and topside tools",
	Long: `Nautilus - Control daemon for a small tethered submersible.

The run command starts the daemon: it accepts 16-byte command frames on a
Unix socket, drives ballast, thrusters and the lamp from a fixed-rate tick
loop, and streams 32-byte telemetry packets to a pipe, serial tether or
WebSocket station.

The remaining commands are topside tools for sending commands and
inspecting the telemetry stream.

Telemetry sources:
  Pipe:      --pipe /tmp/nautilus/telemetry.pipe
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --listen :8080 [--path /telemetry] [--username user]

With --listen the tool waits for the daemon's WebSocket sink to connect.
When --username is set the daemon must present HTTP Basic credentials; the
expected password is read from the NAUTILUS_PASSWORD environment variable,
or prompted interactively if not set.`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default $"+config.EnvConfig+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "", "Override commanding.socket")

	// Telemetry source flags
	rootCmd.PersistentFlags().StringVar(&pipePath, "pipe", "", "Telemetry named pipe to read")
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "Accept the telemetry WebSocket on this address")
	rootCmd.PersistentFlags().StringVar(&listenPath, "path", "/telemetry", "WebSocket endpoint path (--listen only)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth (--listen only)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the configuration and applies the command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if socketPath != "" {
		cfg.Commanding.Socket = socketPath
	}
	if logLevel != "" || socketPath != "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
