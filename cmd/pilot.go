// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var pilotStep float64

var pilotCmd = &cobra.Command{
	Use:   "pilot",
	Short: "Interactive console for driving the vehicle",
	Long: `Drive the vehicle from the keyboard.

Each key press encodes one command frame and writes it to the daemon's
command socket. Arrow keys (or WASD) step the thrust vector, the ballast and
lamp have their own keys, and space stops all thrust. Press ? for the full
key map.

When a telemetry source is given (--pipe, --port or --listen) the console
also shows live readings, reconnecting automatically when the stream
drops.`,
	Args: cobra.NoArgs,
	RunE: runPilot,
}

func init() {
	rootCmd.AddCommand(pilotCmd)
	pilotCmd.Flags().Float64Var(&pilotStep, "step", 0.1, "Thrust change per key press")
}

func runPilot(cmd *cobra.Command, args []string) error {
	if pilotStep <= 0 || pilotStep > 1 {
		return fmt.Errorf("--step %v out of range (0, 1]", pilotStep)
	}

	client, err := dialCommandSocket()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry is optional
	var cm *connectionManager
	telemetryInfo := "no telemetry source"
	if pipePath != "" || portName != "" || listenAddr != "" {
		src, err := resolveSource()
		if err != nil {
			client.Close()
			return err
		}
		telemetryInfo = src.describe()
		// A pipe or WebSocket source may not be up yet; the reader loop
		// keeps retrying in the background
		cm = newConnectionManager(ctx, src, nil)
	}

	m := initialPilotModel(client, telemetryInfo, float32(pilotStep))
	p := tea.NewProgram(m, tea.WithAltScreen())

	if cm != nil {
		cm.p = p
		go cm.readerLoop()
	}

	final, err := p.Run()
	cancel()
	if pm, ok := final.(pilotModel); ok && pm.client != nil {
		pm.client.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
