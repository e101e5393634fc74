// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

var (
	monitorTUI    bool
	monitorNoTUI  bool
	monitorHex    bool
	monitorRecord string
	monitorOnly   []string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display the telemetry stream",
	Long: `Decode and display telemetry packets as they arrive.

On a terminal a live dashboard is shown with the latest environment, ballast,
propulsion and timing readings, packet statistics and an event log. When
stdout is not a terminal, or with --no-tui, each packet is printed on one
line.

With --record every received packet is appended to a CBOR recording that
the replay command can play back.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorTUI, "tui", false, "Force the dashboard even when stdout is not a terminal")
	monitorCmd.Flags().BoolVar(&monitorNoTUI, "no-tui", false, "Print one line per packet")
	monitorCmd.Flags().BoolVar(&monitorHex, "hex", false, "Also print raw packet bytes (text mode)")
	monitorCmd.Flags().StringVar(&monitorRecord, "record", "", "Append received packets to this recording file")
	monitorCmd.Flags().StringSliceVar(&monitorOnly, "only", nil, "Show only these packets (environment, ballast, propulsion, system)")
	monitorCmd.MarkFlagsMutuallyExclusive("tui", "no-tui")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	filter, err := parsePacketFilter(monitorOnly)
	if err != nil {
		return err
	}

	src, err := resolveSource()
	if err != nil {
		return err
	}

	var recorder *telemetry.Recorder
	if monitorRecord != "" {
		f, err := os.OpenFile(monitorRecord, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open recording: %w", err)
		}
		defer f.Close()
		w := bufio.NewWriter(f)
		defer w.Flush()
		recorder = telemetry.NewRecorder(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := src.open(ctx)
	if err != nil {
		return err
	}

	useTUI := monitorTUI || (!monitorNoTUI && term.IsTerminal(int(os.Stdout.Fd())))
	if useTUI {
		return runMonitorTUI(ctx, src, conn, recorder, filter)
	}
	return runMonitorText(ctx, src, conn, recorder, filter)
}

// parsePacketFilter maps packet names to ids; an empty list allows all
func parsePacketFilter(names []string) (map[uint8]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	filter := make(map[uint8]bool, len(names))
	for _, name := range names {
		switch name {
		case "environment", "env":
			filter[telemetry.IDEnvironment] = true
		case "ballast":
			filter[telemetry.IDBallast] = true
		case "propulsion":
			filter[telemetry.IDPropulsion] = true
		case "system":
			filter[telemetry.IDSystem] = true
		default:
			return nil, fmt.Errorf("unknown packet %q (want environment, ballast, propulsion or system)", name)
		}
	}
	return filter, nil
}

func runMonitorText(ctx context.Context, src sourceConfig, conn Connection, recorder *telemetry.Recorder, filter map[uint8]bool) error {
	fmt.Printf("Nautilus - Telemetry Monitor\n")
	fmt.Printf("Source: %s\n", src.describe())
	if recorder != nil {
		fmt.Printf("Recording: %s\n", monitorRecord)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	err := readPackets(conn, telemetry.NewValidator(), func(msg packetMsg) {
		if recorder != nil {
			if err := recorder.Record(msg.received, msg.packet); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
		}
		if filter != nil && !filter[msg.packet.ID()] {
			return
		}
		if msg.decodeErr != nil {
			fmt.Printf("[ERROR] %v\n", msg.decodeErr)
		} else {
			fmt.Println(telemetry.FormatRecord(msg.record))
		}
		if monitorHex {
			fmt.Printf("           %s\n", telemetry.FormatPacket(msg.packet))
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	if isStreamClosed(err) {
		fmt.Printf("Connection closed\n")
		return nil
	}
	return err
}

func runMonitorTUI(ctx context.Context, src sourceConfig, conn Connection, recorder *telemetry.Recorder, filter map[uint8]bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cm := newConnectionManager(ctx, src, conn)
	cm.recorder = recorder

	m := initialMonitorModel(src.describe(), filter)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	cm.p = p

	go cm.readerLoop()

	_, err := p.Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
