// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

var (
	checkShowAll       bool
	checkStatsInterval int
	checkDuration      time.Duration
	checkStrict        bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Detect anomalies in the telemetry stream",
	Long: `Validate each telemetry packet and report anomalies with statistics.

This command detects:
  - Unknown packet ids
  - Invalid ballast states and targets
  - Duty cycles above 100% and unknown thruster selections
  - Thrust vectors with x outside [-1, 1] or y outside [0, 1]
  - Stale environment readings
  - System timing where run + idle differs from total
  - Tick counts that go backwards for the same packet

By default, only anomalies are displayed. Use --show-all to display valid
packets too. With --duration the check stops after the given time; with
--strict it then exits with status 1 if any anomaly was seen.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkShowAll, "show-all", false, "Show all packets (not just anomalies)")
	checkCmd.Flags().IntVar(&checkStatsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	checkCmd.Flags().DurationVar(&checkDuration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Exit with status 1 when anomalies were seen")
}

// printValidationErrors prints the anomalies found in one record
func printValidationErrors(received time.Time, r telemetry.Record, errors []telemetry.ValidationError) {
	timestamp := received.Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mANOMALY:\033[0m %s (0x%X) tick %d\n",
		timestamp, telemetry.FormatPacketID(r.ID), r.ID, r.Tick)

	for i, err := range errors {
		switch err.Type {
		case telemetry.AnomalyStaleSensor:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		case telemetry.AnomalyTiming:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if total, ok := err.Details["total"].(time.Duration); ok {
				fmt.Printf("    reported total=%v\n", total)
			}
		default:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		}
	}

	fmt.Printf("  %s\n\n", telemetry.FormatRecord(r))
}

func runCheck(cmd *cobra.Command, args []string) error {
	src, err := resolveSource()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if checkDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, checkDuration)
		defer cancel()
	}

	conn, err := src.open(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Nautilus - Telemetry Check\n")
	fmt.Printf("Source: %s\n", src.describe())
	fmt.Printf("Statistics interval: %d seconds\n", checkStatsInterval)
	if checkShowAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Anomalies only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := telemetry.NewStatistics()

	statsTicker := time.NewTicker(time.Duration(checkStatsInterval) * time.Second)
	defer statsTicker.Stop()

	// The reader hands packets to the main loop so statistics are only
	// touched here
	packets := make(chan packetMsg, 64)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readPackets(conn, telemetry.NewValidator(), func(msg packetMsg) {
			select {
			case packets <- msg:
			case <-ctx.Done():
			}
		})
	}()

	finish := func() error {
		fmt.Println()
		fmt.Print(stats.String())
		if checkStrict && stats.TotalPackets != stats.ValidPackets {
			os.Exit(1)
		}
		return nil
	}

	for {
		select {
		case msg := <-packets:
			stats.Update(msg.record, msg.decodeErr, msg.validationErrors)
			switch {
			case msg.decodeErr != nil:
				timestamp := msg.received.Format("15:04:05.000")
				fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, msg.decodeErr)
				fmt.Printf("  %s\n\n", telemetry.FormatPacket(msg.packet))
			case len(msg.validationErrors) > 0:
				printValidationErrors(msg.received, msg.record, msg.validationErrors)
			case checkShowAll:
				fmt.Println(telemetry.FormatRecord(msg.record))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()

		case err := <-readErr:
			if isStreamClosed(err) || ctx.Err() != nil {
				fmt.Printf("Connection closed\n")
				return finish()
			}
			return err

		case <-ctx.Done():
			conn.Close()
			return finish()
		}
	}
}
