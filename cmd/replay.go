// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

var (
	replaySpeed     float64
	replayAnomalies bool
	replayStats     bool
)

var replayCmd = &cobra.Command{
	Use:   "replay RECORDING",
	Short: "Play back a telemetry recording",
	Long: `Decode and print a recording made with monitor --record.

Packets are printed with their original arrival times. With --speed the
original spacing is reproduced, scaled by the given factor; the default of
0 prints as fast as possible. Every packet is validated as it would have
been live, and a statistics summary is printed at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 0, "Playback speed factor (0 = no delay, 1 = real time)")
	replayCmd.Flags().BoolVar(&replayAnomalies, "anomalies", false, "Only print packets with anomalies")
	replayCmd.Flags().BoolVar(&replayStats, "stats", true, "Print statistics at the end")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := replayRecording(ctx, bufio.NewReader(f), os.Stdout, replaySpeed, replayAnomalies)
	if replayStats {
		fmt.Println()
		fmt.Print(stats.String())
	}
	return err
}

// replayRecording prints every entry in a recording and returns the
// accumulated statistics
func replayRecording(ctx context.Context, r io.Reader, w io.Writer, speed float64, anomaliesOnly bool) (*telemetry.Statistics, error) {
	reader := telemetry.NewEntryReader(r)
	validator := telemetry.NewValidator()
	stats := telemetry.NewStatistics()

	var previous time.Time
	for {
		entry, packet, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		if speed > 0 && !previous.IsZero() {
			delay := time.Duration(float64(entry.Received.Sub(previous)) / speed)
			if delay > 0 {
				select {
				case <-ctx.Done():
					return stats, nil
				case <-time.After(delay):
				}
			}
		}
		if ctx.Err() != nil {
			return stats, nil
		}
		previous = entry.Received

		record, decodeErr := telemetry.Decode(packet)
		var validationErrors []telemetry.ValidationError
		if decodeErr == nil {
			validationErrors = validator.Validate(record)
		}
		stats.Update(record, decodeErr, validationErrors)

		timestamp := entry.Received.Format("15:04:05.000")
		switch {
		case decodeErr != nil:
			fmt.Fprintf(w, "%s [ERROR] %v\n", timestamp, decodeErr)
		case len(validationErrors) > 0:
			fmt.Fprintf(w, "%s %s\n", timestamp, telemetry.FormatRecord(record))
			for _, v := range validationErrors {
				fmt.Fprintf(w, "             ! %s\n", v.Message)
			}
		case !anomaliesOnly:
			fmt.Fprintf(w, "%s %s\n", timestamp, telemetry.FormatRecord(record))
		}
	}
}
