// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

var (
	packetTestTimeout int
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test the telemetry link by waiting for a valid packet",
	Long: `Wait for a valid telemetry packet on the source until timeout.

This command opens the telemetry pipe, serial tether or WebSocket listener
and waits for a packet with a known id whose values pass validation. Packets
that fail are counted and skipped.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error

Useful for checking the tether before a dive.`,
	Args: cobra.NoArgs,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(packetTestTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	src, err := resolveSource()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("Nautilus - Packet Test\n")
	fmt.Printf("Source: %s\n", src.describe())
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	fmt.Printf("Waiting for valid telemetry packet...\n\n")

	// Opening a pipe or accepting a WebSocket blocks until the daemon
	// connects, so the open counts against the timeout too
	type opened struct {
		conn Connection
		err  error
	}
	openChan := make(chan opened, 1)
	go func() {
		conn, err := src.open(ctx)
		openChan <- opened{conn, err}
	}()

	var conn Connection
	select {
	case o := <-openChan:
		if o.err != nil {
			if ctx.Err() != nil {
				fmt.Fprintf(os.Stderr, "TIMEOUT: No connection within %d seconds\n", packetTestTimeout)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", o.err)
			os.Exit(2)
		}
		conn = o.conn
	case <-ctx.Done():
		fmt.Fprintf(os.Stderr, "TIMEOUT: No connection within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}
	defer conn.Close()

	packetChan := make(chan packetMsg, 1)
	errChan := make(chan error, 1)

	go func() {
		rejected := 0
		errChan <- readPackets(conn, telemetry.NewValidator(), func(msg packetMsg) {
			if msg.decodeErr != nil || len(msg.validationErrors) > 0 {
				rejected++
				return
			}
			if rejected > 0 {
				fmt.Printf("(skipped %d invalid packets)\n", rejected)
				rejected = 0
			}
			select {
			case packetChan <- msg:
			default:
			}
		})
	}()

	select {
	case msg := <-packetChan:
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Type: %s (0x%X)\n", telemetry.FormatPacketID(msg.record.ID), msg.record.ID)
		fmt.Printf("  Tick: %d\n", msg.record.Tick)
		fmt.Printf("  Data: %s\n", telemetry.FormatRecord(msg.record))
		fmt.Printf("  Raw:  %s\n", telemetry.FormatPacket(msg.packet))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-ctx.Done():
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}
