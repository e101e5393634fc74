// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Nautilus - Submersible Control Daemon
//
// Runs the tick loop that turns command frames into ballast, thruster and
// lamp actuation, streams telemetry to the surface, and provides the
// topside tools for sending commands and inspecting the stream.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/nautilus/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
