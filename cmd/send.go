// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/nautilus/pkg/protocol"
)

var (
	sendX float32
	sendY float32
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one command frame to the daemon",
	Long: `Encode a single command and write it to the daemon's command socket.

The socket is receive-only: the daemon never answers. Watch the telemetry
stream to see the command take effect.`,
}

var sendBallastCmd = &cobra.Command{
	Use:       "ballast idle|intake|discharge",
	Short:     "Set the ballast mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"idle", "intake", "discharge"},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := protocol.ParseBallastMode(args[0])
		if err != nil {
			return err
		}
		return sendCommand(protocol.NewBallastCommand(mode))
	},
}

var sendThrustCmd = &cobra.Command{
	Use:   "thrust --x X --y Y",
	Short: "Set the thrust vector",
	Long: `Set the thrust vector. The daemon clamps x to [-1, 1] and y to [0, 1].
Positive x turns toward port; y is forward thrust.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendCommand(protocol.NewThrustCommand(sendX, sendY))
	},
}

var sendLightCmd = &cobra.Command{
	Use:       "light off|on|blink",
	Short:     "Set the lamp mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"off", "on", "blink"},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := protocol.ParseLightMode(args[0])
		if err != nil {
			return err
		}
		return sendCommand(protocol.NewLightCommand(mode))
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.AddCommand(sendBallastCmd, sendThrustCmd, sendLightCmd)

	sendThrustCmd.Flags().Float32Var(&sendX, "x", 0, "Lateral component (-1 starboard to 1 port)")
	sendThrustCmd.Flags().Float32Var(&sendY, "y", 0, "Forward component (0 to 1)")
}

// commandClient writes encoded frames to the command socket
type commandClient struct {
	conn     net.Conn
	registry *protocol.Registry
}

// dialCommandSocket connects to the socket named by the configuration
func dialCommandSocket() (*commandClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTimeout("unix", cfg.Commanding.Socket, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to command socket %s: %w", cfg.Commanding.Socket, err)
	}
	return &commandClient{conn: conn, registry: registry}, nil
}

// Send encodes and writes one command, returning the frame written
func (c *commandClient) Send(command protocol.Command) ([]byte, error) {
	frame, err := protocol.Encode(c.registry, command)
	if err != nil {
		return nil, err
	}
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("failed to write frame: %w", err)
	}
	return frame, nil
}

func (c *commandClient) Close() error {
	return c.conn.Close()
}

func sendCommand(command protocol.Command) error {
	client, err := dialCommandSocket()
	if err != nil {
		return err
	}
	defer client.Close()

	frame, err := client.Send(command)
	if err != nil {
		return err
	}
	fmt.Printf("Sent %s\n  %s\n", protocol.FormatCommand(command), protocol.FormatFrame(frame))
	return nil
}
