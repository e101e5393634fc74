// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"fmt"
	"strings"
)

// FormatCommand formats a command into a human-readable string
func FormatCommand(cmd Command) string {
	switch c := cmd.(type) {
	case BallastCommand:
		return fmt.Sprintf("BALLAST %s", c.Mode)
	case PropulsionCommand:
		return fmt.Sprintf("PROPULSION x=%.3f y=%.3f", c.Vector.X, c.Vector.Y)
	case LightCommand:
		return fmt.Sprintf("LIGHT %s", c.Mode)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("UNKNOWN %T", cmd)
	}
}

// FormatFrame renders frame bytes as space-separated hex
func FormatFrame(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}

// String returns the mode name
func (m BallastMode) String() string {
	switch m {
	case BallastIdle:
		return "IDLE"
	case BallastIntake:
		return "INTAKE"
	case BallastDischarge:
		return "DISCHARGE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(m))
	}
}

// String returns the mode name
func (m LightMode) String() string {
	switch m {
	case LightOff:
		return "OFF"
	case LightOn:
		return "ON"
	case LightBlink:
		return "BLINK"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(m))
	}
}

// ParseBallastMode parses a ballast mode name (idle, intake, discharge)
func ParseBallastMode(s string) (BallastMode, error) {
	switch strings.ToLower(s) {
	case "idle":
		return BallastIdle, nil
	case "intake":
		return BallastIntake, nil
	case "discharge":
		return BallastDischarge, nil
	default:
		return 0, fmt.Errorf("unknown ballast mode %q (want idle, intake or discharge)", s)
	}
}

// ParseLightMode parses a light mode name (off, on, blink)
func ParseLightMode(s string) (LightMode, error) {
	switch strings.ToLower(s) {
	case "off":
		return LightOff, nil
	case "on":
		return LightOn, nil
	case "blink":
		return LightBlink, nil
	default:
		return 0, fmt.Errorf("unknown light mode %q (want off, on or blink)", s)
	}
}
