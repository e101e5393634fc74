// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actuator

import (
	"github.com/Thermoquad/nautilus/pkg/hal"
	"github.com/Thermoquad/nautilus/pkg/protocol"
)

// DefaultBlinkInterval is the number of ticks between blink toggles
const DefaultBlinkInterval = 10

// Light drives the lamp output
type Light struct {
	pin      hal.OutputPin
	mode     protocol.LightMode
	interval uint32
}

// NewLight creates a light that starts off
func NewLight(pin hal.OutputPin, blinkInterval uint32) *Light {
	if blinkInterval == 0 {
		blinkInterval = DefaultBlinkInterval
	}
	pin.SetLow()
	return &Light{pin: pin, mode: protocol.LightOff, interval: blinkInterval}
}

// HandleCommand sets the lamp mode. The output changes on the next Tick.
func (l *Light) HandleCommand(cmd protocol.LightCommand) {
	l.mode = cmd.Mode
}

// Tick drives the output for the current mode. In blink mode the output
// toggles on ticks that are a multiple of the blink interval.
func (l *Light) Tick(tick uint32) {
	switch l.mode {
	case protocol.LightOn:
		l.pin.SetHigh()
	case protocol.LightBlink:
		if tick%l.interval == 0 {
			l.pin.Toggle()
		}
	default:
		l.pin.SetLow()
	}
}

// Mode returns the commanded mode
func (l *Light) Mode() protocol.LightMode { return l.mode }

// IsOn reports the lamp output level
func (l *Light) IsOn() bool { return l.pin.IsHigh() }

// Stop turns the lamp off immediately
func (l *Light) Stop() {
	l.mode = protocol.LightOff
	l.pin.SetLow()
}
