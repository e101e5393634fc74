// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package hal defines the hardware interfaces consumed by the vehicle core:
// digital output pins, PWM outputs and the environment sensor. Calls are
// assumed to be synchronous, fast relative to a tick, and idempotent.
//
// SimBoard is an in-memory implementation used by tests and by the daemon's
// simulation mode.
package hal

import "fmt"

// OutputPin is a digital output line
type OutputPin interface {
	SetHigh()
	SetLow()
	Toggle()
	IsHigh() bool
}

// PWMOutput is a pulse-width modulated output. The duty cycle is a fraction
// in [0, 1]. A disabled output emits no power regardless of its duty cycle.
type PWMOutput interface {
	Enable()
	Disable()
	IsEnabled() bool
	SetDutyCycle(duty float64) error
	DutyCycle() float64
}

// Reading is one calibrated environment sample
type Reading struct {
	Temperature uint8 // degrees C
	Humidity    uint8 // percent RH
}

// Sensor reads the environment sensor. Implementations return one of the
// sensor package errors on failure.
type Sensor interface {
	Read() (Reading, error)
}

// RawSensor is implemented by sensors that expose the undecoded five-byte
// DHT11 frame: humidity integral and decimal, temperature integral and
// decimal, checksum
type RawSensor interface {
	Sensor
	ReadRaw() ([5]byte, error)
}

// Board acquires peripherals by pin number. Each pin can be claimed once.
type Board interface {
	OutputPin(pin int) (OutputPin, error)
	PWM(pin int) (PWMOutput, error)
	Sensor(pin int) (Sensor, error)
}

// AcquireError reports a pin that could not be claimed
type AcquireError struct {
	Pin    int
	Kind   string
	Reason string
}

// Error implements the error interface
func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire %s pin %d: %s", e.Kind, e.Pin, e.Reason)
}
