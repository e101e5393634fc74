// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package actuator holds the vehicle's actuator control logic: the
// ramp-limited duty cycle driver, the ballast valve state machine, the yaw
// thruster selector with its safe direction handoff, the propulsion
// aggregate and the light. Every type here is owned by the tick loop and is
// not safe for concurrent use.
package actuator

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/Thermoquad/nautilus/pkg/hal"
)

// Epsilon is the tolerance below which two duty cycles are considered equal
// and below which an output is considered off
const Epsilon = 1e-6

// Default ramp limits, as a fraction of full scale per tick
const (
	DefaultStepUp   = 0.05
	DefaultStepDown = 0.25
)

// clamp limits v to [lo, hi]. NaN maps to lo.
func clamp[T constraints.Float](v, lo, hi T) T {
	if math.IsNaN(float64(v)) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// rampStep returns the next duty cycle moving current toward target by at
// most stepUp (rising) or stepDown (falling). A remaining distance within
// the step snaps exactly to target.
func rampStep(current, target, stepUp, stepDown float64) float64 {
	diff := target - current
	switch {
	case math.Abs(diff) < Epsilon:
		return target
	case diff > 0:
		if diff <= stepUp {
			return target
		}
		return current + stepUp
	default:
		if -diff <= stepDown {
			return target
		}
		return current - stepDown
	}
}

// DutyCycleController drives a PWM output toward a target duty cycle with
// asymmetric per-tick step limits.
//
// The output's reported duty cycle is authoritative; the controller keeps
// only the target. The output is enabled exactly when the controller is
// enabled and the written duty cycle is above Epsilon.
type DutyCycleController struct {
	output   hal.PWMOutput
	target   float64
	stepUp   float64
	stepDown float64
	enabled  bool
}

// NewDutyCycleController creates an enabled controller with a zero target.
// Non-positive step limits select the defaults.
func NewDutyCycleController(output hal.PWMOutput, stepUp, stepDown float64) *DutyCycleController {
	if stepUp <= 0 {
		stepUp = DefaultStepUp
	}
	if stepDown <= 0 {
		stepDown = DefaultStepDown
	}
	return &DutyCycleController{
		output:   output,
		stepUp:   stepUp,
		stepDown: stepDown,
		enabled:  true,
	}
}

// SetTarget sets the target duty cycle, clamped to [0, 1]
func (c *DutyCycleController) SetTarget(target float64) {
	c.target = clamp(target, 0, 1)
}

// Target returns the target duty cycle
func (c *DutyCycleController) Target() float64 {
	return c.target
}

// DutyCycle returns the duty cycle reported by the output
func (c *DutyCycleController) DutyCycle() float64 {
	return c.output.DutyCycle()
}

// SetEnabled gates power to the output. A disabled controller keeps ramping
// its duty cycle but never enables the output.
func (c *DutyCycleController) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// Enabled reports whether the controller may emit power
func (c *DutyCycleController) Enabled() bool {
	return c.enabled
}

// Tick applies one ramp step and updates the output enable line
func (c *DutyCycleController) Tick() error {
	current := c.output.DutyCycle()
	next := rampStep(current, c.target, c.stepUp, c.stepDown)
	if next != current {
		if err := c.output.SetDutyCycle(next); err != nil {
			return err
		}
	}

	if c.enabled && next > Epsilon {
		if !c.output.IsEnabled() {
			c.output.Enable()
		}
	} else if c.output.IsEnabled() {
		c.output.Disable()
	}
	return nil
}

// Stop zeroes the target and the output immediately, bypassing the ramp
func (c *DutyCycleController) Stop() error {
	c.target = 0
	c.output.Disable()
	return c.output.SetDutyCycle(0)
}
