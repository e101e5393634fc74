// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actuator

import (
	"fmt"
	"math"

	"github.com/Thermoquad/nautilus/pkg/hal"
)

// Thruster identifies a yaw thruster. Values are the telemetry encoding.
type Thruster uint8

const (
	ThrusterNone      Thruster = 0
	ThrusterPort      Thruster = 1
	ThrusterStarboard Thruster = 2
)

// String returns the thruster name
func (t Thruster) String() string {
	switch t {
	case ThrusterNone:
		return "NONE"
	case ThrusterPort:
		return "PORT"
	case ThrusterStarboard:
		return "STARBOARD"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// YawSelector drives the port and starboard yaw thrusters through a shared
// direction-select line (high selects port, low selects starboard).
//
// The active thruster changes only after its controller reports a duty
// cycle at or below Epsilon, so the direction line never switches under load.
type YawSelector struct {
	port      *DutyCycleController
	starboard *DutyCycleController
	direction hal.OutputPin
	active    Thruster
	target    Thruster
	magnitude float64
}

// NewYawSelector creates a selector with no active thruster
func NewYawSelector(port, starboard *DutyCycleController, direction hal.OutputPin) *YawSelector {
	return &YawSelector{
		port:      port,
		starboard: starboard,
		direction: direction,
	}
}

// SetThrust requests yaw thrust x in [-1, 1]. Positive x selects the port
// thruster, negative x the starboard thruster, and |x| near zero stops yaw.
func (s *YawSelector) SetThrust(x float64) {
	magnitude := math.Abs(clamp(x, -1, 1))
	switch {
	case magnitude < Epsilon:
		s.target = ThrusterNone
		s.magnitude = 0
	case x > 0:
		s.target = ThrusterPort
		s.magnitude = magnitude
	default:
		s.target = ThrusterStarboard
		s.magnitude = magnitude
	}
}

func (s *YawSelector) controller(t Thruster) *DutyCycleController {
	switch t {
	case ThrusterPort:
		return s.port
	case ThrusterStarboard:
		return s.starboard
	default:
		return nil
	}
}

// Tick enforces the zero-crossing handoff and ramps both controllers
func (s *YawSelector) Tick() error {
	if s.target != s.active {
		if ctl := s.controller(s.active); ctl == nil || ctl.DutyCycle() <= Epsilon {
			s.switchTo(s.target)
		}
	}

	// Until the handoff completes both controllers ramp toward zero
	for _, t := range []Thruster{ThrusterPort, ThrusterStarboard} {
		if t == s.active && s.active == s.target {
			s.controller(t).SetTarget(s.magnitude)
		} else {
			s.controller(t).SetTarget(0)
		}
	}

	if err := s.port.Tick(); err != nil {
		return fmt.Errorf("port thruster: %w", err)
	}
	if err := s.starboard.Tick(); err != nil {
		return fmt.Errorf("starboard thruster: %w", err)
	}
	return nil
}

func (s *YawSelector) switchTo(t Thruster) {
	s.active = t
	switch t {
	case ThrusterPort:
		s.direction.SetHigh()
	case ThrusterStarboard:
		s.direction.SetLow()
	}
}

// Active returns the thruster currently selected by the direction line
func (s *YawSelector) Active() Thruster { return s.active }

// TargetThruster returns the requested thruster
func (s *YawSelector) TargetThruster() Thruster { return s.target }

// Magnitude returns the requested yaw duty cycle
func (s *YawSelector) Magnitude() float64 { return s.magnitude }

// DutyCycle returns the highest duty cycle reported by either yaw thruster
func (s *YawSelector) DutyCycle() float64 {
	return math.Max(s.port.DutyCycle(), s.starboard.DutyCycle())
}

// DirectionHigh reports the direction-select line level
func (s *YawSelector) DirectionHigh() bool { return s.direction.IsHigh() }

// Stop cuts both yaw thrusters immediately and clears the selection
func (s *YawSelector) Stop() error {
	s.target = ThrusterNone
	s.active = ThrusterNone
	s.magnitude = 0
	if err := s.port.Stop(); err != nil {
		return err
	}
	return s.starboard.Stop()
}
