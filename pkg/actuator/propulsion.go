// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actuator

import (
	"fmt"
	"math"

	"github.com/Thermoquad/nautilus/pkg/protocol"
)

// Propulsion combines the aft forward thruster with the yaw selector
type Propulsion struct {
	aft    *DutyCycleController
	yaw    *YawSelector
	vector protocol.ThrustVector
}

// NewPropulsion creates the propulsion aggregate
func NewPropulsion(aft *DutyCycleController, yaw *YawSelector) *Propulsion {
	return &Propulsion{aft: aft, yaw: yaw}
}

// ClampVector limits x to [-1, 1] and y to [0, 1]. NaN components become 0.
func ClampVector(v protocol.ThrustVector) protocol.ThrustVector {
	if math.IsNaN(float64(v.X)) {
		v.X = 0
	}
	return protocol.ThrustVector{X: clamp(v.X, -1, 1), Y: clamp(v.Y, 0, 1)}
}

// HandleCommand clamps the commanded vector and retargets the thrusters.
// Outputs change on the next Tick.
func (p *Propulsion) HandleCommand(cmd protocol.PropulsionCommand) {
	p.vector = ClampVector(cmd.Vector)
	p.SetForwardThrust(p.vector.Y)
	p.SetYawThrust(p.vector.X)
}

// SetForwardThrust sets the aft thruster target duty cycle to y
func (p *Propulsion) SetForwardThrust(y float32) {
	p.aft.SetTarget(float64(y))
}

// SetYawThrust requests yaw thrust x through the selector
func (p *Propulsion) SetYawThrust(x float32) {
	p.yaw.SetThrust(float64(x))
}

// Tick ramps the aft thruster and the yaw selector
func (p *Propulsion) Tick() error {
	if err := p.aft.Tick(); err != nil {
		return fmt.Errorf("aft thruster: %w", err)
	}
	return p.yaw.Tick()
}

// Vector returns the last accepted (clamped) thrust vector
func (p *Propulsion) Vector() protocol.ThrustVector { return p.vector }

// AftDutyCycle returns the aft thruster's reported duty cycle
func (p *Propulsion) AftDutyCycle() float64 { return p.aft.DutyCycle() }

// AftTarget returns the aft thruster's target duty cycle
func (p *Propulsion) AftTarget() float64 { return p.aft.Target() }

// YawDutyCycle returns the yaw thrusters' reported duty cycle
func (p *Propulsion) YawDutyCycle() float64 { return p.yaw.DutyCycle() }

// YawTarget returns the requested yaw duty cycle
func (p *Propulsion) YawTarget() float64 { return p.yaw.Magnitude() }

// ActiveThruster returns the yaw thruster selected by the direction line
func (p *Propulsion) ActiveThruster() Thruster { return p.yaw.Active() }

// Stop cuts all thrust immediately
func (p *Propulsion) Stop() error {
	p.vector = protocol.ThrustVector{}
	if err := p.aft.Stop(); err != nil {
		return err
	}
	return p.yaw.Stop()
}
