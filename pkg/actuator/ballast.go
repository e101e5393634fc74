// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package actuator

import (
	"fmt"

	"github.com/Thermoquad/nautilus/pkg/hal"
	"github.com/Thermoquad/nautilus/pkg/protocol"
)

// BallastState is the ballast valve state. Values are the telemetry encoding.
type BallastState uint8

const (
	BallastIdle       BallastState = 0
	BallastIntake     BallastState = 1
	BallastDischarge  BallastState = 2
	BallastTransition BallastState = 3
)

// String returns the state name
func (s BallastState) String() string {
	switch s {
	case BallastIdle:
		return "IDLE"
	case BallastIntake:
		return "INTAKE"
	case BallastDischarge:
		return "DISCHARGE"
	case BallastTransition:
		return "TRANSITION"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// ballastStateFor maps a commanded mode to its steady state
func ballastStateFor(mode protocol.BallastMode) BallastState {
	switch mode {
	case protocol.BallastIntake:
		return BallastIntake
	case protocol.BallastDischarge:
		return BallastDischarge
	default:
		return BallastIdle
	}
}

// Ballast drives the intake and discharge valve outputs.
//
// Every command routes through Transition, and the tick spent in Transition
// holds both outputs low, so the two valves are never driven high together.
type Ballast struct {
	intake    hal.OutputPin
	discharge hal.OutputPin
	state     BallastState
	target    BallastState
}

// NewBallast creates an idle ballast controller with both outputs low
func NewBallast(intake, discharge hal.OutputPin) *Ballast {
	intake.SetLow()
	discharge.SetLow()
	return &Ballast{
		intake:    intake,
		discharge: discharge,
		state:     BallastIdle,
		target:    BallastIdle,
	}
}

// HandleCommand records the commanded state and enters Transition.
// Outputs change on the next Tick.
func (b *Ballast) HandleCommand(cmd protocol.BallastCommand) {
	b.state = BallastTransition
	b.target = ballastStateFor(cmd.Mode)
}

// Tick applies the current state to the outputs
func (b *Ballast) Tick() {
	switch b.state {
	case BallastTransition:
		b.intake.SetLow()
		b.discharge.SetLow()
		b.state = b.target
	case BallastIntake:
		b.discharge.SetLow()
		b.intake.SetHigh()
	case BallastDischarge:
		b.intake.SetLow()
		b.discharge.SetHigh()
	default:
		b.intake.SetLow()
		b.discharge.SetLow()
	}
}

// State returns the current state
func (b *Ballast) State() BallastState { return b.state }

// Target returns the commanded state
func (b *Ballast) Target() BallastState { return b.target }

// IntakeHigh reports the intake output level
func (b *Ballast) IntakeHigh() bool { return b.intake.IsHigh() }

// DischargeHigh reports the discharge output level
func (b *Ballast) DischargeHigh() bool { return b.discharge.IsHigh() }

// Stop drives both outputs low and returns to Idle immediately
func (b *Ballast) Stop() {
	b.intake.SetLow()
	b.discharge.SetLow()
	b.state = BallastIdle
	b.target = BallastIdle
}
