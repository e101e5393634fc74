// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"math"
)

// AnomalyType represents different types of telemetry anomalies
type AnomalyType int

const (
	AnomalyUnknownPacket AnomalyType = iota
	AnomalyInvalidState
	AnomalyInvalidDuty
	AnomalyInvalidVector
	AnomalyInvalidThruster
	AnomalyStaleSensor
	AnomalyTiming
	AnomalyTickRegression
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyUnknownPacket:
		return "unknown packet"
	case AnomalyInvalidState:
		return "invalid ballast state"
	case AnomalyInvalidDuty:
		return "invalid duty cycle"
	case AnomalyInvalidVector:
		return "invalid thrust vector"
	case AnomalyInvalidThruster:
		return "invalid thruster"
	case AnomalyStaleSensor:
		return "stale sensor"
	case AnomalyTiming:
		return "inconsistent timing"
	case AnomalyTickRegression:
		return "tick regression"
	default:
		return fmt.Sprintf("anomaly(%d)", int(a))
	}
}

// ValidationError represents a telemetry validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateRecord checks a decoded record's values against the ranges the
// vehicle can produce. Returns an empty slice when the record is valid.
func ValidateRecord(r Record) []ValidationError {
	errors := []ValidationError{}

	switch {
	case r.Environment != nil:
		if r.Environment.Stale {
			errors = append(errors, ValidationError{
				Type:    AnomalyStaleSensor,
				Message: "Environment reading is stale",
			})
		}
	case r.Ballast != nil:
		if r.Ballast.State > 3 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidState,
				Message: fmt.Sprintf("Invalid ballast state=%d (max 3)", r.Ballast.State),
				Details: map[string]interface{}{"state": r.Ballast.State},
			})
		}
		// Transition is never a target
		if r.Ballast.Target > 2 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidState,
				Message: fmt.Sprintf("Invalid ballast target=%d (max 2)", r.Ballast.Target),
				Details: map[string]interface{}{"target": r.Ballast.Target},
			})
		}
	case r.Propulsion != nil:
		errors = append(errors, validatePropulsion(r.Propulsion)...)
	case r.System != nil:
		s := r.System
		if s.Run+s.Idle != s.Total {
			errors = append(errors, ValidationError{
				Type:    AnomalyTiming,
				Message: fmt.Sprintf("Run %dµs + idle %dµs != total %dµs", s.Run.Microseconds(), s.Idle.Microseconds(), s.Total.Microseconds()),
				Details: map[string]interface{}{"run": s.Run, "idle": s.Idle, "total": s.Total},
			})
		}
	default:
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownPacket,
			Message: fmt.Sprintf("Unknown packet id 0x%02X", r.ID),
			Details: map[string]interface{}{"id": r.ID},
		})
	}

	return errors
}

func validatePropulsion(p *PropulsionReport) []ValidationError {
	errors := []ValidationError{}

	if math.IsNaN(float64(p.X)) || p.X < -1 || p.X > 1 || math.IsNaN(float64(p.Y)) || p.Y < 0 || p.Y > 1 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidVector,
			Message: fmt.Sprintf("Thrust vector out of range x=%.3f y=%.3f", p.X, p.Y),
			Details: map[string]interface{}{"x": p.X, "y": p.Y},
		})
	}

	duties := []struct {
		name  string
		value uint8
	}{
		{"aft", p.AftDuty},
		{"aft_target", p.AftTarget},
		{"yaw", p.YawDuty},
		{"yaw_target", p.YawTarget},
	}
	for _, d := range duties {
		if d.value > 100 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidDuty,
				Message: fmt.Sprintf("Invalid %s duty=%d%% (max 100)", d.name, d.value),
				Details: map[string]interface{}{d.name: d.value},
			})
		}
	}

	if p.ActiveThruster > 2 {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidThruster,
			Message: fmt.Sprintf("Invalid active thruster=%d (max 2)", p.ActiveThruster),
			Details: map[string]interface{}{"thruster": p.ActiveThruster},
		})
	}

	return errors
}

// Validator checks records against each other as well as individually
type Validator struct {
	lastTick map[uint8]uint32
}

// NewValidator creates a validator with no history
func NewValidator() *Validator {
	return &Validator{lastTick: make(map[uint8]uint32)}
}

// Validate runs ValidateRecord and flags a tick count that went backwards
// for the same packet id. A wrap from the top of the u32 range is not a
// regression.
func (v *Validator) Validate(r Record) []ValidationError {
	errors := ValidateRecord(r)

	if last, ok := v.lastTick[r.ID]; ok && r.Tick <= last && last-r.Tick < math.MaxUint32/2 {
		errors = append(errors, ValidationError{
			Type:    AnomalyTickRegression,
			Message: fmt.Sprintf("%s tick %d after %d", FormatPacketID(r.ID), r.Tick, last),
			Details: map[string]interface{}{"tick": r.Tick, "previous": last},
		})
	}
	v.lastTick[r.ID] = r.Tick

	return errors
}
