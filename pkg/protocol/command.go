// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

// Command is a decoded operator command. The concrete type identifies the
// subsystem: BallastCommand, PropulsionCommand or LightCommand. Commands are
// plain values; a decoded command shares no state with any other.
type Command interface {
	// Module returns the subsystem the command is addressed to
	Module() Module
	isCommand()
}

// ThrustVector is the operator's requested thrust. X is yaw/lateral thrust in
// [-1, 1], Y is forward thrust in [0, 1]. Values are carried exactly as
// decoded; the propulsion subsystem clamps them on ingestion.
type ThrustVector struct {
	X float32
	Y float32
}

// BallastCommand selects the ballast pump mode
type BallastCommand struct {
	Mode BallastMode
}

// PropulsionCommand sets the thrust vector
type PropulsionCommand struct {
	Vector ThrustVector
}

// LightCommand selects the lamp mode
type LightCommand struct {
	Mode LightMode
}

// Module returns ModuleBallast
func (BallastCommand) Module() Module { return ModuleBallast }

// Module returns ModulePropulsion
func (PropulsionCommand) Module() Module { return ModulePropulsion }

// Module returns ModuleLight
func (LightCommand) Module() Module { return ModuleLight }

func (BallastCommand) isCommand()    {}
func (PropulsionCommand) isCommand() {}
func (LightCommand) isCommand()      {}

// NewBallastCommand creates a ballast command for the given mode
func NewBallastCommand(mode BallastMode) BallastCommand {
	return BallastCommand{Mode: mode}
}

// NewThrustCommand creates a propulsion command for the vector (x, y)
func NewThrustCommand(x, y float32) PropulsionCommand {
	return PropulsionCommand{Vector: ThrustVector{X: x, Y: y}}
}

// NewLightCommand creates a light command for the given mode
func NewLightCommand(mode LightMode) LightCommand {
	return LightCommand{Mode: mode}
}
