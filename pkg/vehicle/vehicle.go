// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vehicle assembles the actuators and the environment sampler from
// a hardware board and exposes them to the dispatcher and the telemetry
// pipeline.
package vehicle

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/Thermoquad/nautilus/pkg/actuator"
	"github.com/Thermoquad/nautilus/pkg/config"
	"github.com/Thermoquad/nautilus/pkg/hal"
	"github.com/Thermoquad/nautilus/pkg/metrics"
	"github.com/Thermoquad/nautilus/pkg/protocol"
	"github.com/Thermoquad/nautilus/pkg/sensor"
	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

// Vehicle owns every actuator. It is driven from the tick loop only.
type Vehicle struct {
	ballast    *actuator.Ballast
	propulsion *actuator.Propulsion
	light      *actuator.Light
	sampler    *sensor.Sampler
	logger     hclog.Logger
	metrics    *metrics.Metrics
}

// New acquires every pin named in cfg and builds the actuators. Any
// acquisition failure is returned before anything is driven.
func New(board hal.Board, cfg config.HardwareConfig, logger hclog.Logger, m *metrics.Metrics) (*Vehicle, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	intake, err := board.OutputPin(cfg.Ballast.GPIO.IntakePin)
	if err != nil {
		return nil, fmt.Errorf("ballast intake: %w", err)
	}
	discharge, err := board.OutputPin(cfg.Ballast.GPIO.DischargePin)
	if err != nil {
		return nil, fmt.Errorf("ballast discharge: %w", err)
	}

	lamp, err := board.OutputPin(cfg.Light.GPIO.LightPin)
	if err != nil {
		return nil, fmt.Errorf("light: %w", err)
	}

	pg := cfg.Propulsion.GPIO
	aft, err := board.PWM(pg.AftPin)
	if err != nil {
		return nil, fmt.Errorf("aft thruster: %w", err)
	}
	port, err := board.PWM(pg.PortPin)
	if err != nil {
		return nil, fmt.Errorf("port thruster: %w", err)
	}
	starboard, err := board.PWM(pg.StarboardPin)
	if err != nil {
		return nil, fmt.Errorf("starboard thruster: %w", err)
	}
	direction, err := board.OutputPin(pg.DirectionPin)
	if err != nil {
		return nil, fmt.Errorf("yaw direction: %w", err)
	}

	dht, err := board.Sensor(cfg.DHT11.GPIO.DataPin)
	if err != nil {
		return nil, fmt.Errorf("dht11: %w", err)
	}

	up, down := cfg.Propulsion.ThrustStepUp, cfg.Propulsion.ThrustStepDown
	yaw := actuator.NewYawSelector(
		actuator.NewDutyCycleController(port, up, down),
		actuator.NewDutyCycleController(starboard, up, down),
		direction,
	)

	return &Vehicle{
		ballast:    actuator.NewBallast(intake, discharge),
		propulsion: actuator.NewPropulsion(actuator.NewDutyCycleController(aft, up, down), yaw),
		light:      actuator.NewLight(lamp, cfg.Light.BlinkInterval),
		sampler:    sensor.NewSampler(dht, cfg.DHT11.SampleInterval, logger.Named("sensor")),
		logger:     logger,
		metrics:    m,
	}, nil
}

// HandleBallast retargets the ballast valves
func (v *Vehicle) HandleBallast(cmd protocol.BallastCommand) {
	v.ballast.HandleCommand(cmd)
}

// HandlePropulsion retargets the thrusters
func (v *Vehicle) HandlePropulsion(cmd protocol.PropulsionCommand) {
	v.propulsion.HandleCommand(cmd)
}

// HandleLight sets the lamp mode
func (v *Vehicle) HandleLight(cmd protocol.LightCommand) {
	v.light.HandleCommand(cmd)
}

// Tick advances every actuator and the sampler by one tick
func (v *Vehicle) Tick(tick uint32) error {
	v.ballast.Tick()
	err := v.propulsion.Tick()
	v.light.Tick(tick)
	if v.sampler.Tick(tick) {
		v.metrics.SensorSample(v.sampler.Stale())
	}
	if err != nil {
		return fmt.Errorf("propulsion: %w", err)
	}
	return nil
}

// SafeStop drives every output to its safe state immediately: valves
// closed, thrust cut, lamp off
func (v *Vehicle) SafeStop() error {
	v.ballast.Stop()
	v.light.Stop()
	return v.propulsion.Stop()
}

// Ballast returns the ballast controller
func (v *Vehicle) Ballast() *actuator.Ballast { return v.ballast }

// Propulsion returns the propulsion controller
func (v *Vehicle) Propulsion() *actuator.Propulsion { return v.propulsion }

// Light returns the light controller
func (v *Vehicle) Light() *actuator.Light { return v.light }

// Sampler returns the environment sampler
func (v *Vehicle) Sampler() *sensor.Sampler { return v.sampler }

// EnvironmentSnapshot implements telemetry.Source
func (v *Vehicle) EnvironmentSnapshot() telemetry.EnvironmentSnapshot {
	return telemetry.EnvironmentSnapshot{
		Temperature: v.sampler.Temperature(),
		Humidity:    v.sampler.Humidity(),
		Stale:       v.sampler.Stale(),
	}
}

// BallastSnapshot implements telemetry.Source
func (v *Vehicle) BallastSnapshot() telemetry.BallastSnapshot {
	return telemetry.BallastSnapshot{
		State:  uint8(v.ballast.State()),
		Target: uint8(v.ballast.Target()),
	}
}

// PropulsionSnapshot implements telemetry.Source
func (v *Vehicle) PropulsionSnapshot() telemetry.PropulsionSnapshot {
	p := v.propulsion
	return telemetry.PropulsionSnapshot{
		X:              p.Vector().X,
		Y:              p.Vector().Y,
		AftDuty:        p.AftDutyCycle(),
		AftTarget:      p.AftTarget(),
		YawDuty:        p.YawDutyCycle(),
		YawTarget:      p.YawTarget(),
		ActiveThruster: uint8(p.ActiveThruster()),
	}
}
