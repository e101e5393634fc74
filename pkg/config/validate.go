// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/Thermoquad/nautilus/pkg/protocol"
)

// MaxTickRate bounds the tick rate to keep the interval above a millisecond
const MaxTickRate = 1000

// Validate checks value ranges. Pin conflicts are left to hardware
// acquisition, which reports them per pin.
func (c *Config) Validate() error {
	var errs []error

	if c.System.TickRate < 1 || c.System.TickRate > MaxTickRate {
		errs = append(errs, fmt.Errorf("system.tick_rate %d out of range 1-%d", c.System.TickRate, MaxTickRate))
	}

	if c.Commanding.Socket == "" {
		errs = append(errs, errors.New("commanding.socket is required"))
	}
	if c.Commanding.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("commanding.queue_capacity %d is negative", c.Commanding.QueueCapacity))
	}
	if c.Commanding.MaxFramesPerSecond < 0 {
		errs = append(errs, fmt.Errorf("commanding.max_frames_per_second %v is negative", c.Commanding.MaxFramesPerSecond))
	}
	if c.Commanding.MaxFramesPerSecond > 0 && c.Commanding.Burst < 1 {
		errs = append(errs, fmt.Errorf("commanding.burst must be at least 1 when rate limiting"))
	}
	if _, err := c.Registry(); err != nil {
		errs = append(errs, fmt.Errorf("commanding.modules: %w", err))
	}

	if c.Telemetry.Sink == "" {
		errs = append(errs, errors.New("telemetry.sink is required"))
	}
	if c.Telemetry.ChannelCapacity < 1 {
		errs = append(errs, fmt.Errorf("telemetry.channel_capacity %d must be at least 1", c.Telemetry.ChannelCapacity))
	}
	if c.Telemetry.RespawnBackoff.Duration <= 0 {
		errs = append(errs, errors.New("telemetry.respawn_backoff must be positive"))
	}
	if c.Telemetry.MaxRespawnBackoff.Duration < c.Telemetry.RespawnBackoff.Duration {
		errs = append(errs, errors.New("telemetry.max_respawn_backoff must not be below respawn_backoff"))
	}

	if c.Hardware.Board != "sim" {
		errs = append(errs, fmt.Errorf("hardware.board %q is not supported (want sim)", c.Hardware.Board))
	}
	for name, step := range map[string]float64{
		"thrust_step_up":   c.Hardware.Propulsion.ThrustStepUp,
		"thrust_step_down": c.Hardware.Propulsion.ThrustStepDown,
	} {
		if step <= 0 || step > 1 {
			errs = append(errs, fmt.Errorf("hardware.propulsion.%s %v out of range (0, 1]", name, step))
		}
	}
	if c.Hardware.Light.BlinkInterval == 0 {
		errs = append(errs, errors.New("hardware.light.blink_interval must be at least 1"))
	}
	if c.Hardware.DHT11.SampleInterval == 0 {
		errs = append(errs, errors.New("hardware.dht11.sample_interval must be at least 1"))
	}

	if hclog.LevelFromString(c.Logging.Level) == hclog.NoLevel {
		errs = append(errs, fmt.Errorf("logging.level %q is not a valid level", c.Logging.Level))
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q (want text or json)", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Registry builds the command module registry from commanding.modules
func (c *Config) Registry() (*protocol.Registry, error) {
	ids := make(map[byte]protocol.Module, len(c.Commanding.Modules))
	for name, id := range c.Commanding.Modules {
		m, err := protocol.ParseModule(name)
		if err != nil {
			return nil, err
		}
		if prev, ok := ids[id]; ok {
			return nil, fmt.Errorf("id 0x%02X assigned to both %s and %s", id, prev, m)
		}
		ids[id] = m
	}
	return protocol.NewRegistry(ids)
}
