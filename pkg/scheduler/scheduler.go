// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package scheduler runs the fixed-rate tick loop that ties command
// dispatch, actuation and telemetry together.
package scheduler

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/Thermoquad/nautilus/pkg/metrics"
	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

// Vehicle is the actuated side of a tick
type Vehicle interface {
	telemetry.Source
	Tick(tick uint32) error
	SafeStop() error
}

// Dispatcher applies at most one queued command per call
type Dispatcher interface {
	DispatchNext() bool
}

// Pipeline is the telemetry side of a tick
type Pipeline interface {
	CollectSystem(timing telemetry.Timing)
	Collect(src telemetry.Source)
	Emit(tick uint32)
}

// Config configures a Scheduler
type Config struct {
	// TickRate is the loop frequency in Hz
	TickRate int
	// SafeStopOnExit drives every actuator to its safe state when Run returns
	SafeStopOnExit bool
}

// Scheduler owns the tick counter and drives one iteration per interval.
// Everything it calls runs on the Run goroutine.
type Scheduler struct {
	interval   time.Duration
	safeStop   bool
	vehicle    Vehicle
	dispatcher Dispatcher
	pipeline   Pipeline
	logger     hclog.Logger
	metrics    *metrics.Metrics

	tick uint32
	last telemetry.Timing
}

// New creates a scheduler. A non-positive tick rate is treated as 1 Hz.
func New(cfg Config, v Vehicle, d Dispatcher, p Pipeline, logger hclog.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	rate := cfg.TickRate
	if rate <= 0 {
		rate = 1
	}
	return &Scheduler{
		interval:   time.Second / time.Duration(rate),
		safeStop:   cfg.SafeStopOnExit,
		vehicle:    v,
		dispatcher: d,
		pipeline:   p,
		logger:     logger,
		metrics:    m,
	}
}

// Interval returns the tick period
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Tick returns the number of the next tick
func (s *Scheduler) Tick() uint32 { return s.tick }

// LastTiming returns the most recent completed tick's timing
func (s *Scheduler) LastTiming() telemetry.Timing { return s.last }

// Step runs one tick: feed the previous tick's timing to telemetry,
// dispatch, actuate, then collect and emit. It returns the run time.
func (s *Scheduler) Step() time.Duration {
	start := time.Now()
	tick := s.tick

	s.pipeline.CollectSystem(s.last)
	s.dispatcher.DispatchNext()
	if err := s.vehicle.Tick(tick); err != nil {
		s.logger.Error("actuator tick failed", "tick", tick, "error", err)
	}
	s.pipeline.Collect(s.vehicle)
	s.pipeline.Emit(tick)

	s.tick++
	run := time.Since(start)
	overrun := run > s.interval
	s.metrics.ObserveTick(run, overrun)
	if overrun {
		s.logger.Warn("tick overran interval", "tick", tick, "run", run, "interval", s.interval)
	}
	return run
}

// Run steps until ctx is done. Cancellation is observed between ticks and
// while idle; a tick in progress always completes. A tick that overruns
// leaves no idle time and the next tick starts immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("tick loop started", "interval", s.interval)

	timer := time.NewTimer(s.interval)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return s.shutdown()
		}

		run := s.Step()

		idle := s.interval - run
		if idle < 0 {
			idle = 0
		}
		sleepStart := time.Now()
		if idle > 0 {
			timer.Reset(idle)
			select {
			case <-ctx.Done():
				return s.shutdown()
			case <-timer.C:
			}
		}
		slept := time.Since(sleepStart)
		s.last = telemetry.Timing{Run: run, Idle: slept, Total: run + slept}
	}
}

func (s *Scheduler) shutdown() error {
	s.logger.Info("tick loop stopped", "ticks", s.tick)
	if !s.safeStop {
		return nil
	}
	s.logger.Info("driving actuators to safe state")
	return s.vehicle.SafeStop()
}
