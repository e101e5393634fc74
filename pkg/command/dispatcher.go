// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package command

import (
	"github.com/hashicorp/go-hclog"

	"github.com/Thermoquad/nautilus/pkg/metrics"
	"github.com/Thermoquad/nautilus/pkg/protocol"
)

// Handlers receives dispatched commands, one method per subsystem.
// Handlers only retarget state; hardware writes happen on the next tick.
type Handlers interface {
	HandleBallast(cmd protocol.BallastCommand)
	HandlePropulsion(cmd protocol.PropulsionCommand)
	HandleLight(cmd protocol.LightCommand)
}

// Dispatcher routes queued commands to their handlers
type Dispatcher struct {
	source   Popper
	handlers Handlers
	logger   hclog.Logger
	metrics  *metrics.Metrics
}

// NewDispatcher creates a dispatcher reading from source
func NewDispatcher(source Popper, handlers Handlers, logger hclog.Logger, m *metrics.Metrics) *Dispatcher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Dispatcher{source: source, handlers: handlers, logger: logger, metrics: m}
}

// DispatchNext pops at most one command and hands it to exactly one
// handler. Returns false when the queue was empty.
func (d *Dispatcher) DispatchNext() bool {
	cmd, ok := d.source.Pop()
	if !ok {
		return false
	}

	switch c := cmd.(type) {
	case protocol.BallastCommand:
		d.handlers.HandleBallast(c)
	case protocol.PropulsionCommand:
		d.handlers.HandlePropulsion(c)
	case protocol.LightCommand:
		d.handlers.HandleLight(c)
	default:
		d.logger.Error("no handler for command", "type", hclog.Fmt("%T", cmd))
		return true
	}

	d.logger.Debug("dispatched", "command", protocol.FormatCommand(cmd))
	d.metrics.Command(metrics.CommandDispatch)
	return true
}
