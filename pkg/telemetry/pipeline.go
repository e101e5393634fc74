// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/nautilus/pkg/metrics"
)

// dropLogInterval bounds how often dropped sends are logged
const dropLogInterval = 5 * time.Second

// Emitter accepts finished packets. Send must never block.
type Emitter interface {
	Ready() bool
	Send(p Packet) bool
}

// PipelineConfig enables individual telemeters
type PipelineConfig struct {
	Environment bool
	Ballast     bool
	Propulsion  bool
	System      bool
}

// AllTelemeters enables every telemeter
func AllTelemeters() PipelineConfig {
	return PipelineConfig{Environment: true, Ballast: true, Propulsion: true, System: true}
}

// Pipeline collects telemeter state once per tick and emits one packet per
// enabled telemeter. Nothing is collected or emitted while the emitter is
// not ready.
type Pipeline struct {
	emitter    Emitter
	telemeters []Telemeter
	system     *SystemTelemeter
	collected  bool
	dropped    uint64
	dropLog    rate.Sometimes
	logger     hclog.Logger
	metrics    *metrics.Metrics
}

// NewPipeline builds a pipeline with the telemeters enabled in cfg
func NewPipeline(emitter Emitter, cfg PipelineConfig, logger hclog.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	p := &Pipeline{
		emitter: emitter,
		dropLog: rate.Sometimes{First: 1, Interval: dropLogInterval},
		logger:  logger,
		metrics: m,
	}
	if cfg.Environment {
		p.telemeters = append(p.telemeters, &EnvironmentTelemeter{})
	}
	if cfg.Ballast {
		p.telemeters = append(p.telemeters, &BallastTelemeter{})
	}
	if cfg.Propulsion {
		p.telemeters = append(p.telemeters, &PropulsionTelemeter{})
	}
	if cfg.System {
		p.system = &SystemTelemeter{}
		p.telemeters = append(p.telemeters, p.system)
	}
	return p
}

// Telemeters returns the enabled telemeters in emission order
func (p *Pipeline) Telemeters() []Telemeter {
	return p.telemeters
}

// Collect snapshots state from src into every telemeter
func (p *Pipeline) Collect(src Source) {
	p.collected = p.emitter.Ready()
	if !p.collected {
		return
	}
	for _, t := range p.telemeters {
		t.Collect(src)
	}
}

// CollectSystem feeds the previous tick's timing to the system telemeter
func (p *Pipeline) CollectSystem(timing Timing) {
	if p.system == nil || !p.emitter.Ready() {
		return
	}
	p.system.Ingest(timing)
}

// Emit serializes every telemeter, appends the trailer and hands the packets
// to the emitter. A trailer field that would overwrite payload is skipped
// and the packet is still sent. Packets the emitter refuses are counted and
// reported in a warning at most once per dropLogInterval.
func (p *Pipeline) Emit(tick uint32) {
	if !p.collected || !p.emitter.Ready() {
		return
	}
	for _, t := range p.telemeters {
		pkt := p.Build(t, tick)
		if p.emitter.Send(pkt) {
			continue
		}
		p.dropped++
		p.dropLog.Do(func() {
			p.logger.Warn("telemetry packets dropped", "count", p.dropped, "last", FormatPacketID(t.ID()), "tick", tick)
			p.dropped = 0
		})
	}
}

// Build serializes one telemeter into a packet with its trailer
func (p *Pipeline) Build(t Telemeter, tick uint32) Packet {
	var pkt Packet
	used := t.Serialize(&pkt)
	if err := ApplyTickCount(&pkt, used, tick); err != nil {
		p.metrics.Packet(metrics.PacketTrailer)
		p.logger.Error("failed to apply tick count", "packet", FormatPacketID(t.ID()), "error", err)
	}
	if err := ApplyPacketID(&pkt, used, t.ID()); err != nil {
		p.metrics.Packet(metrics.PacketTrailer)
		p.logger.Error("failed to apply packet id", "packet", FormatPacketID(t.ID()), "error", err)
	}
	return pkt
}
