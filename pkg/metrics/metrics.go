// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes daemon health counters in Prometheus format.
//
// All recording methods accept a nil *Metrics and do nothing, so components
// can be built without a metrics registry in tests.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nautilus"

// Metrics holds the daemon's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	tickRun        prometheus.Histogram
	tickOverruns   prometheus.Counter
	ticks          prometheus.Counter
	commands       *prometheus.CounterVec
	queueDepth     prometheus.Gauge
	queueDropped   prometheus.Counter
	packets        *prometheus.CounterVec
	workerRestarts prometheus.Counter
	sensorFailures prometheus.Counter
	sensorStale    prometheus.Gauge
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tickRun: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_run_seconds",
			Help:      "Time spent doing work in one tick.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
		tickOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_overruns_total",
			Help:      "Ticks whose work exceeded the tick interval.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed ticks.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Command frames by outcome.",
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "command_queue_depth",
			Help:      "Commands waiting for dispatch.",
		}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_queue_dropped_total",
			Help:      "Commands dropped because the queue was full.",
		}),
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_packets_total",
			Help:      "Telemetry packets by outcome.",
		}, []string{"outcome"}),
		workerRestarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_worker_restarts_total",
			Help:      "Telemetry transport worker respawns.",
		}),
		sensorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_failures_total",
			Help:      "Failed environment sensor reads.",
		}),
		sensorStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_stale",
			Help:      "1 when the last environment sample is stale.",
		}),
	}

	m.registry.MustRegister(
		m.tickRun, m.tickOverruns, m.ticks,
		m.commands, m.queueDepth, m.queueDropped,
		m.packets, m.workerRestarts,
		m.sensorFailures, m.sensorStale,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Command outcomes
const (
	CommandAccepted = "accepted"
	CommandRejected = "rejected"
	CommandLimited  = "rate_limited"
	CommandDispatch = "dispatched"
)

// Telemetry packet outcomes
const (
	PacketSent     = "sent"
	PacketDropped  = "dropped"
	PacketNotReady = "not_ready"
	PacketTrailer  = "trailer_skipped"
)

// ObserveTick records one tick's run time and whether it overran
func (m *Metrics) ObserveTick(run time.Duration, overrun bool) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickRun.Observe(run.Seconds())
	if overrun {
		m.tickOverruns.Inc()
	}
}

// Command counts a command frame outcome
func (m *Metrics) Command(outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(outcome).Inc()
}

// QueueDepth sets the command queue depth
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// QueueDropped counts a command dropped by a full queue
func (m *Metrics) QueueDropped() {
	if m == nil {
		return
	}
	m.queueDropped.Inc()
}

// Packet counts a telemetry packet outcome
func (m *Metrics) Packet(outcome string) {
	if m == nil {
		return
	}
	m.packets.WithLabelValues(outcome).Inc()
}

// WorkerRestart counts a telemetry worker respawn
func (m *Metrics) WorkerRestart() {
	if m == nil {
		return
	}
	m.workerRestarts.Inc()
}

// SensorSample records the outcome of a sensor read
func (m *Metrics) SensorSample(failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.sensorFailures.Inc()
		m.sensorStale.Set(1)
		return
	}
	m.sensorStale.Set(0)
}

// Serve exposes the registry on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr, path string) error {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
