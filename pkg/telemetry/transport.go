// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/Thermoquad/nautilus/pkg/metrics"
)

// SinkOpener opens the consumer side of the telemetry stream. It may block
// until a consumer appears but must return once ctx is done.
type SinkOpener func(ctx context.Context) (io.WriteCloser, error)

// TransportConfig configures a Transport
type TransportConfig struct {
	// ChannelCapacity bounds the packets buffered for the writer
	ChannelCapacity int
	// Backoff is the initial delay before respawning a failed writer
	Backoff time.Duration
	// MaxBackoff caps the doubling respawn delay
	MaxBackoff time.Duration
}

// generation is one writer worker and the channel that feeds it
type generation struct {
	ch     chan Packet
	done   chan struct{}
	ready  atomic.Bool
	opened atomic.Bool
}

// Transport moves packets from the tick loop to a sink through a bounded
// channel. A worker goroutine opens the sink and writes packets; when it
// fails a supervisor starts a fresh worker after a backoff. Send never
// blocks: packets are dropped when the worker is not ready or its channel is
// full.
type Transport struct {
	open       SinkOpener
	capacity   int
	backoff    time.Duration
	maxBackoff time.Duration
	logger     hclog.Logger
	metrics    *metrics.Metrics

	current atomic.Pointer[generation]
	wg      sync.WaitGroup

	sent     atomic.Uint64
	dropped  atomic.Uint64
	restarts atomic.Uint64
}

// NewTransport creates a transport; call Start to spawn the first worker
func NewTransport(open SinkOpener, cfg TransportConfig, logger hclog.Logger, m *metrics.Metrics) *Transport {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if cfg.ChannelCapacity < 1 {
		cfg.ChannelCapacity = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = cfg.Backoff
	}
	return &Transport{
		open:       open,
		capacity:   cfg.ChannelCapacity,
		backoff:    cfg.Backoff,
		maxBackoff: cfg.MaxBackoff,
		logger:     logger,
		metrics:    m,
	}
}

// Start spawns the first worker and the supervisor. Both exit when ctx is
// done; Wait blocks until they have.
func (t *Transport) Start(ctx context.Context) {
	t.spawn(ctx)
	t.wg.Add(1)
	go t.supervise(ctx)
}

// Wait blocks until the worker and supervisor have exited
func (t *Transport) Wait() {
	t.wg.Wait()
}

// Ready reports whether the current worker has an open sink
func (t *Transport) Ready() bool {
	g := t.current.Load()
	return g != nil && g.ready.Load()
}

// Send queues p for the worker without blocking. It returns false when the
// packet was dropped.
func (t *Transport) Send(p Packet) bool {
	g := t.current.Load()
	if g == nil || !g.ready.Load() {
		t.metrics.Packet(metrics.PacketNotReady)
		return false
	}
	select {
	case g.ch <- p:
		return true
	default:
		t.dropped.Add(1)
		t.metrics.Packet(metrics.PacketDropped)
		return false
	}
}

// Sent returns the number of packets written to a sink
func (t *Transport) Sent() uint64 { return t.sent.Load() }

// Dropped returns the number of packets dropped on a full channel
func (t *Transport) Dropped() uint64 { return t.dropped.Load() }

// Restarts returns the number of times a worker was respawned
func (t *Transport) Restarts() uint64 { return t.restarts.Load() }

func (t *Transport) spawn(ctx context.Context) *generation {
	g := &generation{
		ch:   make(chan Packet, t.capacity),
		done: make(chan struct{}),
	}
	t.current.Store(g)
	t.wg.Add(1)
	go t.work(ctx, g)
	return g
}

// work opens the sink and writes packets until a write fails or ctx is done
func (t *Transport) work(ctx context.Context, g *generation) {
	defer t.wg.Done()
	defer close(g.done)
	defer g.ready.Store(false)

	sink, err := t.open(ctx)
	if err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("failed to open telemetry sink", "error", err)
		}
		return
	}
	defer sink.Close()

	g.opened.Store(true)
	g.ready.Store(true)
	t.logger.Info("telemetry consumer connected")

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-g.ch:
			if _, err := sink.Write(p[:]); err != nil {
				t.logger.Warn("telemetry consumer disconnected", "error", err)
				return
			}
			t.sent.Add(1)
			t.metrics.Packet(metrics.PacketSent)
		}
	}
}

// supervise respawns a worker whenever the current one exits. The delay
// doubles after each worker that never opened its sink and resets after one
// that did.
func (t *Transport) supervise(ctx context.Context) {
	defer t.wg.Done()

	backoff := t.backoff
	for {
		g := t.current.Load()
		select {
		case <-ctx.Done():
			return
		case <-g.done:
		}
		if ctx.Err() != nil {
			return
		}

		if g.opened.Load() {
			backoff = t.backoff
		}
		t.logger.Debug("respawning telemetry worker", "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		t.spawn(ctx)
		t.restarts.Add(1)
		t.metrics.WorkerRestart()

		if !g.opened.Load() {
			backoff *= 2
			if backoff > t.maxBackoff {
				backoff = t.maxBackoff
			}
		}
	}
}
