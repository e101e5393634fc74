// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/nautilus/pkg/metrics"
	"github.com/Thermoquad/nautilus/pkg/protocol"
)

// ListenerConfig configures a Listener
type ListenerConfig struct {
	// Path of the Unix stream socket
	Path     string
	Registry *protocol.Registry
	// MaxFramesPerSecond limits accepted frames across all connections.
	// Zero disables the limit.
	MaxFramesPerSecond float64
	Burst              int
}

// Listener accepts command connections on a Unix stream socket and pushes
// decoded commands to a Pusher. Rejected frames are logged and dropped; the
// listener keeps serving. Nothing is ever written back to a client.
type Listener struct {
	path     string
	registry *protocol.Registry
	queue    Pusher
	limiter  *rate.Limiter
	logger   hclog.Logger
	metrics  *metrics.Metrics

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewListener creates a listener; call Listen to bind the socket
func NewListener(cfg ListenerConfig, queue Pusher, logger hclog.Logger, m *metrics.Metrics) *Listener {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = protocol.DefaultRegistry()
	}
	var limiter *rate.Limiter
	if cfg.MaxFramesPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxFramesPerSecond), burst)
	}
	return &Listener{
		path:     cfg.Path,
		registry: reg,
		queue:    queue,
		limiter:  limiter,
		logger:   logger,
		metrics:  m,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Listen removes a stale socket file left by a previous run and binds the
// socket. A non-socket file at the path is an error.
func (l *Listener) Listen() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if info, err := os.Lstat(l.path); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			return fmt.Errorf("%s exists and is not a socket", l.path)
		}
		if err := os.Remove(l.path); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
		l.logger.Debug("removed stale socket", "path", l.path)
	}

	ln, err := net.Listen("unix", l.path)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.path, err)
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	l.logger.Info("listening for commands", "path", l.path)
	return nil
}

// Serve accepts connections until ctx is done, then closes the socket and
// every open connection and waits for their readers to exit.
func (l *Listener) Serve(ctx context.Context) error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return errors.New("listener not bound; call Listen first")
	}

	go func() {
		<-ctx.Done()
		l.closeAll()
	}()

	defer func() {
		l.closeAll()
		l.wg.Wait()
		_ = os.Remove(l.path)
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		l.mu.Lock()
		l.conns[conn] = struct{}{}
		l.mu.Unlock()

		l.wg.Add(1)
		go l.handle(conn)
	}
}

func (l *Listener) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln != nil {
		_ = l.ln.Close()
	}
	for c := range l.conns {
		_ = c.Close()
	}
}

// handle reads one client connection until EOF or close
func (l *Listener) handle(conn net.Conn) {
	defer l.wg.Done()
	defer func() {
		l.mu.Lock()
		delete(l.conns, conn)
		l.mu.Unlock()
		_ = conn.Close()
	}()

	l.logger.Debug("client connected")
	decoder := protocol.NewFrameDecoder(l.registry)
	buf := make([]byte, 256)

	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			l.ingest(decoder, buf[i])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				l.logger.Warn("command connection read failed", "error", err)
			}
			l.logger.Debug("client disconnected")
			return
		}
	}
}

// ingest feeds one byte to the connection's frame decoder and enqueues a
// completed command
func (l *Listener) ingest(decoder *protocol.FrameDecoder, b byte) {
	cmd, err := decoder.DecodeByte(b)
	if err != nil {
		l.metrics.Command(metrics.CommandRejected)
		l.logger.Warn("command frame rejected", "error", err, "frame", protocol.FormatFrame(decoder.Frame()))
		return
	}
	if cmd == nil {
		return
	}

	if l.limiter != nil && !l.limiter.Allow() {
		l.metrics.Command(metrics.CommandLimited)
		l.logger.Warn("command frame rate limited", "command", protocol.FormatCommand(cmd))
		return
	}

	if l.queue.Push(cmd) {
		l.metrics.QueueDropped()
		l.logger.Warn("command queue full, dropped oldest command")
	}
	l.metrics.Command(metrics.CommandAccepted)
	l.logger.Debug("command queued", "command", protocol.FormatCommand(cmd))
}
