// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

// packetMsg is one packet read from the telemetry source
type packetMsg struct {
	received         time.Time
	packet           telemetry.Packet
	record           telemetry.Record
	decodeErr        error
	validationErrors []telemetry.ValidationError
}

type packetBatchMsg struct {
	packets []packetMsg
}

type connectionLostMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

// readPackets decodes and validates packets from r until the stream ends
func readPackets(r io.Reader, validator *telemetry.Validator, fn func(packetMsg)) error {
	reader := telemetry.NewPacketReader(r)
	for {
		p, err := reader.Next()
		if err != nil {
			return err
		}
		msg := packetMsg{received: time.Now(), packet: p}
		msg.record, msg.decodeErr = telemetry.Decode(p)
		if msg.decodeErr == nil {
			msg.validationErrors = validator.Validate(msg.record)
		}
		fn(msg)
	}
}

// isStreamClosed reports whether err means the source went away rather
// than a transient read failure
func isStreamClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, net.ErrClosed)
}

// sender is the part of tea.Program the connection manager uses
type sender interface {
	Send(msg tea.Msg)
}

// connectionManager reads the telemetry source for a TUI and reconnects
// with backoff when the source goes away
type connectionManager struct {
	ctx      context.Context
	src      sourceConfig
	recorder *telemetry.Recorder

	mu       sync.Mutex
	conn     Connection
	connInfo string
	p        sender
}

func newConnectionManager(ctx context.Context, src sourceConfig, conn Connection) *connectionManager {
	cm := &connectionManager{
		ctx:      ctx,
		src:      src,
		conn:     conn,
		connInfo: src.describe(),
	}
	// Closing the connection unblocks a pending read
	go func() {
		<-ctx.Done()
		cm.closeConn()
	}()
	return cm
}

func (cm *connectionManager) getConn() Connection {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.conn
}

func (cm *connectionManager) setConn(conn Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.conn = conn
}

func (cm *connectionManager) closeConn() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.conn != nil {
		cm.conn.Close()
		cm.conn = nil
	}
}

// readerLoop reads until ctx is done, reconnecting after each loss
func (cm *connectionManager) readerLoop() {
	for {
		err := cm.readFromConnection()
		if cm.ctx.Err() != nil {
			return
		}
		cm.p.Send(connectionLostMsg{err: err})
		if !cm.reconnect() {
			return
		}
	}
}

// readFromConnection streams packets to the program in batches until the
// connection fails
func (cm *connectionManager) readFromConnection() error {
	conn := cm.getConn()
	if conn == nil {
		return ErrConnectionClosed
	}

	batchChan := make(chan packetMsg, 256)
	readerDone := make(chan error, 1)

	go func() {
		validator := telemetry.NewValidator()
		readerDone <- readPackets(conn, validator, func(msg packetMsg) {
			if cm.recorder != nil {
				cm.recorder.Record(msg.received, msg.packet)
			}
			select {
			case batchChan <- msg:
			default:
			}
		})
	}()

	// Batch updates to the TUI at a fixed rate
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	flush := func() {
		var batch packetBatchMsg
	drain:
		for {
			select {
			case msg := <-batchChan:
				batch.packets = append(batch.packets, msg)
			default:
				break drain
			}
		}
		if len(batch.packets) > 0 {
			cm.p.Send(batch)
		}
	}

	for {
		select {
		case err := <-readerDone:
			flush()
			return err
		case <-ticker.C:
			flush()
		}
	}
}

// reconnect attempts to reconnect with exponential backoff. Returns false
// if ctx was cancelled first.
func (cm *connectionManager) reconnect() bool {
	cm.closeConn()

	backoff := 1 * time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-cm.ctx.Done():
			return false
		case <-time.After(backoff):
		}

		conn, err := cm.src.open(cm.ctx)
		if err == nil {
			if cm.ctx.Err() != nil {
				conn.Close()
				return false
			}
			cm.setConn(conn)
			cm.p.Send(reconnectedMsg{connInfo: cm.connInfo})
			return true
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
