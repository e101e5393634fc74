// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package command moves operator commands from the command socket to the
// vehicle: a listener decodes frames into a queue, and the dispatcher pops
// at most one command per tick and routes it to its subsystem handler.
package command

import (
	"sync"

	"github.com/Thermoquad/nautilus/pkg/protocol"
)

// Pusher accepts decoded commands. Push reports whether an older command was
// dropped to make room.
type Pusher interface {
	Push(cmd protocol.Command) (dropped bool)
}

// Popper yields queued commands in FIFO order
type Popper interface {
	Pop() (protocol.Command, bool)
}

// Queue is a mutex-guarded FIFO of decoded commands. The lock is held only
// for the push or pop itself.
//
// A positive capacity bounds the queue; pushing into a full queue drops the
// oldest command. Capacity 0 means unbounded.
type Queue struct {
	mu       sync.Mutex
	items    []protocol.Command
	capacity int
	dropped  uint64
}

// NewQueue creates a queue with the given capacity (0 = unbounded)
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{capacity: capacity}
}

// Push appends cmd, dropping the oldest command if the queue is full
func (q *Queue) Push(cmd protocol.Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := false
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.items[0] = nil
		q.items = q.items[1:]
		q.dropped++
		dropped = true
	}
	q.items = append(q.items, cmd)
	return dropped
}

// Pop removes and returns the oldest command
func (q *Queue) Pop() (protocol.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	cmd := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return cmd, true
}

// Len returns the number of queued commands
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many commands were discarded by a full queue
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
