// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Decode converts a module payload into a Command.
//
// Ballast and light read a single mode byte; propulsion reads two
// little-endian float32 values, x then y, from the first 8 bytes. The
// floats are returned bit-exact.
func Decode(module Module, payload []byte) (Command, error) {
	switch module {
	case ModuleBallast:
		if len(payload) < 1 {
			return nil, fmt.Errorf("ballast: %w: empty payload", ErrInvalidPayload)
		}
		mode := BallastMode(payload[0])
		if mode > BallastDischarge {
			return nil, fmt.Errorf("ballast: %w: mode 0x%02X", ErrInvalidPayload, payload[0])
		}
		return BallastCommand{Mode: mode}, nil

	case ModulePropulsion:
		if len(payload) < 8 {
			return nil, fmt.Errorf("propulsion: %w: %d bytes (need 8)", ErrInvalidPayload, len(payload))
		}
		x := math.Float32frombits(binary.LittleEndian.Uint32(payload[0:4]))
		y := math.Float32frombits(binary.LittleEndian.Uint32(payload[4:8]))
		return PropulsionCommand{Vector: ThrustVector{X: x, Y: y}}, nil

	case ModuleLight:
		if len(payload) < 1 {
			return nil, fmt.Errorf("light: %w: empty payload", ErrInvalidPayload)
		}
		mode := LightMode(payload[0])
		if mode > LightBlink {
			return nil, fmt.Errorf("light: %w: mode 0x%02X", ErrInvalidPayload, payload[0])
		}
		return LightCommand{Mode: mode}, nil

	default:
		return nil, fmt.Errorf("%w: no decoder for %s", ErrInvalidPayload, module)
	}
}

// FrameDecoder splits a command byte stream into frames.
//
// Frames carry no escaping, so the decoder hunts for a start byte, collects
// exactly FrameSize bytes and hands them to the registry. A rejected window
// that does not end in EndByte was misaligned: collection restarts at the
// next start byte inside it, so a stray or truncated frame costs at most the
// bytes before the following frame.
type FrameDecoder struct {
	registry *Registry
	state    int
	buffer   [FrameSize]byte
	index    int
	window   [FrameSize]byte
	complete bool
}

// NewFrameDecoder creates a decoder bound to a module registry
func NewFrameDecoder(reg *Registry) *FrameDecoder {
	return &FrameDecoder{registry: reg, state: stateHunt}
}

// Reset returns the decoder to the hunting state
func (d *FrameDecoder) Reset() {
	d.state = stateHunt
	d.index = 0
	d.complete = false
}

// Frame returns a copy of the last complete window handed to the registry,
// or the bytes collected so far when no window has completed yet
func (d *FrameDecoder) Frame() []byte {
	if d.complete {
		out := make([]byte, FrameSize)
		copy(out, d.window[:])
		return out
	}
	out := make([]byte, d.index)
	copy(out, d.buffer[:d.index])
	return out
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a command when a complete, valid frame has been collected, nil
// while a frame is incomplete, and an error for a rejected frame.
func (d *FrameDecoder) DecodeByte(b byte) (Command, error) {
	switch d.state {
	case stateHunt:
		if b != StartByte {
			return nil, nil
		}
		d.buffer[0] = b
		d.index = 1
		d.state = stateFrame
		return nil, nil

	case stateFrame:
		d.buffer[d.index] = b
		d.index++
		if d.index < FrameSize {
			return nil, nil
		}
		d.window = d.buffer
		d.complete = true
		d.state = stateHunt
		d.index = 0

		cmd, err := d.registry.DecodeFrame(d.window[:])
		if err != nil && d.window[EndIndex] != EndByte {
			d.resync()
		}
		return cmd, err

	default:
		d.Reset()
		return nil, fmt.Errorf("invalid decoder state: %d", d.state)
	}
}

// resync moves the tail of a misaligned window, from its next start byte,
// to the front of the buffer and resumes collecting
func (d *FrameDecoder) resync() {
	for i := 1; i < FrameSize; i++ {
		if d.window[i] != StartByte {
			continue
		}
		d.index = copy(d.buffer[:], d.window[i:])
		d.state = stateFrame
		return
	}
}
