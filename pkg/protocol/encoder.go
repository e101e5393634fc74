// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode builds the wire frame for cmd using the registry's module numbering.
// The reserved byte is written as zero.
func Encode(reg *Registry, cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, fmt.Errorf("encode: nil command")
	}
	id, ok := reg.ID(cmd.Module())
	if !ok {
		return nil, fmt.Errorf("encode: %s has no module id", cmd.Module())
	}

	frame := make([]byte, FrameSize)
	frame[0] = StartByte
	frame[ModuleOffset] = id
	payload := frame[PayloadOffset : PayloadOffset+PayloadSize]

	switch c := cmd.(type) {
	case BallastCommand:
		if c.Mode > BallastDischarge {
			return nil, fmt.Errorf("encode: invalid ballast mode %d", c.Mode)
		}
		payload[0] = byte(c.Mode)
	case PropulsionCommand:
		binary.LittleEndian.PutUint32(payload[0:4], math.Float32bits(c.Vector.X))
		binary.LittleEndian.PutUint32(payload[4:8], math.Float32bits(c.Vector.Y))
	case LightCommand:
		if c.Mode > LightBlink {
			return nil, fmt.Errorf("encode: invalid light mode %d", c.Mode)
		}
		payload[0] = byte(c.Mode)
	default:
		return nil, fmt.Errorf("encode: unsupported command %T", cmd)
	}

	frame[EndIndex] = EndByte
	return frame, nil
}

// MustEncode is Encode for the default registry. Panics on encoding error.
func MustEncode(cmd Command) []byte {
	frame, err := Encode(DefaultRegistry(), cmd)
	if err != nil {
		panic(fmt.Sprintf("protocol: encode error: %v", err))
	}
	return frame
}
