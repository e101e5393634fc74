// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package telemetry encodes vehicle state into fixed 32-byte packets and
// streams them to a consumer without ever blocking the tick loop.
//
// Packet layout:
//
//	[payload: N bytes][zero padding][tick count: u32 LE][packet id]
//	 0                               27               31 31
//
// The producer side is the Pipeline (telemeters + trailer injection) and the
// supervised Transport. The consumer side (Decode, PacketReader, Validator,
// Statistics, Recorder) is used by the monitoring tools.
package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PacketSize is the fixed size of every telemetry packet
const PacketSize = 32

// Trailer layout
const (
	IDIndex        = PacketSize - 1
	TickCountSize  = 4
	TickCountIndex = IDIndex - TickCountSize
)

// Packet ids
const (
	IDEnvironment uint8 = 0x0
	IDBallast     uint8 = 0x1
	IDPropulsion  uint8 = 0x2
	IDSystem      uint8 = 0xF
)

// ErrTrailerOverlap is returned when a payload extends into a trailer field
var ErrTrailerOverlap = errors.New("payload overlaps trailer")

// Packet is one telemetry packet
type Packet [PacketSize]byte

// ApplyTickCount writes tick as little-endian u32 into bytes [27, 31).
// A payload longer than 27 bytes would be overwritten, so the write is
// skipped and ErrTrailerOverlap returned.
func ApplyTickCount(p *Packet, used int, tick uint32) error {
	if used > TickCountIndex {
		return fmt.Errorf("tick count: %w (%d bytes used, %d available)", ErrTrailerOverlap, used, TickCountIndex)
	}
	binary.LittleEndian.PutUint32(p[TickCountIndex:IDIndex], tick)
	return nil
}

// ApplyPacketID writes id into the final byte. A payload longer than 31
// bytes would be overwritten, so the write is skipped and ErrTrailerOverlap
// returned.
func ApplyPacketID(p *Packet, used int, id uint8) error {
	if used > IDIndex {
		return fmt.Errorf("packet id: %w (%d bytes used, %d available)", ErrTrailerOverlap, used, IDIndex)
	}
	p[IDIndex] = id
	return nil
}

// ID returns the packet id byte
func (p *Packet) ID() uint8 {
	return p[IDIndex]
}

// TickCount returns the tick count trailer
func (p *Packet) TickCount() uint32 {
	return binary.LittleEndian.Uint32(p[TickCountIndex:IDIndex])
}

// FormatPacketID returns the human-readable name for a packet id
func FormatPacketID(id uint8) string {
	switch id {
	case IDEnvironment:
		return "ENVIRONMENT"
	case IDBallast:
		return "BALLAST"
	case IDPropulsion:
		return "PROPULSION"
	case IDSystem:
		return "SYSTEM"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", id)
	}
}
