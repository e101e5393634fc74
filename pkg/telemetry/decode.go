// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// ErrUnknownPacket is returned when decoding a packet with an unknown id
var ErrUnknownPacket = errors.New("unknown packet id")

// PropulsionReport is the propulsion payload as carried on the wire, with
// duty cycles as whole percentages
type PropulsionReport struct {
	X              float32 `cbor:"0,keyasint"`
	Y              float32 `cbor:"1,keyasint"`
	AftDuty        uint8   `cbor:"2,keyasint"`
	AftTarget      uint8   `cbor:"3,keyasint"`
	YawDuty        uint8   `cbor:"4,keyasint"`
	YawTarget      uint8   `cbor:"5,keyasint"`
	ActiveThruster uint8   `cbor:"6,keyasint"`
}

// Record is one decoded telemetry packet. Exactly one payload field is set.
type Record struct {
	ID          uint8
	Tick        uint32
	Environment *EnvironmentSnapshot
	Ballast     *BallastSnapshot
	Propulsion  *PropulsionReport
	System      *Timing
}

// Decode parses a packet's payload according to its id
func Decode(p Packet) (Record, error) {
	r := Record{ID: p.ID(), Tick: p.TickCount()}

	switch r.ID {
	case IDEnvironment:
		r.Environment = &EnvironmentSnapshot{
			Temperature: p[0],
			Humidity:    p[1],
			Stale:       p[2] != 0,
		}
	case IDBallast:
		r.Ballast = &BallastSnapshot{State: p[0], Target: p[1]}
	case IDPropulsion:
		r.Propulsion = &PropulsionReport{
			X:              math.Float32frombits(binary.LittleEndian.Uint32(p[0:4])),
			Y:              math.Float32frombits(binary.LittleEndian.Uint32(p[4:8])),
			AftDuty:        p[8],
			AftTarget:      p[9],
			YawDuty:        p[10],
			YawTarget:      p[11],
			ActiveThruster: p[12],
		}
	case IDSystem:
		r.System = &Timing{
			Run:   time.Duration(binary.LittleEndian.Uint32(p[0:4])) * time.Microsecond,
			Idle:  time.Duration(binary.LittleEndian.Uint32(p[4:8])) * time.Microsecond,
			Total: time.Duration(binary.LittleEndian.Uint32(p[8:12])) * time.Microsecond,
		}
	default:
		return r, fmt.Errorf("%w 0x%02X", ErrUnknownPacket, r.ID)
	}
	return r, nil
}

// PacketReader reads consecutive fixed-size packets from a byte stream
type PacketReader struct {
	r io.Reader
}

// NewPacketReader wraps r
func NewPacketReader(r io.Reader) *PacketReader {
	return &PacketReader{r: r}
}

// Next blocks until a full packet is read. A stream that ends mid-packet
// returns io.ErrUnexpectedEOF.
func (pr *PacketReader) Next() (Packet, error) {
	var p Packet
	if _, err := io.ReadFull(pr.r, p[:]); err != nil {
		return p, err
	}
	return p, nil
}
