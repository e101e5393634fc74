// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"encoding/binary"
	"math"
	"time"
)

// EnvironmentSnapshot is the sampled cabin environment
type EnvironmentSnapshot struct {
	Temperature uint8 `cbor:"0,keyasint"`
	Humidity    uint8 `cbor:"1,keyasint"`
	Stale       bool  `cbor:"2,keyasint"`
}

// BallastSnapshot is the ballast state machine's current and target state
type BallastSnapshot struct {
	State  uint8 `cbor:"0,keyasint"`
	Target uint8 `cbor:"1,keyasint"`
}

// PropulsionSnapshot is the propulsion state as read from the actuators.
// Duty cycles are fractions in [0, 1].
type PropulsionSnapshot struct {
	X, Y           float32
	AftDuty        float64
	AftTarget      float64
	YawDuty        float64
	YawTarget      float64
	ActiveThruster uint8
}

// Timing is one tick's self-measured timing
type Timing struct {
	Run   time.Duration `cbor:"0,keyasint"`
	Idle  time.Duration `cbor:"1,keyasint"`
	Total time.Duration `cbor:"2,keyasint"`
}

// Source provides read-only vehicle state to the telemeters
type Source interface {
	EnvironmentSnapshot() EnvironmentSnapshot
	BallastSnapshot() BallastSnapshot
	PropulsionSnapshot() PropulsionSnapshot
}

// Telemeter produces one subsystem's packet payload
type Telemeter interface {
	// ID returns the packet id
	ID() uint8
	// Collect pulls state from src
	Collect(src Source)
	// Serialize writes the payload at the start of p and returns the bytes used
	Serialize(p *Packet) int
}

// EnvironmentTelemeter reports temperature, humidity and staleness (3 bytes)
type EnvironmentTelemeter struct {
	snap EnvironmentSnapshot
}

func (t *EnvironmentTelemeter) ID() uint8 { return IDEnvironment }

func (t *EnvironmentTelemeter) Collect(src Source) { t.snap = src.EnvironmentSnapshot() }

func (t *EnvironmentTelemeter) Serialize(p *Packet) int {
	p[0] = t.snap.Temperature
	p[1] = t.snap.Humidity
	p[2] = boolByte(t.snap.Stale)
	return 3
}

// BallastTelemeter reports the current and target ballast state (2 bytes)
type BallastTelemeter struct {
	snap BallastSnapshot
}

func (t *BallastTelemeter) ID() uint8 { return IDBallast }

func (t *BallastTelemeter) Collect(src Source) { t.snap = src.BallastSnapshot() }

func (t *BallastTelemeter) Serialize(p *Packet) int {
	p[0] = t.snap.State
	p[1] = t.snap.Target
	return 2
}

// PropulsionTelemeter reports the thrust vector, duty cycles as whole
// percentages and the active yaw thruster (13 bytes)
type PropulsionTelemeter struct {
	snap PropulsionSnapshot
}

func (t *PropulsionTelemeter) ID() uint8 { return IDPropulsion }

func (t *PropulsionTelemeter) Collect(src Source) { t.snap = src.PropulsionSnapshot() }

func (t *PropulsionTelemeter) Serialize(p *Packet) int {
	binary.LittleEndian.PutUint32(p[0:4], math.Float32bits(t.snap.X))
	binary.LittleEndian.PutUint32(p[4:8], math.Float32bits(t.snap.Y))
	p[8] = percent(t.snap.AftDuty)
	p[9] = percent(t.snap.AftTarget)
	p[10] = percent(t.snap.YawDuty)
	p[11] = percent(t.snap.YawTarget)
	p[12] = t.snap.ActiveThruster
	return 13
}

// SystemTelemeter reports the previous tick's run, idle and total time in
// microseconds as u32 LE (12 bytes)
type SystemTelemeter struct {
	timing Timing
}

func (t *SystemTelemeter) ID() uint8 { return IDSystem }

// Collect is a no-op; timing arrives through Ingest
func (t *SystemTelemeter) Collect(Source) {}

// Ingest records one tick's timing
func (t *SystemTelemeter) Ingest(timing Timing) { t.timing = timing }

func (t *SystemTelemeter) Serialize(p *Packet) int {
	binary.LittleEndian.PutUint32(p[0:4], micros(t.timing.Run))
	binary.LittleEndian.PutUint32(p[4:8], micros(t.timing.Idle))
	binary.LittleEndian.PutUint32(p[8:12], micros(t.timing.Total))
	return 12
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// percent truncates a [0, 1] fraction to a whole percentage
func percent(f float64) uint8 {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= 1:
		return 100
	default:
		return uint8(f * 100)
	}
}

// micros saturates d to a u32 microsecond count
func micros(d time.Duration) uint32 {
	us := d.Microseconds()
	switch {
	case us < 0:
		return 0
	case us > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(us)
	}
}
