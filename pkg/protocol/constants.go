// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package protocol implements the Nautilus command protocol.
//
// Commands travel from an operator client to the vehicle daemon as fixed
// 16-byte frames over a local stream socket:
//
//	[0x0A][module id][payload: 12 bytes][reserved][0x0F]
//
// The reserved byte is held for a frame checksum and is currently ignored.
// This package provides frame validation, per-module payload decoding into
// immutable Command values, a byte-stream frame decoder, an encoder for
// clients, and formatting helpers.
package protocol

// Frame framing bytes
const (
	StartByte = 0x0A
	EndByte   = 0x0F
)

// Frame layout
const (
	FrameSize     = 16
	PayloadSize   = 12
	PayloadOffset = 2
	ModuleOffset  = 1
	ReservedIndex = FrameSize - 2
	EndIndex      = FrameSize - 1
)

// Default module ids
const (
	ModuleIDBallast    = 0x0
	ModuleIDPropulsion = 0x1
	ModuleIDLight      = 0x2
)

// Module identifies the vehicle subsystem a command is addressed to
type Module int

// Module values
const (
	ModuleBallast Module = iota
	ModulePropulsion
	ModuleLight
)

// BallastMode is the commanded ballast pump mode
type BallastMode uint8

// Ballast payload values
const (
	BallastIdle      BallastMode = 0x00
	BallastIntake    BallastMode = 0x01
	BallastDischarge BallastMode = 0x02
)

// LightMode is the commanded lamp mode
type LightMode uint8

// Light payload values
const (
	LightOff   LightMode = 0x00
	LightOn    LightMode = 0x01
	LightBlink LightMode = 0x02
)

// Decoder states (internal)
const (
	stateHunt = iota
	stateFrame
)
