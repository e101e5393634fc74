// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"errors"
	"fmt"
)

// ErrInvalidPayload is returned when a payload cannot be decoded for its module
var ErrInvalidPayload = errors.New("invalid payload")

// RejectReason classifies why a frame failed validation
type RejectReason int

const (
	RejectLength RejectReason = iota
	RejectStartByte
	RejectEndByte
	RejectUnknownModule
)

// String returns a short name for the reason
func (r RejectReason) String() string {
	switch r {
	case RejectLength:
		return "length"
	case RejectStartByte:
		return "start_byte"
	case RejectEndByte:
		return "end_byte"
	case RejectUnknownModule:
		return "unknown_module"
	default:
		return "unknown"
	}
}

// FrameError represents a frame that failed structural validation
type FrameError struct {
	Reason  RejectReason
	Message string
}

// Error implements the error interface
func (e *FrameError) Error() string {
	return e.Message
}

// ValidateFrame checks the exact frame length, the start and end bytes and
// that the module id is registered. The reserved byte is not inspected.
func (r *Registry) ValidateFrame(b []byte) error {
	if len(b) != FrameSize {
		return &FrameError{
			Reason:  RejectLength,
			Message: fmt.Sprintf("frame length %d (expected %d)", len(b), FrameSize),
		}
	}
	if b[0] != StartByte {
		return &FrameError{
			Reason:  RejectStartByte,
			Message: fmt.Sprintf("bad start byte 0x%02X (expected 0x%02X)", b[0], StartByte),
		}
	}
	if b[EndIndex] != EndByte {
		return &FrameError{
			Reason:  RejectEndByte,
			Message: fmt.Sprintf("bad end byte 0x%02X (expected 0x%02X)", b[EndIndex], EndByte),
		}
	}
	if _, ok := r.Lookup(b[ModuleOffset]); !ok {
		return &FrameError{
			Reason:  RejectUnknownModule,
			Message: fmt.Sprintf("unknown module id 0x%02X", b[ModuleOffset]),
		}
	}
	return nil
}

// IsValidFrame reports whether b passes ValidateFrame
func (r *Registry) IsValidFrame(b []byte) bool {
	return r.ValidateFrame(b) == nil
}

// DecodeFrame validates b and decodes its payload. Nothing is returned for a
// frame that fails either step.
func (r *Registry) DecodeFrame(b []byte) (Command, error) {
	if err := r.ValidateFrame(b); err != nil {
		return nil, err
	}
	module, _ := r.Lookup(b[ModuleOffset])
	return Decode(module, b[PayloadOffset:PayloadOffset+PayloadSize])
}
