// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Entry is one recorded packet with its arrival time
type Entry struct {
	Received time.Time `cbor:"0,keyasint"`
	Packet   []byte    `cbor:"1,keyasint"`
}

// Recorder appends received packets to a CBOR sequence
type Recorder struct {
	enc *cbor.Encoder
}

var recordEncMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// NewRecorder writes entries to w
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: recordEncMode.NewEncoder(w)}
}

// Record appends one packet
func (r *Recorder) Record(received time.Time, p Packet) error {
	if err := r.enc.Encode(Entry{Received: received, Packet: p[:]}); err != nil {
		return fmt.Errorf("failed to record packet: %w", err)
	}
	return nil
}

// EntryReader reads a recording back
type EntryReader struct {
	dec *cbor.Decoder
}

// NewEntryReader reads entries from r
func NewEntryReader(r io.Reader) *EntryReader {
	return &EntryReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next entry and its packet, or io.EOF at the end of the
// recording
func (er *EntryReader) Next() (Entry, Packet, error) {
	var e Entry
	var p Packet
	if err := er.dec.Decode(&e); err != nil {
		if errors.Is(err, io.EOF) {
			return e, p, io.EOF
		}
		return e, p, fmt.Errorf("failed to decode recording: %w", err)
	}
	if len(e.Packet) != PacketSize {
		return e, p, fmt.Errorf("recorded packet is %d bytes, want %d", len(e.Packet), PacketSize)
	}
	copy(p[:], e.Packet)
	return e, p, nil
}
