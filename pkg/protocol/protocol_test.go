// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

// ============================================================
// Test Helpers
// ============================================================

// buildFrame creates a 16-byte frame for module id with the given payload prefix
func buildFrame(id byte, payload ...byte) []byte {
	frame := make([]byte, FrameSize)
	frame[0] = StartByte
	frame[ModuleOffset] = id
	copy(frame[PayloadOffset:PayloadOffset+PayloadSize], payload)
	frame[EndIndex] = EndByte
	return frame
}

// ============================================================
// Frame Validation Tests
// ============================================================

func TestValidateFrame(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name   string
		frame  []byte
		valid  bool
		reason RejectReason
	}{
		{"ballast", buildFrame(ModuleIDBallast, 0x02), true, 0},
		{"propulsion", buildFrame(ModuleIDPropulsion), true, 0},
		{"light", buildFrame(ModuleIDLight, 0x01), true, 0},
		{"empty", []byte{}, false, RejectLength},
		{"short", buildFrame(ModuleIDBallast)[:FrameSize-1], false, RejectLength},
		{"long", append(buildFrame(ModuleIDBallast), 0x00), false, RejectLength},
		{"bad start", func() []byte { f := buildFrame(ModuleIDBallast); f[0] = 0x0B; return f }(), false, RejectStartByte},
		{"bad end", func() []byte { f := buildFrame(ModuleIDBallast); f[EndIndex] = 0x00; return f }(), false, RejectEndByte},
		{"unknown module", buildFrame(0x03), false, RejectUnknownModule},
		{"unknown module high", buildFrame(0xFF), false, RejectUnknownModule},
		{"reserved byte ignored", func() []byte { f := buildFrame(ModuleIDLight); f[ReservedIndex] = 0xAB; return f }(), true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.ValidateFrame(tt.frame)
			if got := reg.IsValidFrame(tt.frame); got != tt.valid {
				t.Fatalf("IsValidFrame = %v, want %v (err=%v)", got, tt.valid, err)
			}
			if tt.valid {
				return
			}
			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FrameError, got %T", err)
			}
			if fe.Reason != tt.reason {
				t.Errorf("Reason = %s, want %s", fe.Reason, tt.reason)
			}
		})
	}
}

func TestValidateFrame_CustomRegistry(t *testing.T) {
	reg, err := NewRegistry(map[byte]Module{0x10: ModuleLight})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if !reg.IsValidFrame(buildFrame(0x10)) {
		t.Error("frame for registered id 0x10 rejected")
	}
	if reg.IsValidFrame(buildFrame(ModuleIDBallast)) {
		t.Error("frame for unregistered id 0x00 accepted")
	}
}

func TestNewRegistry_DuplicateModule(t *testing.T) {
	_, err := NewRegistry(map[byte]Module{0x01: ModuleBallast, 0x02: ModuleBallast})
	if err == nil {
		t.Fatal("expected error for module registered twice")
	}
}

func TestNewRegistry_UnknownModule(t *testing.T) {
	_, err := NewRegistry(map[byte]Module{0x01: Module(9)})
	if err == nil {
		t.Fatal("expected error for unknown module")
	}
}

// ============================================================
// Payload Decode Tests
// ============================================================

func TestDecode_Ballast(t *testing.T) {
	tests := []struct {
		b    byte
		want BallastMode
	}{
		{0, BallastIdle},
		{1, BallastIntake},
		{2, BallastDischarge},
	}
	for _, tt := range tests {
		cmd, err := Decode(ModuleBallast, []byte{tt.b})
		if err != nil {
			t.Fatalf("Decode(%d): %v", tt.b, err)
		}
		bc, ok := cmd.(BallastCommand)
		if !ok {
			t.Fatalf("Decode(%d) returned %T", tt.b, cmd)
		}
		if bc.Mode != tt.want {
			t.Errorf("Decode(%d) = %s, want %s", tt.b, bc.Mode, tt.want)
		}
	}

	for _, b := range []byte{3, 0x7F, 0xFF} {
		if _, err := Decode(ModuleBallast, []byte{b}); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("Decode(ballast, %d) err = %v, want ErrInvalidPayload", b, err)
		}
	}
}

func TestDecode_Light(t *testing.T) {
	for b, want := range map[byte]LightMode{0: LightOff, 1: LightOn, 2: LightBlink} {
		cmd, err := Decode(ModuleLight, []byte{b})
		if err != nil {
			t.Fatalf("Decode(%d): %v", b, err)
		}
		if lc := cmd.(LightCommand); lc.Mode != want {
			t.Errorf("Decode(%d) = %s, want %s", b, lc.Mode, want)
		}
	}
	if _, err := Decode(ModuleLight, []byte{3}); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestDecode_PropulsionRoundTrip(t *testing.T) {
	payload := make([]byte, PayloadSize)
	binary.LittleEndian.PutUint32(payload[0:4], math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(payload[4:8], math.Float32bits(-0.25))

	cmd, err := Decode(ModulePropulsion, payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	pc := cmd.(PropulsionCommand)
	if math.Float32bits(pc.Vector.X) != math.Float32bits(0.5) {
		t.Errorf("x = %v, want 0.5", pc.Vector.X)
	}
	if math.Float32bits(pc.Vector.Y) != math.Float32bits(-0.25) {
		t.Errorf("y = %v, want -0.25", pc.Vector.Y)
	}
}

func TestDecode_PropulsionShortPayload(t *testing.T) {
	if _, err := Decode(ModulePropulsion, make([]byte, 7)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestDecodeFrame_EndToEndDischarge(t *testing.T) {
	frame := []byte{0x0A, 0x00, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x0F}
	cmd, err := DefaultRegistry().DecodeFrame(frame)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if cmd != (BallastCommand{Mode: BallastDischarge}) {
		t.Errorf("got %#v", cmd)
	}
}

func TestDecodeFrame_InvalidPayloadNotApplied(t *testing.T) {
	cmd, err := DefaultRegistry().DecodeFrame(buildFrame(ModuleIDBallast, 0x09))
	if err == nil || cmd != nil {
		t.Fatalf("expected rejection, got cmd=%v err=%v", cmd, err)
	}
}

// ============================================================
// Encoder Tests
// ============================================================

func TestEncode_RoundTrip(t *testing.T) {
	reg := DefaultRegistry()
	cmds := []Command{
		NewBallastCommand(BallastIdle),
		NewBallastCommand(BallastIntake),
		NewBallastCommand(BallastDischarge),
		NewThrustCommand(0.5, -0.25),
		NewThrustCommand(-1, 1),
		NewLightCommand(LightOff),
		NewLightCommand(LightBlink),
	}
	for _, cmd := range cmds {
		t.Run(FormatCommand(cmd), func(t *testing.T) {
			frame, err := Encode(reg, cmd)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if len(frame) != FrameSize {
				t.Fatalf("frame length %d", len(frame))
			}
			if frame[ReservedIndex] != 0 {
				t.Errorf("reserved byte = 0x%02X, want 0", frame[ReservedIndex])
			}
			got, err := reg.DecodeFrame(frame)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if got != cmd {
				t.Errorf("round trip = %#v, want %#v", got, cmd)
			}
		})
	}
}

func TestEncode_MatchesWireExample(t *testing.T) {
	want := []byte{0x0A, 0x00, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x0F}
	got := MustEncode(NewBallastCommand(BallastDischarge))
	if FormatFrame(got) != FormatFrame(want) {
		t.Errorf("got %s, want %s", FormatFrame(got), FormatFrame(want))
	}
}

func TestEncode_InvalidMode(t *testing.T) {
	if _, err := Encode(DefaultRegistry(), BallastCommand{Mode: 7}); err == nil {
		t.Error("expected error for invalid ballast mode")
	}
	if _, err := Encode(DefaultRegistry(), nil); err == nil {
		t.Error("expected error for nil command")
	}
}

// ============================================================
// Frame Decoder Tests
// ============================================================

func TestFrameDecoder_Stream(t *testing.T) {
	d := NewFrameDecoder(DefaultRegistry())

	stream := []byte{0x00, 0xFF, 0x42} // noise before the first frame
	stream = append(stream, MustEncode(NewLightCommand(LightOn))...)
	stream = append(stream, MustEncode(NewThrustCommand(0.25, 0.75))...)

	var cmds []Command
	for _, b := range stream {
		cmd, err := d.DecodeByte(b)
		if err != nil {
			t.Fatalf("DecodeByte: %v", err)
		}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	if len(cmds) != 2 {
		t.Fatalf("decoded %d commands, want 2", len(cmds))
	}
	if cmds[0] != Command(NewLightCommand(LightOn)) {
		t.Errorf("cmds[0] = %#v", cmds[0])
	}
	if cmds[1] != Command(NewThrustCommand(0.25, 0.75)) {
		t.Errorf("cmds[1] = %#v", cmds[1])
	}
}

func TestFrameDecoder_RejectThenRecover(t *testing.T) {
	d := NewFrameDecoder(DefaultRegistry())

	bad := buildFrame(0x07)
	stream := append(bad, MustEncode(NewBallastCommand(BallastIntake))...)

	var errs, oks int
	for _, b := range stream {
		cmd, err := d.DecodeByte(b)
		if err != nil {
			errs++
			var fe *FrameError
			if !errors.As(err, &fe) || fe.Reason != RejectUnknownModule {
				t.Errorf("unexpected error %v", err)
			}
		}
		if cmd != nil {
			oks++
		}
	}
	if errs != 1 || oks != 1 {
		t.Errorf("errs=%d oks=%d, want 1 and 1", errs, oks)
	}
}

func TestFrameDecoder_ResyncsInsideRejectedWindow(t *testing.T) {
	discharge := MustEncode(NewBallastCommand(BallastDischarge))
	lightOn := MustEncode(NewLightCommand(LightOn))
	truncated := lightOn[:FrameSize-1]

	concat := func(parts ...[]byte) []byte {
		var out []byte
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}

	tests := []struct {
		name     string
		stream   []byte
		want     []Command
		wantErrs int
	}{
		{
			name:     "stray start byte",
			stream:   concat([]byte{StartByte}, discharge, lightOn),
			want:     []Command{NewBallastCommand(BallastDischarge), NewLightCommand(LightOn)},
			wantErrs: 1,
		},
		{
			name:     "truncated frame",
			stream:   concat(truncated, lightOn, lightOn, lightOn),
			want:     []Command{NewLightCommand(LightOn), NewLightCommand(LightOn), NewLightCommand(LightOn)},
			wantErrs: 1,
		},
		{
			name:     "noise then frame",
			stream:   concat([]byte{0x33, StartByte, 0x44}, discharge),
			want:     []Command{NewBallastCommand(BallastDischarge)},
			wantErrs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewFrameDecoder(DefaultRegistry())
			var got []Command
			errs := 0
			for _, b := range tt.stream {
				cmd, err := d.DecodeByte(b)
				if err != nil {
					errs++
					if len(d.Frame()) != FrameSize {
						t.Errorf("Frame() after reject = %d bytes, want %d", len(d.Frame()), FrameSize)
					}
					continue
				}
				if cmd != nil {
					got = append(got, cmd)
				}
			}
			if errs != tt.wantErrs {
				t.Errorf("errors = %d, want %d", errs, tt.wantErrs)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("commands = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("command %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{NewBallastCommand(BallastDischarge), "BALLAST DISCHARGE"},
		{NewLightCommand(LightBlink), "LIGHT BLINK"},
		{NewThrustCommand(0.5, 0.25), "PROPULSION x=0.500 y=0.250"},
		{nil, "<nil>"},
	}
	for _, tt := range tests {
		if got := FormatCommand(tt.cmd); got != tt.want {
			t.Errorf("FormatCommand = %q, want %q", got, tt.want)
		}
	}
}

func TestParseModes(t *testing.T) {
	if m, err := ParseBallastMode("Intake"); err != nil || m != BallastIntake {
		t.Errorf("ParseBallastMode = %v, %v", m, err)
	}
	if m, err := ParseLightMode("blink"); err != nil || m != LightBlink {
		t.Errorf("ParseLightMode = %v, %v", m, err)
	}
	if _, err := ParseLightMode("strobe"); err == nil || !strings.Contains(err.Error(), "strobe") {
		t.Errorf("expected error naming the mode, got %v", err)
	}
	if m, err := ParseModule("propulsion"); err != nil || m != ModulePropulsion {
		t.Errorf("ParseModule = %v, %v", m, err)
	}
}
