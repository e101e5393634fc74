// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vehicle

import (
	"errors"
	"testing"

	"github.com/Thermoquad/nautilus/pkg/actuator"
	"github.com/Thermoquad/nautilus/pkg/config"
	"github.com/Thermoquad/nautilus/pkg/hal"
	"github.com/Thermoquad/nautilus/pkg/protocol"
	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

func newSimVehicle(t *testing.T) (*Vehicle, *hal.SimBoard, config.HardwareConfig) {
	t.Helper()
	hw := config.Default().Hardware
	board := hal.NewSimBoard(hw.PinCount)
	v, err := New(board, hw, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v, board, hw
}

// ============================================================
// Construction Tests
// ============================================================

func TestNew_AcquisitionFailures(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.HardwareConfig)
	}{
		{"duplicate pin", func(hw *config.HardwareConfig) { hw.Propulsion.GPIO.PortPin = hw.Ballast.GPIO.IntakePin }},
		{"pin out of range", func(hw *config.HardwareConfig) { hw.DHT11.GPIO.DataPin = 99 }},
		{"negative pin", func(hw *config.HardwareConfig) { hw.Light.GPIO.LightPin = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hw := config.Default().Hardware
			tt.modify(&hw)
			_, err := New(hal.NewSimBoard(hw.PinCount), hw, nil, nil)
			var acqErr *hal.AcquireError
			if !errors.As(err, &acqErr) {
				t.Fatalf("error = %v, want *hal.AcquireError", err)
			}
		})
	}
}

func TestNew_OutputsStartSafe(t *testing.T) {
	_, board, hw := newSimVehicle(t)

	for _, pin := range []int{hw.Ballast.GPIO.IntakePin, hw.Ballast.GPIO.DischargePin, hw.Light.GPIO.LightPin} {
		p, ok := board.SimOutput(pin)
		if !ok {
			t.Fatalf("pin %d not claimed", pin)
		}
		if p.IsHigh() {
			t.Errorf("pin %d high after construction", pin)
		}
	}
	for _, pin := range []int{hw.Propulsion.GPIO.AftPin, hw.Propulsion.GPIO.PortPin, hw.Propulsion.GPIO.StarboardPin} {
		p, ok := board.SimPWM(pin)
		if !ok {
			t.Fatalf("pwm %d not claimed", pin)
		}
		if p.Power() != 0 {
			t.Errorf("pwm %d power %v after construction", pin, p.Power())
		}
	}
}

// ============================================================
// Tick Tests
// ============================================================

func TestTick_DrivesActuators(t *testing.T) {
	v, board, hw := newSimVehicle(t)

	v.HandleBallast(protocol.NewBallastCommand(protocol.BallastIntake))
	v.HandlePropulsion(protocol.NewThrustCommand(0.5, 0.5))
	v.HandleLight(protocol.NewLightCommand(protocol.LightOn))

	for tick := uint32(0); tick < 2; tick++ {
		if err := v.Tick(tick); err != nil {
			t.Fatalf("Tick(%d): %v", tick, err)
		}
	}

	if v.Ballast().State() != actuator.BallastIntake || !v.Ballast().IntakeHigh() {
		t.Errorf("ballast state=%v intake=%v", v.Ballast().State(), v.Ballast().IntakeHigh())
	}
	if !v.Light().IsOn() {
		t.Error("light off after On command")
	}

	aft, _ := board.SimPWM(hw.Propulsion.GPIO.AftPin)
	if got := aft.Power(); got < 0.099 || got > 0.101 {
		t.Errorf("aft power after two ticks = %v, want 0.1", got)
	}
	port, _ := board.SimPWM(hw.Propulsion.GPIO.PortPin)
	if port.Power() <= 0 {
		t.Error("port thruster idle with x > 0")
	}
	dir, _ := board.SimOutput(hw.Propulsion.GPIO.DirectionPin)
	if !dir.IsHigh() {
		t.Error("direction line low for port thrust")
	}
}

func TestTick_SamplesEnvironment(t *testing.T) {
	v, board, hw := newSimVehicle(t)

	if !v.EnvironmentSnapshot().Stale {
		t.Fatal("environment fresh before first sample")
	}
	if err := v.Tick(0); err != nil {
		t.Fatal(err)
	}
	want := telemetry.EnvironmentSnapshot{Temperature: 12, Humidity: 60}
	if got := v.EnvironmentSnapshot(); got != want {
		t.Errorf("snapshot = %+v, want %+v", got, want)
	}

	sensor, _ := board.SimSensor(hw.DHT11.GPIO.DataPin)
	sensor.QueueError(errors.New("no response"))
	if err := v.Tick(hw.DHT11.SampleInterval); err != nil {
		t.Fatal(err)
	}
	got := v.EnvironmentSnapshot()
	if !got.Stale || got.Temperature != 12 {
		t.Errorf("snapshot after failure = %+v, want last sample marked stale", got)
	}
}

// ============================================================
// Snapshot and Safe Stop Tests
// ============================================================

func TestSnapshots(t *testing.T) {
	v, _, _ := newSimVehicle(t)

	v.HandleBallast(protocol.NewBallastCommand(protocol.BallastDischarge))
	v.HandlePropulsion(protocol.NewThrustCommand(-2, 0.25))

	b := v.BallastSnapshot()
	if b.State != uint8(actuator.BallastTransition) || b.Target != uint8(actuator.BallastDischarge) {
		t.Errorf("ballast snapshot = %+v", b)
	}

	if err := v.Tick(1); err != nil {
		t.Fatal(err)
	}
	p := v.PropulsionSnapshot()
	if p.X != -1 || p.Y != 0.25 {
		t.Errorf("vector = (%v, %v), want clamped (-1, 0.25)", p.X, p.Y)
	}
	if p.AftTarget != 0.25 || p.YawTarget != 1 {
		t.Errorf("targets aft=%v yaw=%v", p.AftTarget, p.YawTarget)
	}
	if p.ActiveThruster != uint8(actuator.ThrusterStarboard) {
		t.Errorf("active thruster = %d, want starboard", p.ActiveThruster)
	}
}

func TestSafeStop(t *testing.T) {
	v, board, hw := newSimVehicle(t)

	v.HandleBallast(protocol.NewBallastCommand(protocol.BallastDischarge))
	v.HandlePropulsion(protocol.NewThrustCommand(0.8, 1))
	v.HandleLight(protocol.NewLightCommand(protocol.LightOn))
	for tick := uint32(0); tick < 5; tick++ {
		if err := v.Tick(tick); err != nil {
			t.Fatal(err)
		}
	}

	if err := v.SafeStop(); err != nil {
		t.Fatalf("SafeStop: %v", err)
	}

	if v.Ballast().IntakeHigh() || v.Ballast().DischargeHigh() {
		t.Error("ballast valve open after safe stop")
	}
	if v.Light().IsOn() {
		t.Error("light on after safe stop")
	}
	for _, pin := range []int{hw.Propulsion.GPIO.AftPin, hw.Propulsion.GPIO.PortPin, hw.Propulsion.GPIO.StarboardPin} {
		p, _ := board.SimPWM(pin)
		if p.Power() != 0 {
			t.Errorf("pwm %d power %v after safe stop", pin, p.Power())
		}
	}
}
