// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package scheduler

import (
	"context"
	"net"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Thermoquad/nautilus/pkg/actuator"
	"github.com/Thermoquad/nautilus/pkg/command"
	"github.com/Thermoquad/nautilus/pkg/config"
	"github.com/Thermoquad/nautilus/pkg/hal"
	"github.com/Thermoquad/nautilus/pkg/telemetry"
	"github.com/Thermoquad/nautilus/pkg/vehicle"
)

// ============================================================
// Fakes
// ============================================================

type trace struct {
	calls []string
}

func (tr *trace) add(s string) { tr.calls = append(tr.calls, s) }

type fakeVehicle struct {
	tr       *trace
	ticks    []uint32
	stopped  bool
	snapshot telemetry.BallastSnapshot
}

func (f *fakeVehicle) Tick(tick uint32) error {
	f.tr.add("tick")
	f.ticks = append(f.ticks, tick)
	return nil
}

func (f *fakeVehicle) SafeStop() error {
	f.stopped = true
	return nil
}

func (f *fakeVehicle) EnvironmentSnapshot() telemetry.EnvironmentSnapshot {
	return telemetry.EnvironmentSnapshot{}
}
func (f *fakeVehicle) BallastSnapshot() telemetry.BallastSnapshot { return f.snapshot }
func (f *fakeVehicle) PropulsionSnapshot() telemetry.PropulsionSnapshot {
	return telemetry.PropulsionSnapshot{}
}

type fakeDispatcher struct{ tr *trace }

func (f *fakeDispatcher) DispatchNext() bool {
	f.tr.add("dispatch")
	return false
}

type fakePipeline struct {
	tr      *trace
	timings []telemetry.Timing
	emitted []uint32
}

func (f *fakePipeline) CollectSystem(t telemetry.Timing) {
	f.tr.add("system")
	f.timings = append(f.timings, t)
}
func (f *fakePipeline) Collect(telemetry.Source) { f.tr.add("collect") }
func (f *fakePipeline) Emit(tick uint32) {
	f.tr.add("emit")
	f.emitted = append(f.emitted, tick)
}

func newFakes() (*trace, *fakeVehicle, *fakeDispatcher, *fakePipeline) {
	tr := &trace{}
	return tr, &fakeVehicle{tr: tr}, &fakeDispatcher{tr: tr}, &fakePipeline{tr: tr}
}

// ============================================================
// Step Tests
// ============================================================

func TestStep_Order(t *testing.T) {
	tr, v, d, p := newFakes()
	s := New(Config{TickRate: 20}, v, d, p, nil, nil)

	s.Step()

	want := []string{"system", "dispatch", "tick", "collect", "emit"}
	if !reflect.DeepEqual(tr.calls, want) {
		t.Errorf("call order = %v, want %v", tr.calls, want)
	}
}

func TestStep_TickCounter(t *testing.T) {
	_, v, d, p := newFakes()
	s := New(Config{TickRate: 20}, v, d, p, nil, nil)

	for i := 0; i < 3; i++ {
		s.Step()
	}
	if !reflect.DeepEqual(v.ticks, []uint32{0, 1, 2}) {
		t.Errorf("vehicle ticks = %v", v.ticks)
	}
	if !reflect.DeepEqual(p.emitted, []uint32{0, 1, 2}) {
		t.Errorf("emitted ticks = %v", p.emitted)
	}
	if s.Tick() != 3 {
		t.Errorf("Tick() = %d", s.Tick())
	}
}

func TestStep_TickCounterWraps(t *testing.T) {
	_, v, d, p := newFakes()
	s := New(Config{TickRate: 20}, v, d, p, nil, nil)
	s.tick = ^uint32(0)

	s.Step()
	s.Step()
	if !reflect.DeepEqual(v.ticks, []uint32{^uint32(0), 0}) {
		t.Errorf("ticks across wrap = %v", v.ticks)
	}
}

func TestNew_Interval(t *testing.T) {
	tests := []struct {
		rate int
		want time.Duration
	}{
		{20, 50 * time.Millisecond},
		{1000, time.Millisecond},
		{0, time.Second},
	}
	for _, tt := range tests {
		s := New(Config{TickRate: tt.rate}, nil, nil, nil, nil, nil)
		if s.Interval() != tt.want {
			t.Errorf("rate %d: interval = %v, want %v", tt.rate, s.Interval(), tt.want)
		}
	}
}

// ============================================================
// Run Tests
// ============================================================

func runFor(t *testing.T, s *Scheduler, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(d + 2*time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_PacesAndFeedsTiming(t *testing.T) {
	_, v, d, p := newFakes()
	s := New(Config{TickRate: 100}, v, d, p, nil, nil)

	runFor(t, s, 105*time.Millisecond)

	n := len(v.ticks)
	if n < 3 || n > 15 {
		t.Fatalf("ran %d ticks in 105ms at 100 Hz", n)
	}
	if p.timings[0] != (telemetry.Timing{}) {
		t.Errorf("first tick saw timing %+v, want zero", p.timings[0])
	}
	for i, tm := range p.timings[1:] {
		if tm.Total != tm.Run+tm.Idle {
			t.Errorf("tick %d: total %v != run %v + idle %v", i+1, tm.Total, tm.Run, tm.Idle)
		}
		if tm.Idle <= 0 {
			t.Errorf("tick %d: idle %v with a cheap tick", i+1, tm.Idle)
		}
	}
	if v.stopped {
		t.Error("SafeStop called without safe_stop_on_exit")
	}

	// the last completed tick, whether or not it was reported
	last := s.LastTiming()
	if last.Total != last.Run+last.Idle || last.Idle <= 0 {
		t.Errorf("LastTiming = %+v, want run + idle = total with idle > 0", last)
	}
}

func TestRun_SafeStopOnExit(t *testing.T) {
	_, v, d, p := newFakes()
	s := New(Config{TickRate: 100, SafeStopOnExit: true}, v, d, p, nil, nil)

	runFor(t, s, 20*time.Millisecond)
	if !v.stopped {
		t.Error("SafeStop not called on exit")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	_, v, d, p := newFakes()
	s := New(Config{TickRate: 100}, v, d, p, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(v.ticks) != 0 {
		t.Errorf("ran %d ticks after cancel", len(v.ticks))
	}
}

// ============================================================
// End-to-End Tests
// ============================================================

// observingDispatcher records the ballast state right after each dispatch
type observingDispatcher struct {
	inner  Dispatcher
	v      *vehicle.Vehicle
	states []actuator.BallastState
}

func (o *observingDispatcher) DispatchNext() bool {
	ok := o.inner.DispatchNext()
	o.states = append(o.states, o.v.Ballast().State())
	return ok
}

type notReady struct{}

func (notReady) Ready() bool                { return false }
func (notReady) Send(telemetry.Packet) bool { return false }

func TestEndToEnd_BallastDischargeFrame(t *testing.T) {
	cfg := config.Default()
	board := hal.NewSimBoard(0)
	v, err := vehicle.New(board, cfg.Hardware, nil, nil)
	if err != nil {
		t.Fatalf("vehicle.New: %v", err)
	}

	q := command.NewQueue(0)
	path := filepath.Join(t.TempDir(), "commanding.socket")
	l := command.NewListener(command.ListenerConfig{Path: path}, q, nil, nil)
	if err := l.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- l.Serve(ctx) }()
	defer func() {
		cancel()
		<-served
	}()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	frame := []byte{0x0A, 0x00, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x0F}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for q.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if q.Len() != 1 {
		t.Fatalf("queue length = %d", q.Len())
	}

	od := &observingDispatcher{inner: command.NewDispatcher(q, v, nil, nil), v: v}
	pipe := telemetry.NewPipeline(notReady{}, telemetry.AllTelemeters(), nil, nil)
	s := New(Config{TickRate: cfg.System.TickRate}, v, od, pipe, nil, nil)

	intake, _ := board.SimOutput(cfg.Hardware.Ballast.GPIO.IntakePin)
	discharge, _ := board.SimOutput(cfg.Hardware.Ballast.GPIO.DischargePin)

	// Next tick: Transition, both outputs low
	s.Step()
	if od.states[0] != actuator.BallastTransition {
		t.Errorf("state after dispatch = %v, want TRANSITION", od.states[0])
	}
	if intake.IsHigh() || discharge.IsHigh() {
		t.Errorf("transition tick outputs: intake=%v discharge=%v", intake.IsHigh(), discharge.IsHigh())
	}

	// Following tick: Discharge, discharge high, intake low
	s.Step()
	if got := v.Ballast().State(); got != actuator.BallastDischarge {
		t.Errorf("state = %v, want DISCHARGE", got)
	}
	if !discharge.IsHigh() || intake.IsHigh() {
		t.Errorf("discharge tick outputs: intake=%v discharge=%v", intake.IsHigh(), discharge.IsHigh())
	}
}
