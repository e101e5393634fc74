// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package hal

import (
	"fmt"
	"math"
	"sync"
)

// DefaultPinCount matches the 40-pin header's BCM numbering (0-27)
const DefaultPinCount = 28

// SimBoard is an in-memory Board. Peripherals it hands out record every
// write so tests can observe the physical outputs.
type SimBoard struct {
	mu       sync.Mutex
	pinCount int
	claimed  map[int]string
	outputs  map[int]*SimPin
	pwms     map[int]*SimPWM
	sensors  map[int]*SimSensor
}

// NewSimBoard creates a simulated board with pinCount pins.
// A pinCount <= 0 selects DefaultPinCount.
func NewSimBoard(pinCount int) *SimBoard {
	if pinCount <= 0 {
		pinCount = DefaultPinCount
	}
	return &SimBoard{
		pinCount: pinCount,
		claimed:  make(map[int]string),
		outputs:  make(map[int]*SimPin),
		pwms:     make(map[int]*SimPWM),
		sensors:  make(map[int]*SimSensor),
	}
}

func (b *SimBoard) claim(pin int, kind string) error {
	if pin < 0 || pin >= b.pinCount {
		return &AcquireError{Pin: pin, Kind: kind, Reason: fmt.Sprintf("out of range (0-%d)", b.pinCount-1)}
	}
	if prev, ok := b.claimed[pin]; ok {
		return &AcquireError{Pin: pin, Kind: kind, Reason: fmt.Sprintf("already claimed as %s", prev)}
	}
	b.claimed[pin] = kind
	return nil
}

// OutputPin claims pin as a digital output, initially low
func (b *SimBoard) OutputPin(pin int) (OutputPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.claim(pin, "output"); err != nil {
		return nil, err
	}
	p := &SimPin{}
	b.outputs[pin] = p
	return p, nil
}

// PWM claims pin as a PWM output, initially disabled at 0% duty
func (b *SimBoard) PWM(pin int) (PWMOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.claim(pin, "pwm"); err != nil {
		return nil, err
	}
	p := &SimPWM{}
	b.pwms[pin] = p
	return p, nil
}

// Sensor claims pin as the environment sensor data line
func (b *SimBoard) Sensor(pin int) (Sensor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.claim(pin, "sensor"); err != nil {
		return nil, err
	}
	s := NewSimSensor(Reading{Temperature: 12, Humidity: 60})
	b.sensors[pin] = s
	return s, nil
}

// SimOutput returns the simulated output on pin, if claimed
func (b *SimBoard) SimOutput(pin int) (*SimPin, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.outputs[pin]
	return p, ok
}

// SimPWM returns the simulated PWM output on pin, if claimed
func (b *SimBoard) SimPWM(pin int) (*SimPWM, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pwms[pin]
	return p, ok
}

// SimSensor returns the simulated sensor on pin, if claimed
func (b *SimBoard) SimSensor(pin int) (*SimSensor, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sensors[pin]
	return s, ok
}

// SimPin is a simulated digital output
type SimPin struct {
	mu      sync.Mutex
	high    bool
	toggles int
}

func (p *SimPin) SetHigh() {
	p.mu.Lock()
	p.high = true
	p.mu.Unlock()
}

func (p *SimPin) SetLow() {
	p.mu.Lock()
	p.high = false
	p.mu.Unlock()
}

func (p *SimPin) Toggle() {
	p.mu.Lock()
	p.high = !p.high
	p.toggles++
	p.mu.Unlock()
}

func (p *SimPin) IsHigh() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.high
}

// Toggles returns how many times Toggle was called
func (p *SimPin) Toggles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.toggles
}

// SimPWM is a simulated PWM output
type SimPWM struct {
	mu      sync.Mutex
	enabled bool
	duty    float64
}

func (p *SimPWM) Enable() {
	p.mu.Lock()
	p.enabled = true
	p.mu.Unlock()
}

func (p *SimPWM) Disable() {
	p.mu.Lock()
	p.enabled = false
	p.mu.Unlock()
}

func (p *SimPWM) IsEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// SetDutyCycle rejects values outside [0, 1]
func (p *SimPWM) SetDutyCycle(duty float64) error {
	if math.IsNaN(duty) || duty < 0 || duty > 1 {
		return fmt.Errorf("duty cycle %v out of range [0, 1]", duty)
	}
	p.mu.Lock()
	p.duty = duty
	p.mu.Unlock()
	return nil
}

func (p *SimPWM) DutyCycle() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// Power returns the emitted power fraction: the duty cycle when enabled, else 0
func (p *SimPWM) Power() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return 0
	}
	return p.duty
}

// SimSensor is a scriptable environment sensor. Queued results are consumed
// one per read; once the queue is empty every read returns the default reading.
type SimSensor struct {
	mu      sync.Mutex
	reading Reading
	queue   []simResult
	reads   int
}

type simResult struct {
	reading Reading
	raw     *[5]byte
	err     error
}

// NewSimSensor creates a sensor that always reads r until results are queued
func NewSimSensor(r Reading) *SimSensor {
	return &SimSensor{reading: r}
}

// Set changes the default reading
func (s *SimSensor) Set(r Reading) {
	s.mu.Lock()
	s.reading = r
	s.mu.Unlock()
}

// QueueReading queues a successful read
func (s *SimSensor) QueueReading(r Reading) {
	s.mu.Lock()
	s.queue = append(s.queue, simResult{reading: r})
	s.mu.Unlock()
}

// QueueRaw queues a raw frame, returned as is by ReadRaw
func (s *SimSensor) QueueRaw(raw [5]byte) {
	s.mu.Lock()
	s.queue = append(s.queue, simResult{raw: &raw})
	s.mu.Unlock()
}

// QueueError queues a failed read
func (s *SimSensor) QueueError(err error) {
	s.mu.Lock()
	s.queue = append(s.queue, simResult{err: err})
	s.mu.Unlock()
}

// Reads returns how many times the sensor was read
func (s *SimSensor) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *SimSensor) next() simResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if len(s.queue) > 0 {
		r := s.queue[0]
		s.queue = s.queue[1:]
		return r
	}
	return simResult{reading: s.reading}
}

// Read returns the next reading. Queued raw frames are read without
// checking their checksum.
func (s *SimSensor) Read() (Reading, error) {
	r := s.next()
	if r.raw != nil {
		return Reading{Humidity: r.raw[0], Temperature: r.raw[2]}, nil
	}
	return r.reading, r.err
}

// ReadRaw returns the next result as a DHT11 frame with a valid checksum,
// or the queued raw frame unchanged
func (s *SimSensor) ReadRaw() ([5]byte, error) {
	r := s.next()
	if r.err != nil {
		return [5]byte{}, r.err
	}
	if r.raw != nil {
		return *r.raw, nil
	}
	frame := [5]byte{r.reading.Humidity, 0, r.reading.Temperature, 0}
	frame[4] = frame[0] + frame[1] + frame[2] + frame[3]
	return frame, nil
}
