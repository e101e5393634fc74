// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sensor samples the environment sensor on the tick cadence and
// keeps the last known good reading with a staleness flag.
package sensor

import (
	"errors"

	"github.com/hashicorp/go-hclog"

	"github.com/Thermoquad/nautilus/pkg/hal"
)

// Sensor read failures. All are non-fatal.
var (
	ErrHandshake    = errors.New("sensor handshake timeout")
	ErrTransmission = errors.New("sensor data transmission timeout")
	ErrChecksum     = errors.New("sensor checksum mismatch")
)

// DefaultSampleInterval is the number of ticks between reads
const DefaultSampleInterval = 10

// DecodeDHT11 converts the five raw bytes clocked out of a DHT11 into a
// reading. Byte order is humidity integral, humidity decimal, temperature
// integral, temperature decimal, checksum.
func DecodeDHT11(raw [5]byte) (hal.Reading, error) {
	sum := raw[0] + raw[1] + raw[2] + raw[3]
	if sum != raw[4] {
		return hal.Reading{}, ErrChecksum
	}
	return hal.Reading{Humidity: raw[0], Temperature: raw[2]}, nil
}

// Sampler reads a hal.Sensor every interval ticks. Sensors that expose raw
// frames are decoded with DecodeDHT11.
type Sampler struct {
	sensor     hal.Sensor
	interval   uint32
	logger     hclog.Logger
	reading    hal.Reading
	stale      bool
	successive uint32
	total      uint32
	lastErr    error
}

// NewSampler creates a sampler. The reading is stale until the first
// successful read.
func NewSampler(s hal.Sensor, interval uint32, logger hclog.Logger) *Sampler {
	if interval == 0 {
		interval = DefaultSampleInterval
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Sampler{sensor: s, interval: interval, logger: logger, stale: true}
}

// Tick reads the sensor when tick is a multiple of the sample interval.
// Returns true if a read was attempted.
func (s *Sampler) Tick(tick uint32) bool {
	if tick%s.interval != 0 {
		return false
	}

	r, err := s.read()
	if err != nil {
		s.stale = true
		s.successive++
		s.total++
		s.lastErr = err
		s.logger.Debug("sensor read failed", "error", err, "successive", s.successive, "total", s.total)
		return true
	}

	if s.successive > 0 {
		s.logger.Debug("sensor recovered", "after_failures", s.successive)
	}
	s.reading = r
	s.stale = false
	s.successive = 0
	s.lastErr = nil
	return true
}

func (s *Sampler) read() (hal.Reading, error) {
	raw, ok := s.sensor.(hal.RawSensor)
	if !ok {
		return s.sensor.Read()
	}
	frame, err := raw.ReadRaw()
	if err != nil {
		return hal.Reading{}, err
	}
	return DecodeDHT11(frame)
}

// Reading returns the last known good sample
func (s *Sampler) Reading() hal.Reading { return s.reading }

// Temperature returns the last known temperature in degrees C
func (s *Sampler) Temperature() uint8 { return s.reading.Temperature }

// Humidity returns the last known relative humidity in percent
func (s *Sampler) Humidity() uint8 { return s.reading.Humidity }

// Stale reports whether the last read failed or no read has succeeded yet
func (s *Sampler) Stale() bool { return s.stale }

// SuccessiveFailures returns the number of failed reads since the last success
func (s *Sampler) SuccessiveFailures() uint32 { return s.successive }

// TotalFailures returns the number of failed reads since start
func (s *Sampler) TotalFailures() uint32 { return s.total }

// LastError returns the error of the most recent read, or nil
func (s *Sampler) LastError() error { return s.lastErr }
