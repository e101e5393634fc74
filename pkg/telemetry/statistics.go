// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks packet statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets    uint64
	ValidPackets    uint64
	UnknownPackets  uint64
	DecodeErrors    uint64
	AnomalousValues uint64
	InvalidState    uint64
	InvalidDuty     uint64
	InvalidVector   uint64
	StaleReadings   uint64
	TimingErrors    uint64
	TickRegressions uint64

	// Per packet id
	ByID map[uint8]uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		ByID:           make(map[uint8]uint64),
	}
}

// Update updates statistics based on a record and its errors
func (s *Statistics) Update(r Record, decodeErr error, validationErrors []ValidationError) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrUnknownPacket) {
			s.UnknownPackets++
		} else {
			s.DecodeErrors++
		}
		return
	}
	s.ByID[r.ID]++

	if len(validationErrors) == 0 {
		s.ValidPackets++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyUnknownPacket:
			s.UnknownPackets++
		case AnomalyInvalidState:
			s.InvalidState++
			s.AnomalousValues++
		case AnomalyInvalidDuty, AnomalyInvalidThruster:
			s.InvalidDuty++
			s.AnomalousValues++
		case AnomalyInvalidVector:
			s.InvalidVector++
			s.AnomalousValues++
		case AnomalyStaleSensor:
			s.StaleReadings++
		case AnomalyTiming:
			s.TimingErrors++
			s.AnomalousValues++
		case AnomalyTickRegression:
			s.TickRegressions++
			s.AnomalousValues++
		}
	}
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

func (s *Statistics) errorCount() uint64 {
	return s.UnknownPackets + s.DecodeErrors + s.AnomalousValues
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	pct := func(n uint64) float64 {
		if s.TotalPackets == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalPackets)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Packets:   %8d\n", s.TotalPackets)
	result += fmt.Sprintf("Valid Packets:   %8d (%.1f%%)\n", s.ValidPackets, pct(s.ValidPackets))

	for _, id := range []uint8{IDEnvironment, IDBallast, IDPropulsion, IDSystem} {
		if n := s.ByID[id]; n > 0 {
			result += fmt.Sprintf("  %-12s   %8d\n", FormatPacketID(id)+":", n)
		}
	}

	if s.UnknownPackets > 0 {
		result += fmt.Sprintf("Unknown Packets: %8d (%.1f%%)\n", s.UnknownPackets, pct(s.UnknownPackets))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, pct(s.DecodeErrors))
	}
	if s.StaleReadings > 0 {
		result += fmt.Sprintf("Stale Readings:  %8d (%.1f%%)\n", s.StaleReadings, pct(s.StaleReadings))
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d (%.1f%%)\n", s.AnomalousValues, pct(s.AnomalousValues))
		if s.InvalidState > 0 {
			result += fmt.Sprintf("  Invalid State:    %5d\n", s.InvalidState)
		}
		if s.InvalidDuty > 0 {
			result += fmt.Sprintf("  Invalid Duty:     %5d\n", s.InvalidDuty)
		}
		if s.InvalidVector > 0 {
			result += fmt.Sprintf("  Invalid Vector:   %5d\n", s.InvalidVector)
		}
		if s.TimingErrors > 0 {
			result += fmt.Sprintf("  Timing Mismatch:  %5d\n", s.TimingErrors)
		}
		if s.TickRegressions > 0 {
			result += fmt.Sprintf("  Tick Regression:  %5d\n", s.TickRegressions)
		}
	}

	result += fmt.Sprintf("Packet Rate:     %8.1f pkts/sec\n", s.PacketRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
