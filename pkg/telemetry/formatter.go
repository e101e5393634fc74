// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"strings"
)

var ballastStateNames = []string{"IDLE", "INTAKE", "DISCHARGE", "TRANSITION"}

var thrusterNames = []string{"NONE", "PORT", "STARBOARD"}

// FormatBallastState returns the name of a wire ballast state
func FormatBallastState(s uint8) string {
	if int(s) < len(ballastStateNames) {
		return ballastStateNames[s]
	}
	return fmt.Sprintf("UNKNOWN(%d)", s)
}

// FormatThruster returns the name of a wire thruster selection
func FormatThruster(t uint8) string {
	if int(t) < len(thrusterNames) {
		return thrusterNames[t]
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

// FormatRecord renders a decoded record on one line
func FormatRecord(r Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%08d] %-11s ", r.Tick, FormatPacketID(r.ID))

	switch {
	case r.Environment != nil:
		e := r.Environment
		fmt.Fprintf(&sb, "temp=%d°C humidity=%d%%", e.Temperature, e.Humidity)
		if e.Stale {
			sb.WriteString(" STALE")
		}
	case r.Ballast != nil:
		fmt.Fprintf(&sb, "state=%s target=%s",
			FormatBallastState(r.Ballast.State), FormatBallastState(r.Ballast.Target))
	case r.Propulsion != nil:
		p := r.Propulsion
		fmt.Fprintf(&sb, "x=%.3f y=%.3f aft=%d%%/%d%% yaw=%d%%/%d%% thruster=%s",
			p.X, p.Y, p.AftDuty, p.AftTarget, p.YawDuty, p.YawTarget, FormatThruster(p.ActiveThruster))
	case r.System != nil:
		s := r.System
		fmt.Fprintf(&sb, "run=%dµs idle=%dµs total=%dµs",
			s.Run.Microseconds(), s.Idle.Microseconds(), s.Total.Microseconds())
	default:
		sb.WriteString("<no payload>")
	}
	return sb.String()
}

// FormatPacket renders raw packet bytes as hex
func FormatPacket(p Packet) string {
	var sb strings.Builder
	for i, b := range p {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
