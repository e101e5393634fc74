// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

// Event log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// eventLog keeps the most recent entries
type eventLog struct {
	entries    []errorLogEntry
	maxEntries int
}

func newEventLog(maxEntries int) eventLog {
	return eventLog{entries: make([]errorLogEntry, 0), maxEntries: maxEntries}
}

func (l *eventLog) add(message string, isError bool) {
	l.entries = append(l.entries, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(l.entries) > l.maxEntries {
		l.entries = l.entries[len(l.entries)-l.maxEntries:]
	}
}

// tuiStyles holds the shared dashboard styles
type tuiStyles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	err     lipgloss.Style
	warning lipgloss.Style
	box     lipgloss.Style
	focused lipgloss.Style
}

func newTUIStyles() tuiStyles {
	return tuiStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		err: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		focused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1),
	}
}

// vehicleView holds the latest reading of each telemetry packet
type vehicleView struct {
	environment *telemetry.EnvironmentSnapshot
	ballast     *telemetry.BallastSnapshot
	propulsion  *telemetry.PropulsionReport
	system      *telemetry.Timing
	tick        uint32
	lastSeen    time.Time
	bar         progress.Model
}

func newVehicleView() vehicleView {
	return vehicleView{
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(24)),
	}
}

// apply stores a decoded record
func (v *vehicleView) apply(r telemetry.Record) {
	switch {
	case r.Environment != nil:
		v.environment = r.Environment
	case r.Ballast != nil:
		v.ballast = r.Ballast
	case r.Propulsion != nil:
		v.propulsion = r.Propulsion
	case r.System != nil:
		v.system = r.System
	default:
		return
	}
	v.tick = r.Tick
	v.lastSeen = time.Now()
}

func (v vehicleView) empty() bool {
	return v.environment == nil && v.ballast == nil && v.propulsion == nil && v.system == nil
}

// duty renders a percentage as a bar with its target
func (v vehicleView) duty(st tuiStyles, name string, duty, target uint8) string {
	return fmt.Sprintf("%s %s %s",
		st.label.Render(fmt.Sprintf("%-5s", name)),
		v.bar.ViewAs(float64(duty)/100),
		st.header.Render(fmt.Sprintf("%3d%% (target %d%%)", duty, target)),
	)
}

func (v vehicleView) render(st tuiStyles) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s   %s %s\n",
		st.label.Render("Tick:"), st.value.Render(fmt.Sprintf("%d", v.tick)),
		st.label.Render("Last packet:"), st.value.Render(v.lastSeen.Format("15:04:05.000")),
	)

	if e := v.environment; e != nil {
		reading := fmt.Sprintf("%d°C  %d%% RH", e.Temperature, e.Humidity)
		if e.Stale {
			fmt.Fprintf(&sb, "%s %s %s\n", st.label.Render("Environment:"), st.warning.Render(reading), st.warning.Render("(stale)"))
		} else {
			fmt.Fprintf(&sb, "%s %s\n", st.label.Render("Environment:"), st.value.Render(reading))
		}
	}

	if b := v.ballast; b != nil {
		state := telemetry.FormatBallastState(b.State)
		stateStyle := st.value
		if b.State != b.Target {
			stateStyle = st.warning
		}
		fmt.Fprintf(&sb, "%s %s   %s %s\n",
			st.label.Render("Ballast:"), stateStyle.Render(state),
			st.label.Render("Target:"), st.value.Render(telemetry.FormatBallastState(b.Target)),
		)
	}

	if p := v.propulsion; p != nil {
		fmt.Fprintf(&sb, "%s %s   %s %s\n",
			st.label.Render("Vector:"), st.value.Render(fmt.Sprintf("x=%+.3f y=%+.3f", p.X, p.Y)),
			st.label.Render("Thruster:"), st.value.Render(telemetry.FormatThruster(p.ActiveThruster)),
		)
		sb.WriteString(v.duty(st, "Aft", p.AftDuty, p.AftTarget))
		sb.WriteString("\n")
		sb.WriteString(v.duty(st, "Yaw", p.YawDuty, p.YawTarget))
		sb.WriteString("\n")
	}

	if s := v.system; s != nil {
		fmt.Fprintf(&sb, "%s %s",
			st.label.Render("Timing:"),
			st.value.Render(fmt.Sprintf("run %dµs  idle %dµs  total %dµs",
				s.Run.Microseconds(), s.Idle.Microseconds(), s.Total.Microseconds())),
		)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// renderEventLog renders the newest entries that fit in height lines
func renderEventLog(st tuiStyles, log eventLog, height int) string {
	if height < 5 {
		height = 5
	}

	var sb strings.Builder
	startIdx := len(log.entries) - height
	if startIdx < 0 {
		startIdx = 0
	}

	if len(log.entries) == 0 {
		sb.WriteString(st.header.Render("  (no events yet)"))
		return sb.String()
	}
	for i := startIdx; i < len(log.entries); i++ {
		entry := log.entries[i]
		timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
		if entry.isError {
			fmt.Fprintf(&sb, "%s %s\n", st.header.Render(timestamp), st.err.Render("✗ "+entry.message))
		} else {
			fmt.Fprintf(&sb, "%s %s\n", st.header.Render(timestamp), st.warning.Render("ℹ "+entry.message))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// renderStatistics renders the packet statistics box content
func renderStatistics(st tuiStyles, stats *telemetry.Statistics) string {
	var validPercent, errorPercent float64
	errors := stats.UnknownPackets + stats.DecodeErrors + stats.AnomalousValues
	if stats.TotalPackets > 0 {
		validPercent = float64(stats.ValidPackets) * 100.0 / float64(stats.TotalPackets)
		errorPercent = float64(errors) * 100.0 / float64(stats.TotalPackets)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s   %s %s   %s %s\n",
		st.label.Render("Total:"), st.value.Render(fmt.Sprintf("%d", stats.TotalPackets)),
		st.label.Render("Valid:"), st.value.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidPackets, validPercent)),
		st.label.Render("Errors:"), st.err.Render(fmt.Sprintf("%d (%.1f%%)", errors, errorPercent)),
	)

	if stats.AnomalousValues > 0 {
		fmt.Fprintf(&sb, "%s %s (%s: %d, %s: %d, %s: %d, %s: %d, %s: %d)\n",
			st.label.Render("Anomalous:"), st.warning.Render(fmt.Sprintf("%d", stats.AnomalousValues)),
			st.header.Render("state"), stats.InvalidState,
			st.header.Render("duty"), stats.InvalidDuty,
			st.header.Render("vector"), stats.InvalidVector,
			st.header.Render("timing"), stats.TimingErrors,
			st.header.Render("tick"), stats.TickRegressions,
		)
	}
	if stats.StaleReadings > 0 {
		fmt.Fprintf(&sb, "%s %s\n", st.label.Render("Stale readings:"), st.warning.Render(fmt.Sprintf("%d", stats.StaleReadings)))
	}

	rateStyle := st.value
	if stats.ErrorRate > 0 {
		rateStyle = st.err
	}
	fmt.Fprintf(&sb, "%s %s   %s %s",
		st.label.Render("Packet Rate:"), st.value.Render(fmt.Sprintf("%.1f pkts/s", stats.PacketRate)),
		st.label.Render("Error Rate:"), rateStyle.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate)),
	)
	return sb.String()
}
