// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

// monitorModel is the Bubble Tea model for the telemetry dashboard
type monitorModel struct {
	connInfo  string
	filter    map[uint8]bool
	stats     *telemetry.Statistics
	log       eventLog
	vehicle   vehicleView
	styles    tuiStyles
	connected bool
	width     int
	height    int
	quitting  bool
}

type monitorTickMsg time.Time

func initialMonitorModel(connInfo string, filter map[uint8]bool) monitorModel {
	return monitorModel{
		connInfo:  connInfo,
		filter:    filter,
		stats:     telemetry.NewStatistics(),
		log:       newEventLog(100),
		vehicle:   newVehicleView(),
		styles:    newTUIStyles(),
		connected: true,
		width:     80,
		height:    24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.log.add("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.stats.CalculateRates()
		return m, monitorTickCmd()

	case packetBatchMsg:
		for _, p := range msg.packets {
			m.processPacket(p)
		}

	case connectionLostMsg:
		m.connected = false
		if msg.err != nil && !isStreamClosed(msg.err) {
			m.log.add(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.log.add("Connection lost, reconnecting...", true)
		}

	case reconnectedMsg:
		m.connected = true
		m.log.add(fmt.Sprintf("Reconnected (%s)", msg.connInfo), false)
	}

	return m, nil
}

// processPacket updates statistics, readings and the event log
func (m *monitorModel) processPacket(msg packetMsg) {
	m.stats.Update(msg.record, msg.decodeErr, msg.validationErrors)

	if msg.decodeErr != nil {
		m.log.add(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
		return
	}
	if m.filter != nil && !m.filter[msg.record.ID] {
		return
	}

	m.vehicle.apply(msg.record)

	name := telemetry.FormatPacketID(msg.record.ID)
	for _, err := range msg.validationErrors {
		isError := err.Type != telemetry.AnomalyStaleSensor
		m.log.add(fmt.Sprintf("%s: %s", name, err.Message), isError)
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	st := m.styles

	var s strings.Builder
	s.WriteString(st.title.Render("NAUTILUS - TELEMETRY MONITOR"))
	s.WriteString("\n")
	s.WriteString(st.header.Render(fmt.Sprintf("%s | Press 'r' to reset statistics, 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	if m.connected {
		s.WriteString(st.value.Render("✓ Connected"))
	} else {
		s.WriteString(st.warning.Render("⏳ Waiting for the daemon..."))
	}
	s.WriteString("\n\n")

	s.WriteString(st.box.Render(renderStatistics(st, m.stats)))
	s.WriteString("\n\n")

	// Readings are shown once the first packet arrives
	used := 12
	if !m.vehicle.empty() {
		s.WriteString(st.label.Render("Vehicle:"))
		s.WriteString("\n")
		readings := m.vehicle.render(st)
		s.WriteString(st.box.Render(readings))
		s.WriteString("\n\n")
		used += strings.Count(readings, "\n") + 5
	}

	s.WriteString(st.label.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(st.box.Width(m.width - 4).Render(renderEventLog(st, m.log, m.height-used)))

	return s.String()
}
