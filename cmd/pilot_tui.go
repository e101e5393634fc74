// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Thermoquad/nautilus/pkg/protocol"
	"github.com/Thermoquad/nautilus/pkg/telemetry"
)

//////////////////////////////////////////////////////////////
// Key Map
//////////////////////////////////////////////////////////////

type pilotKeyMap struct {
	Forward   key.Binding
	Back      key.Binding
	Port      key.Binding
	Starboard key.Binding
	Center    key.Binding
	Stop      key.Binding
	Intake    key.Binding
	Discharge key.Binding
	Hold      key.Binding
	Light     key.Binding
	Reconnect key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func (k pilotKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Forward, k.Port, k.Stop, k.Intake, k.Discharge, k.Light, k.Help, k.Quit}
}

func (k pilotKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Forward, k.Back, k.Port, k.Starboard, k.Center, k.Stop},
		{k.Intake, k.Discharge, k.Hold},
		{k.Light, k.Reconnect, k.Help, k.Quit},
	}
}

var pilotKeys = pilotKeyMap{
	Forward:   key.NewBinding(key.WithKeys("up", "w"), key.WithHelp("↑/w", "more thrust")),
	Back:      key.NewBinding(key.WithKeys("down", "s"), key.WithHelp("↓/s", "less thrust")),
	Port:      key.NewBinding(key.WithKeys("left", "a"), key.WithHelp("←/a", "yaw port")),
	Starboard: key.NewBinding(key.WithKeys("right", "d"), key.WithHelp("→/d", "yaw starboard")),
	Center:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "center yaw")),
	Stop:      key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "all stop")),
	Intake:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "ballast intake")),
	Discharge: key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "ballast discharge")),
	Hold:      key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "ballast idle")),
	Light:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "cycle lamp")),
	Reconnect: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reconnect socket")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

// pilotModel is the Bubble Tea model for the operator console
type pilotModel struct {
	client        *commandClient
	telemetryInfo string
	step          float32

	// Commanded state, as last sent
	vector  protocol.ThrustVector
	ballast protocol.BallastMode
	light   protocol.LightMode
	sent    int
	lastErr error

	// Telemetry
	vehicle   vehicleView
	stats     *telemetry.Statistics
	connected bool

	log    eventLog
	keys   pilotKeyMap
	help   help.Model
	styles tuiStyles

	width    int
	height   int
	quitting bool
}

type pilotTickMsg time.Time

func initialPilotModel(client *commandClient, telemetryInfo string, step float32) pilotModel {
	return pilotModel{
		client:        client,
		telemetryInfo: telemetryInfo,
		step:          step,
		ballast:       protocol.BallastIdle,
		light:         protocol.LightOff,
		vehicle:       newVehicleView(),
		stats:         telemetry.NewStatistics(),
		log:           newEventLog(100),
		keys:          pilotKeys,
		help:          help.New(),
		styles:        newTUIStyles(),
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m pilotModel) Init() tea.Cmd {
	return pilotTickCmd()
}

func pilotTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return pilotTickMsg(t)
	})
}

func (m pilotModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case pilotTickMsg:
		m.stats.CalculateRates()
		return m, pilotTickCmd()

	case packetBatchMsg:
		for _, p := range msg.packets {
			m.stats.Update(p.record, p.decodeErr, p.validationErrors)
			if p.decodeErr != nil {
				m.log.add(fmt.Sprintf("DECODE ERROR: %v", p.decodeErr), true)
				continue
			}
			m.vehicle.apply(p.record)
			for _, err := range p.validationErrors {
				if err.Type != telemetry.AnomalyStaleSensor {
					m.log.add(fmt.Sprintf("%s: %s", telemetry.FormatPacketID(p.record.ID), err.Message), true)
				}
			}
		}
		if !m.connected && len(msg.packets) > 0 {
			m.connected = true
		}

	case connectionLostMsg:
		if m.connected {
			m.log.add("Telemetry lost, reconnecting...", true)
		}
		m.connected = false

	case reconnectedMsg:
		m.connected = true
		m.log.add(fmt.Sprintf("Telemetry connected (%s)", msg.connInfo), false)
	}

	return m, nil
}

func (m pilotModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Reconnect):
		m.reconnect()

	case key.Matches(msg, m.keys.Forward):
		m.setVector(m.vector.X, m.vector.Y+m.step)
	case key.Matches(msg, m.keys.Back):
		m.setVector(m.vector.X, m.vector.Y-m.step)
	case key.Matches(msg, m.keys.Port):
		m.setVector(m.vector.X+m.step, m.vector.Y)
	case key.Matches(msg, m.keys.Starboard):
		m.setVector(m.vector.X-m.step, m.vector.Y)
	case key.Matches(msg, m.keys.Center):
		m.setVector(0, m.vector.Y)
	case key.Matches(msg, m.keys.Stop):
		m.setVector(0, 0)

	case key.Matches(msg, m.keys.Intake):
		m.setBallast(protocol.BallastIntake)
	case key.Matches(msg, m.keys.Discharge):
		m.setBallast(protocol.BallastDischarge)
	case key.Matches(msg, m.keys.Hold):
		m.setBallast(protocol.BallastIdle)

	case key.Matches(msg, m.keys.Light):
		m.setLight(nextLightMode(m.light))
	}

	return m, nil
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

// stepVector applies a key step, keeping the vector in the range the
// daemon accepts and snapping float drift to the step grid
func stepVector(x, y, step float32) protocol.ThrustVector {
	snap := func(v float32) float32 {
		n := v / step
		if n < 0 {
			n -= 0.5
		} else {
			n += 0.5
		}
		return float32(int(n)) * step
	}
	x, y = snap(x), snap(y)
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	if y > 1 {
		y = 1
	} else if y < 0 {
		y = 0
	}
	return protocol.ThrustVector{X: x, Y: y}
}

func nextLightMode(mode protocol.LightMode) protocol.LightMode {
	switch mode {
	case protocol.LightOff:
		return protocol.LightOn
	case protocol.LightOn:
		return protocol.LightBlink
	default:
		return protocol.LightOff
	}
}

func (m *pilotModel) setVector(x, y float32) {
	v := stepVector(x, y, m.step)
	if m.send(protocol.NewThrustCommand(v.X, v.Y)) {
		m.vector = v
	}
}

func (m *pilotModel) setBallast(mode protocol.BallastMode) {
	if m.send(protocol.NewBallastCommand(mode)) {
		m.ballast = mode
	}
}

func (m *pilotModel) setLight(mode protocol.LightMode) {
	if m.send(protocol.NewLightCommand(mode)) {
		m.light = mode
	}
}

// send writes one frame. Frames are written synchronously so they reach
// the daemon in key order.
func (m *pilotModel) send(command protocol.Command) bool {
	if m.client == nil {
		m.log.add("Not connected to the command socket (press r)", true)
		return false
	}
	if _, err := m.client.Send(command); err != nil {
		m.lastErr = err
		m.log.add(fmt.Sprintf("Send failed: %v", err), true)
		m.client.Close()
		m.client = nil
		return false
	}
	m.sent++
	m.lastErr = nil
	m.log.add(fmt.Sprintf("Sent %s", protocol.FormatCommand(command)), false)
	return true
}

func (m *pilotModel) reconnect() {
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	client, err := dialCommandSocket()
	if err != nil {
		m.lastErr = err
		m.log.add(fmt.Sprintf("Reconnect failed: %v", err), true)
		return
	}
	m.client = client
	m.lastErr = nil
	m.log.add("Command socket connected", false)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m pilotModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	st := m.styles

	var s strings.Builder
	s.WriteString(st.title.Render("NAUTILUS - PILOT"))
	s.WriteString("\n")
	s.WriteString(st.header.Render(fmt.Sprintf("Telemetry: %s", m.telemetryInfo)))
	s.WriteString("\n\n")

	s.WriteString(st.label.Render("Commanded:"))
	s.WriteString("\n")
	s.WriteString(st.focused.Render(m.renderCommanded()))
	s.WriteString("\n\n")

	used := 16
	if !m.vehicle.empty() {
		s.WriteString(st.label.Render("Vehicle:"))
		if !m.connected {
			s.WriteString(" " + st.warning.Render("(stale)"))
		}
		s.WriteString("\n")
		readings := m.vehicle.render(st)
		s.WriteString(st.box.Render(readings))
		s.WriteString("\n\n")
		used += strings.Count(readings, "\n") + 5
	}

	s.WriteString(st.label.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(st.box.Width(m.width - 4).Render(renderEventLog(st, m.log, m.height-used)))
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

func (m pilotModel) renderCommanded() string {
	st := m.styles
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s   %s %s   %s %s\n",
		st.label.Render("Vector:"), st.value.Render(fmt.Sprintf("x=%+.2f y=%.2f", m.vector.X, m.vector.Y)),
		st.label.Render("Ballast:"), st.value.Render(m.ballast.String()),
		st.label.Render("Lamp:"), st.value.Render(m.light.String()),
	)

	link := st.value.Render("connected")
	if m.client == nil {
		link = st.err.Render("disconnected")
	}
	fmt.Fprintf(&sb, "%s %s   %s %s",
		st.label.Render("Socket:"), link,
		st.label.Render("Frames sent:"), st.value.Render(fmt.Sprintf("%d", m.sent)),
	)
	if m.lastErr != nil {
		fmt.Fprintf(&sb, "\n%s", st.err.Render(m.lastErr.Error()))
	}
	return sb.String()
}
