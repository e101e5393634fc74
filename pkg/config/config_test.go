// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/nautilus/pkg/protocol"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.System.TickInterval(); got != 50*time.Millisecond {
		t.Errorf("TickInterval = %v, want 50ms", got)
	}
	if cfg.System.SafeStopOnExit {
		t.Error("safe stop should default to off")
	}
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse(`
[system]
tick_rate = 50

[commanding]
socket = "/run/nautilus/cmd.sock"
queue_capacity = 0

[commanding.modules]
light = 7

[telemetry]
sink = "serial:/dev/ttyUSB0@115200"
respawn_backoff = "250ms"

[telemetry.telemeters]
system = false

[hardware.propulsion]
thrust_step_up = 0.1

[hardware.propulsion.gpio]
aft_pin = 5
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.System.TickRate != 50 {
		t.Errorf("tick_rate = %d", cfg.System.TickRate)
	}
	if cfg.Commanding.Socket != "/run/nautilus/cmd.sock" || cfg.Commanding.QueueCapacity != 0 {
		t.Errorf("commanding = %+v", cfg.Commanding)
	}
	if cfg.Telemetry.RespawnBackoff.Duration != 250*time.Millisecond {
		t.Errorf("respawn_backoff = %v", cfg.Telemetry.RespawnBackoff)
	}
	if cfg.Telemetry.Telemeters.System || !cfg.Telemetry.Telemeters.Ballast {
		t.Errorf("telemeters = %+v", cfg.Telemetry.Telemeters)
	}
	if cfg.Hardware.Propulsion.ThrustStepUp != 0.1 || cfg.Hardware.Propulsion.ThrustStepDown != 0.25 {
		t.Errorf("steps = %v/%v", cfg.Hardware.Propulsion.ThrustStepUp, cfg.Hardware.Propulsion.ThrustStepDown)
	}
	if cfg.Hardware.Propulsion.GPIO.AftPin != 5 || cfg.Hardware.Propulsion.GPIO.PortPin != 13 {
		t.Errorf("propulsion gpio = %+v", cfg.Hardware.Propulsion.GPIO)
	}

	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if id, _ := reg.ID(protocol.ModuleLight); id != 7 {
		t.Errorf("light id = %d, want 7", id)
	}
	if id, _ := reg.ID(protocol.ModuleBallast); id != 0 {
		t.Errorf("ballast id = %d, want 0", id)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"tick rate", "[system]\ntick_rate = 0", "tick_rate"},
		{"step", "[hardware.propulsion]\nthrust_step_down = 1.5", "thrust_step_down"},
		{"unknown key", "[system]\ntick_rat = 10", "unknown keys"},
		{"unknown module", "[commanding.modules]\nrudder = 3", "rudder"},
		{"duplicate id", "[commanding.modules]\nlight = 0", "assigned to both"},
		{"log level", "[logging]\nlevel = \"loud\"", "logging.level"},
		{"bad duration", "[telemetry]\nrespawn_backoff = \"soon\"", "soon"},
		{"board", "[hardware]\nboard = \"rpi\"", "hardware.board"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.toml)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nautilus.toml")
	if err := os.WriteFile(path, []byte("[system]\ntick_rate = 40\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvCommandSocket, "/tmp/override.sock")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.System.TickRate != 40 {
		t.Errorf("tick_rate = %d, want 40 from file", cfg.System.TickRate)
	}
	if cfg.Commanding.Socket != "/tmp/override.sock" {
		t.Errorf("socket = %q", cfg.Commanding.Socket)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}

	t.Setenv(EnvTickRate, "100")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.System.TickRate != 100 {
		t.Errorf("tick_rate = %d, env should win over file", cfg.System.TickRate)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
