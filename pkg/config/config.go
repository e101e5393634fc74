// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the daemon configuration.
//
// Values are resolved in order: built-in defaults, the TOML file, then
// NAUTILUS_* environment overrides, and the result is validated. The
// configuration is read once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables consulted by Load
const (
	EnvConfig        = "NAUTILUS_CONFIG"
	EnvTickRate      = "NAUTILUS_TICK_RATE"
	EnvCommandSocket = "NAUTILUS_COMMAND_SOCKET"
	EnvTelemetrySink = "NAUTILUS_TELEMETRY_SINK"
	EnvLogLevel      = "NAUTILUS_LOG_LEVEL"
)

// Config is the complete daemon configuration
type Config struct {
	System     SystemConfig     `toml:"system"`
	Commanding CommandingConfig `toml:"commanding"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Hardware   HardwareConfig   `toml:"hardware"`
	Logging    LoggingConfig    `toml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// SystemConfig holds tick loop settings
type SystemConfig struct {
	TickRate       int  `toml:"tick_rate"` // Hz
	SafeStopOnExit bool `toml:"safe_stop_on_exit"`
}

// TickInterval returns the duration of one tick
func (s SystemConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}

// CommandingConfig holds command socket settings
type CommandingConfig struct {
	Socket             string           `toml:"socket"`
	QueueCapacity      int              `toml:"queue_capacity"` // 0 = unbounded
	MaxFramesPerSecond float64          `toml:"max_frames_per_second"`
	Burst              int              `toml:"burst"`
	Modules            map[string]uint8 `toml:"modules"`
}

// TelemetryConfig holds telemetry transport settings
type TelemetryConfig struct {
	Sink              string           `toml:"sink"`
	ChannelCapacity   int              `toml:"channel_capacity"`
	RespawnBackoff    Duration         `toml:"respawn_backoff"`
	MaxRespawnBackoff Duration         `toml:"max_respawn_backoff"`
	Telemeters        TelemetersConfig `toml:"telemeters"`
}

// TelemetersConfig enables individual telemetry packets
type TelemetersConfig struct {
	Environment bool `toml:"environment"`
	Ballast     bool `toml:"ballast"`
	Propulsion  bool `toml:"propulsion"`
	System      bool `toml:"system"`
}

// HardwareConfig holds pin assignments and actuator tuning
type HardwareConfig struct {
	Board      string           `toml:"board"`
	PinCount   int              `toml:"pin_count"`
	Ballast    BallastConfig    `toml:"ballast"`
	Light      LightConfig      `toml:"light"`
	Propulsion PropulsionConfig `toml:"propulsion"`
	DHT11      DHT11Config      `toml:"dht11"`
}

// BallastConfig holds the ballast valve pins
type BallastConfig struct {
	GPIO struct {
		IntakePin    int `toml:"intake_pin"`
		DischargePin int `toml:"discharge_pin"`
	} `toml:"gpio"`
}

// LightConfig holds the lamp pin and blink cadence
type LightConfig struct {
	BlinkInterval uint32 `toml:"blink_interval"` // ticks
	GPIO          struct {
		LightPin int `toml:"light_pin"`
	} `toml:"gpio"`
}

// PropulsionConfig holds thruster pins and ramp limits
type PropulsionConfig struct {
	ThrustStepUp   float64 `toml:"thrust_step_up"`
	ThrustStepDown float64 `toml:"thrust_step_down"`
	GPIO           struct {
		AftPin       int `toml:"aft_pin"`
		PortPin      int `toml:"port_pin"`
		StarboardPin int `toml:"starboard_pin"`
		DirectionPin int `toml:"direction_pin"`
	} `toml:"gpio"`
}

// DHT11Config holds the environment sensor pin and cadence
type DHT11Config struct {
	SampleInterval uint32 `toml:"sample_interval"` // ticks
	GPIO           struct {
		DataPin int `toml:"data_pin"`
	} `toml:"gpio"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // text or json
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Stderr     bool   `toml:"stderr"`
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Listen string `toml:"listen"` // empty disables the endpoint
	Path   string `toml:"path"`
}

// Duration is a time.Duration decoded from a TOML string such as "1s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{
		System: SystemConfig{
			TickRate:       20,
			SafeStopOnExit: false,
		},
		Commanding: CommandingConfig{
			Socket:             "/tmp/nautilus/commanding.socket",
			QueueCapacity:      256,
			MaxFramesPerSecond: 200,
			Burst:              32,
			Modules: map[string]uint8{
				"ballast":    0x0,
				"propulsion": 0x1,
				"light":      0x2,
			},
		},
		Telemetry: TelemetryConfig{
			Sink:              "fifo:/tmp/nautilus/telemetry.pipe",
			ChannelCapacity:   64,
			RespawnBackoff:    Duration{time.Second},
			MaxRespawnBackoff: Duration{30 * time.Second},
			Telemeters: TelemetersConfig{
				Environment: true,
				Ballast:     true,
				Propulsion:  true,
				System:      true,
			},
		},
		Hardware: HardwareConfig{
			Board:    "sim",
			PinCount: 28,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 14,
			Stderr:     true,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}

	cfg.Hardware.Ballast.GPIO.IntakePin = 17
	cfg.Hardware.Ballast.GPIO.DischargePin = 27
	cfg.Hardware.Light.BlinkInterval = 10
	cfg.Hardware.Light.GPIO.LightPin = 22
	cfg.Hardware.Propulsion.ThrustStepUp = 0.05
	cfg.Hardware.Propulsion.ThrustStepDown = 0.25
	cfg.Hardware.Propulsion.GPIO.AftPin = 12
	cfg.Hardware.Propulsion.GPIO.PortPin = 13
	cfg.Hardware.Propulsion.GPIO.StarboardPin = 18
	cfg.Hardware.Propulsion.GPIO.DirectionPin = 23
	cfg.Hardware.DHT11.SampleInterval = 10
	cfg.Hardware.DHT11.GPIO.DataPin = 4

	return cfg
}

// Load builds the configuration from defaults, the file at path (or
// $NAUTILUS_CONFIG when path is empty) and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile decodes a TOML file over cfg. Unknown keys are an error so
// that typos do not silently fall back to defaults.
func loadFromFile(cfg *Config, filename string) error {
	md, err := toml.DecodeFile(filename, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys: %v", undecoded)
	}
	return nil
}

// Parse decodes TOML text over the defaults and validates the result.
// Environment overrides are not applied.
func Parse(data string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys: %v", undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvTickRate); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTickRate, err)
		}
		cfg.System.TickRate = rate
	}
	if v := os.Getenv(EnvCommandSocket); v != "" {
		cfg.Commanding.Socket = v
	}
	if v := os.Getenv(EnvTelemetrySink); v != "" {
		cfg.Telemetry.Sink = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}
