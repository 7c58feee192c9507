// Package config loads the bridge tunables from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noorbagus/asdp-boat-sub002/wire"
)

// PaddleConfig identifies the BLE peripheral.
type PaddleConfig struct {
	LocalName   string `yaml:"local_name"`
	ServiceUUID string `yaml:"service_uuid"`
	CharUUID    string `yaml:"char_uuid"`
}

// DetectionConfig holds the stroke-detection tunables. Angles in degrees,
// durations in milliseconds.
type DetectionConfig struct {
	LeftThresholdDeg    float64 `yaml:"left_threshold_deg"`
	RightThresholdDeg   float64 `yaml:"right_threshold_deg"`
	NeutralThresholdDeg float64 `yaml:"neutral_threshold_deg"`
	DebounceMs          int     `yaml:"debounce_ms"`
	AxisNumerator       int     `yaml:"axis_numerator"`
	AxisDenominator     int     `yaml:"axis_denominator"`
}

// LinkConfig holds the pump and liveness cadence.
type LinkConfig struct {
	TickMs int `yaml:"tick_ms"` // pump tick period
	PollMs int `yaml:"poll_ms"` // staleness poll period
}

// TelemetryConfig configures the dashboard and the optional MQTT bridge.
type TelemetryConfig struct {
	HTTPAddr   string `yaml:"http_addr"`
	MQTTBroker string `yaml:"mqtt_broker"` // empty disables MQTT
	MQTTTopic  string `yaml:"mqtt_topic"`
	MQTTClient string `yaml:"mqtt_client_id"`
}

// Config is the top-level structure for bridge.yaml.
type Config struct {
	Paddle    PaddleConfig    `yaml:"paddle"`
	Detection DetectionConfig `yaml:"detection"`
	Link      LinkConfig      `yaml:"link"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns the tuning used with the reference paddle.
func Default() *Config {
	return &Config{
		Paddle: PaddleConfig{
			LocalName: "ASDP-Paddle",
		},
		Detection: DetectionConfig{
			LeftThresholdDeg:    -30,
			RightThresholdDeg:   30,
			NeutralThresholdDeg: 15,
			DebounceMs:          300,
			AxisNumerator:       1,
			AxisDenominator:     2,
		},
		Link: LinkConfig{
			TickMs: 20,
			PollMs: 2000,
		},
		Telemetry: TelemetryConfig{
			HTTPAddr:   ":8080",
			MQTTTopic:  "paddle/events",
			MQTTClient: "paddle-bridge",
		},
	}
}

// Load reads and parses a YAML config file. Fields left at zero fall back
// to the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Paddle.LocalName == "" {
		c.Paddle.LocalName = d.Paddle.LocalName
	}
	if c.Detection.DebounceMs <= 0 {
		c.Detection.DebounceMs = d.Detection.DebounceMs
	}
	// Thresholds have no zero-value fallback: unmarshaling over Default()
	// already keeps the defaults for omitted fields, and an explicit 0 is a
	// legitimate (if aggressive) tuning.
	if c.Link.TickMs <= 0 {
		c.Link.TickMs = d.Link.TickMs
	}
	if c.Link.PollMs <= 0 {
		c.Link.PollMs = d.Link.PollMs
	}
	if c.Telemetry.HTTPAddr == "" {
		c.Telemetry.HTTPAddr = d.Telemetry.HTTPAddr
	}
	if c.Telemetry.MQTTTopic == "" {
		c.Telemetry.MQTTTopic = d.Telemetry.MQTTTopic
	}
	if c.Telemetry.MQTTClient == "" {
		c.Telemetry.MQTTClient = d.Telemetry.MQTTClient
	}
}

// Debounce returns the debounce interval as a duration.
func (c *DetectionConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// AxisMap returns the configured triple-to-angle mapping.
func (c *DetectionConfig) AxisMap() wire.AxisMap {
	return wire.AxisMap{Numerator: c.AxisNumerator, Denominator: c.AxisDenominator}
}

// Tick returns the pump tick period.
func (c *LinkConfig) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// Poll returns the staleness poll period.
func (c *LinkConfig) Poll() time.Duration {
	return time.Duration(c.PollMs) * time.Millisecond
}
