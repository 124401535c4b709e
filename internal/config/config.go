// Package config loads and validates the gripperd configuration.
//
// Settings come from an optional YAML file, with a small set of
// environment variable overrides for deployment. Required values that
// are missing or malformed are startup-fatal: gripperd refuses to run
// with a partial configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults match the original gripper node parameters.
const (
	DefaultWidthTolerance = 0.01
	DefaultSpeed          = 0.1
	DefaultGraspEpsilon   = 0.005
	DefaultPublishRate    = 30.0
	DefaultPollRate       = 10.0
	DefaultHTTPAddr       = ":8080"
	DefaultLogLevel       = "info"
)

// Config holds all recognized gripperd options.
type Config struct {
	// DeviceAddress is the gripper daemon address (host or host:port).
	// Required.
	DeviceAddress string `yaml:"device_address"`

	// WidthTolerance is the acceptance band for Move commands.
	WidthTolerance float64 `yaml:"width_tolerance"`

	// DefaultSpeed is used by the generic gripper command, which
	// carries no speed of its own.
	DefaultSpeed float64 `yaml:"default_speed"`

	// GraspEpsilon is the inner/outer tolerance applied when the
	// generic gripper command is mapped onto a grasp.
	GraspEpsilon float64 `yaml:"grasp_epsilon"`

	// PublishRate is the telemetry publish frequency in Hz.
	PublishRate float64 `yaml:"publish_rate"`

	// PollRate is the device state poll frequency in Hz.
	PollRate float64 `yaml:"poll_rate"`

	// JointNames are the two finger joint names reported in telemetry.
	// Exactly two are required.
	JointNames []string `yaml:"joint_names"`

	// HTTPAddr is the listen address of the command API.
	HTTPAddr string `yaml:"http_addr"`

	// MQTTAddr is the listen address of the embedded MQTT broker.
	// Empty disables the broker.
	MQTTAddr string `yaml:"mqtt_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration defaults. DeviceAddress and
// JointNames have no defaults and must be provided.
func Default() Config {
	return Config{
		WidthTolerance: DefaultWidthTolerance,
		DefaultSpeed:   DefaultSpeed,
		GraspEpsilon:   DefaultGraspEpsilon,
		PublishRate:    DefaultPublishRate,
		PollRate:       DefaultPollRate,
		HTTPAddr:       DefaultHTTPAddr,
		LogLevel:       DefaultLogLevel,
	}
}

// Load reads the YAML file at path (if path is non-empty), applies
// environment overrides, and returns the merged configuration.
// The result is not validated; call Validate before use.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the configuration.
func (c *Config) applyEnv() {
	if v := os.Getenv("GRIPPER_ADDR"); v != "" {
		c.DeviceAddress = v
	}
	if v := os.Getenv("GRIPPER_HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv("GRIPPER_MQTT_ADDR"); v != "" {
		c.MQTTAddr = v
	}
	if v := os.Getenv("GRIPPER_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the configuration for startup-fatal problems.
func (c Config) Validate() error {
	if c.DeviceAddress == "" {
		return fmt.Errorf("device_address is required")
	}
	if len(c.JointNames) != 2 {
		return fmt.Errorf("joint_names: need exactly 2 names, got %d", len(c.JointNames))
	}
	for i, name := range c.JointNames {
		if name == "" {
			return fmt.Errorf("joint_names[%d] is empty", i)
		}
	}
	if c.WidthTolerance <= 0 {
		return fmt.Errorf("width_tolerance must be > 0, got %v", c.WidthTolerance)
	}
	if c.DefaultSpeed <= 0 {
		return fmt.Errorf("default_speed must be > 0, got %v", c.DefaultSpeed)
	}
	if c.GraspEpsilon < 0 {
		return fmt.Errorf("grasp_epsilon must be >= 0, got %v", c.GraspEpsilon)
	}
	if c.PublishRate <= 0 {
		return fmt.Errorf("publish_rate must be > 0, got %v", c.PublishRate)
	}
	if c.PollRate <= 0 {
		return fmt.Errorf("poll_rate must be > 0, got %v", c.PollRate)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	return nil
}

// PollInterval returns the poll period derived from PollRate.
func (c Config) PollInterval() time.Duration {
	return rateToInterval(c.PollRate)
}

// PublishInterval returns the publish period derived from PublishRate.
func (c Config) PublishInterval() time.Duration {
	return rateToInterval(c.PublishRate)
}

func rateToInterval(hz float64) time.Duration {
	return time.Duration(float64(time.Second) / hz)
}
