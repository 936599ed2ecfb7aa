// Package config loads daemon configuration from the environment.
// Command-line flags in main take precedence over environment values.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all daemon settings. Every field has an environment
// binding with a sensible default for a stock two-node rig.
type Config struct {
	Role string `env:"TREATBOT_ROLE" envDefault:"primary"`

	SerialDevice string `env:"TREATBOT_SERIAL_DEVICE" envDefault:"/dev/rfcomm0"`
	SerialBaud   int    `env:"TREATBOT_SERIAL_BAUD" envDefault:"115200"`

	Broker     string `env:"TREATBOT_MQTT_BROKER" envDefault:"tcp://localhost:1883"`
	ScoreTopic string `env:"TREATBOT_SCORE_TOPIC" envDefault:"pets/treatbot/score"`

	HTTPPort string `env:"TREATBOT_HTTP_PORT" envDefault:":8080"`

	TickMs int64 `env:"TREATBOT_TICK_MS" envDefault:"100"`

	StartHour        int           `env:"TREATBOT_START_HOUR" envDefault:"9"`
	MaxCyclesPerHour int           `env:"TREATBOT_MAX_CYCLES_PER_HOUR" envDefault:"4"`
	PeerTimeout      time.Duration `env:"TREATBOT_PEER_TIMEOUT" envDefault:"180s"`

	CloseThreshold  int           `env:"TREATBOT_CLOSE_THRESHOLD" envDefault:"8"`
	CloseHold       time.Duration `env:"TREATBOT_CLOSE_HOLD" envDefault:"10s"`
	NoSignalTimeout time.Duration `env:"TREATBOT_NO_SIGNAL_TIMEOUT" envDefault:"30s"`
	NoCloseTimeout  time.Duration `env:"TREATBOT_NO_CLOSE_TIMEOUT" envDefault:"120s"`

	Speed float64 `env:"TREATBOT_SPEED" envDefault:"15"`

	// DryRun replaces the servo driver with a no-op, for bench runs
	// without the rig attached.
	DryRun bool `env:"TREATBOT_DRY_RUN" envDefault:"false"`

	// ButtonsEnabled turns the panel button poller on. Off by default so
	// the daemon runs on boards without the buttons wired.
	ButtonsEnabled bool `env:"TREATBOT_BUTTONS" envDefault:"false"`
	PinStart       int  `env:"TREATBOT_PIN_START" envDefault:"5"`
	PinTreat       int  `env:"TREATBOT_PIN_TREAT" envDefault:"6"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	if c.Role != "primary" && c.Role != "secondary" {
		return fmt.Errorf("role must be primary or secondary, got %q", c.Role)
	}
	if c.StartHour < 0 || c.StartHour > 23 {
		return fmt.Errorf("start hour must be 0-23, got %d", c.StartHour)
	}
	if c.MaxCyclesPerHour < 1 {
		return fmt.Errorf("max cycles per hour must be at least 1, got %d", c.MaxCyclesPerHour)
	}
	if c.TickMs <= 0 {
		return fmt.Errorf("tick must be positive, got %dms", c.TickMs)
	}
	if c.SerialBaud <= 0 {
		return fmt.Errorf("serial baud must be positive, got %d", c.SerialBaud)
	}
	if c.CloseThreshold < 1 || c.CloseThreshold > 10 {
		return fmt.Errorf("close threshold must be 1-10, got %d", c.CloseThreshold)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %v", c.Speed)
	}
	return nil
}
