package config

import (
	"os"
	"time"

	runloop "github.com/joeycumines/go-runloop"
	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

type Config struct {
	RunMode     RunMode       `yaml:"run_mode"`
	Suspension  string        `yaml:"suspension"`
	MinimumTick time.Duration `yaml:"minimum_tick"`
	Log         Log           `yaml:"log"`
	Metrics     Metrics       `yaml:"metrics"`
	Demo        Demo          `yaml:"demo"`
}

type RunMode struct {
	Mode string        `yaml:"mode"`
	Wait time.Duration `yaml:"wait"`
}

type Log struct {
	Level string `yaml:"level"`
}

type Metrics struct {
	Listen string `yaml:"listen"`
}

// Demo configures the counter application run by the CLI.
type Demo struct {
	MaxTicks int           `yaml:"max_ticks"`
	Work     time.Duration `yaml:"work"`
	Fail     bool          `yaml:"fail"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes, defaults, and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks the configuration, e.g. after flags have been applied.
func (c *Config) Validate() error {
	return validate(c)
}

func applyDefaults(cfg *Config) {
	if cfg.RunMode.Mode == "" {
		cfg.RunMode.Mode = "loop"
	}
	if cfg.Suspension == "" {
		cfg.Suspension = "blocking"
	}
	if cfg.MinimumTick == 0 {
		cfg.MinimumTick = runloop.DefaultMinimumTick
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Settings returns the driver settings. It assumes the config is valid.
func (c *Config) Settings() runloop.Settings {
	mode, _ := runloop.ParseRunMode(c.RunMode.Mode, c.RunMode.Wait)
	return runloop.Settings{RunMode: mode}
}

// SuspensionStrategy returns the configured runloop.Suspension. It assumes
// the config is valid.
func (c *Config) SuspensionStrategy() runloop.Suspension {
	s, _ := parseSuspension(c.Suspension)
	return s
}

// LogLevel returns the configured log level. It assumes the config is valid.
func (c *Config) LogLevel() logiface.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}
