// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log"`
	Kinds    KindsConfig    `yaml:"kinds"`
}

type StoreConfig struct {
	// Path of the JSON document holding the entity records.
	Path string `yaml:"path"`
}

type RegistryConfig struct {
	// FlushDelay is the persistence debounce window.
	FlushDelay Duration `yaml:"flush_delay"`
	// ExpiryRecheck is the follow-up interval after a fired expiry check.
	ExpiryRecheck Duration `yaml:"expiry_recheck"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type KindsConfig struct {
	PresenceInterval Duration `yaml:"presence_interval"`
	DialTimeout      Duration `yaml:"dial_timeout"`
	MaxBackoff       Duration `yaml:"max_backoff"`
}

// Duration is a time.Duration that decodes from YAML strings like "50ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Path: "data/entities.json"},
		Registry: RegistryConfig{
			FlushDelay:    Duration(50 * time.Millisecond),
			ExpiryRecheck: Duration(5 * time.Second),
		},
		Log: LogConfig{Level: "info"},
		Kinds: KindsConfig{
			PresenceInterval: Duration(time.Minute),
			DialTimeout:      Duration(10 * time.Second),
			MaxBackoff:       Duration(2 * time.Minute),
		},
	}
}

// Load decodes a config from YAML, filling unset fields from Default.
func Load(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads and decodes the config at path.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Registry.FlushDelay <= 0 {
		return fmt.Errorf("registry.flush_delay must be positive")
	}
	if c.Registry.ExpiryRecheck <= 0 {
		return fmt.Errorf("registry.expiry_recheck must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("log.level %q is not a known level", c.Log.Level)
	}
	return nil
}
