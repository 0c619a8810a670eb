package onos

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Default election timing. The remote timeout tolerates two missed
// heartbeats; any override must keep the ratio at 2 or above.
const (
	DefaultPeriodicInterval = 5 * time.Second
	DefaultRemoteTimeout    = 15 * time.Second
	DefaultPublishTimeout   = 5 * time.Second
	DefaultUnlockTimeout    = 5 * time.Second
)

// Config is the configuration for the LeadershipService.
//
// All duration fields accept standard Go duration strings like "5s", "1m"
// when parsed from YAML.
type Config struct {
	// PeriodicInterval is how often the current leader advertises itself and
	// how often followers check a remote leader for staleness.
	// Recommended: 5 seconds.
	PeriodicInterval time.Duration `yaml:"periodicInterval"`

	// RemoteTimeout is how long a remote leader may stay silent on the
	// broadcast topic before it is evicted from the local view.
	// Must be at least 2x PeriodicInterval to tolerate one missed heartbeat.
	// Recommended: 3x PeriodicInterval.
	RemoteTimeout time.Duration `yaml:"remoteTimeout"`

	// PublishTimeout bounds a single event broadcast to the cluster.
	PublishTimeout time.Duration `yaml:"publishTimeout"`

	// UnlockTimeout bounds the lock release during step-down and shutdown.
	UnlockTimeout time.Duration `yaml:"unlockTimeout"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		PeriodicInterval: DefaultPeriodicInterval,
		RemoteTimeout:    DefaultRemoteTimeout,
		PublishTimeout:   DefaultPublishTimeout,
		UnlockTimeout:    DefaultUnlockTimeout,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.PeriodicInterval == 0 {
		cfg.PeriodicInterval = defaults.PeriodicInterval
	}
	if cfg.RemoteTimeout == 0 {
		cfg.RemoteTimeout = 3 * cfg.PeriodicInterval
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = defaults.PublishTimeout
	}
	if cfg.UnlockTimeout == 0 {
		cfg.UnlockTimeout = defaults.UnlockTimeout
	}
}

// Validate checks the configuration for consistency.
//
// Returns ErrInvalidConfig (wrapped with details) when a constraint is
// violated.
func (c *Config) Validate() error {
	if c.PeriodicInterval <= 0 {
		return fmt.Errorf("%w: periodicInterval must be positive, got %v",
			ErrInvalidConfig, c.PeriodicInterval)
	}
	if c.RemoteTimeout < 2*c.PeriodicInterval {
		return fmt.Errorf("%w: remoteTimeout %v must be at least 2x periodicInterval %v",
			ErrInvalidConfig, c.RemoteTimeout, c.PeriodicInterval)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("%w: publishTimeout must be positive, got %v",
			ErrInvalidConfig, c.PublishTimeout)
	}
	if c.UnlockTimeout <= 0 {
		return fmt.Errorf("%w: unlockTimeout must be positive, got %v",
			ErrInvalidConfig, c.UnlockTimeout)
	}

	return nil
}

// ParseConfig parses a YAML document into a Config, applies defaults for
// missing fields, and validates the result.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
