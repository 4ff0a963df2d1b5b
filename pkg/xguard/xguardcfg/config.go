package xguardcfg

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format is the configuration file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config is the validated result of loading spec §6's recognized
// options table. Keys absent from the loaded document keep the
// package defaults that defaultConfig sets.
type Config struct {
	// DoubleDeleteDelayMs is the delay before an evict's scheduled
	// second delete runs.
	DoubleDeleteDelayMs int64 `koanf:"double-delete-delay-ms"`

	Cleanup struct {
		IntervalMs          int64 `koanf:"interval-ms"`
		LockMaxIdleMs       int64 `koanf:"lock-max-idle-ms"`
		InvocationMaxIdleMs int64 `koanf:"invocation-max-idle-ms"`
	} `koanf:"cleanup"`

	Bloom struct {
		Prefix        string `koanf:"prefix"`
		BitSize       int64  `koanf:"bit-size"`
		HashFunctions int    `koanf:"hash-functions"`
	} `koanf:"bloom"`

	PreRefresh struct {
		Core             int `koanf:"core"`
		Max              int `koanf:"max"`
		Queue            int `koanf:"queue"`
		KeepAliveSeconds int `koanf:"keep-alive-seconds"`
	} `koanf:"pre-refresh"`

	Avalanche struct {
		MinJitterRatio float64 `koanf:"min-jitter-ratio"`
		MaxJitterRatio float64 `koanf:"max-jitter-ratio"`
		MinSeconds     int64   `koanf:"min-seconds"`
	} `koanf:"avalanche"`
}

// defaultConfig mirrors the package defaults scattered across xguard,
// bloom, locallock and prerefresh, so a Config loaded from an empty or
// partial document still produces a usable result. koanf's Unmarshal
// only overwrites fields whose keys are actually present in the
// loaded document, so seeding cfg with this before the overlay acts
// as the merge.
func defaultConfig() Config {
	var c Config
	c.DoubleDeleteDelayMs = 500
	c.Cleanup.IntervalMs = 60_000
	c.Cleanup.LockMaxIdleMs = 300_000
	c.Cleanup.InvocationMaxIdleMs = 300_000
	c.Bloom.Prefix = "bf:"
	c.Bloom.BitSize = 1 << 23
	c.Bloom.HashFunctions = 3
	c.PreRefresh.Core = 4
	c.PreRefresh.Max = 4
	c.PreRefresh.Queue = 256
	c.PreRefresh.KeepAliveSeconds = 60
	c.Avalanche.MinJitterRatio = 0.05
	c.Avalanche.MaxJitterRatio = 0.20
	c.Avalanche.MinSeconds = 1
	return c
}

func parserFor(format Format) (koanf.Parser, error) {
	switch format {
	case FormatYAML:
		return yaml.Parser(), nil
	case FormatJSON:
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Load parses data (in the given format) over the package defaults and
// returns a validated Config. Empty data produces the all-defaults
// Config, mirroring xconf's NewFromBytes behavior for empty input.
func Load(data []byte, format Format) (*Config, error) {
	cfg := defaultConfig()
	if len(data) == 0 {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	parser, err := parserFor(format)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Avalanche.MinJitterRatio < 0 || c.Avalanche.MinJitterRatio > 1 {
		return fmt.Errorf("%w: avalanche.min-jitter-ratio out of [0,1]", ErrInvalidValue)
	}
	if c.Avalanche.MaxJitterRatio < 0 || c.Avalanche.MaxJitterRatio > 1 {
		return fmt.Errorf("%w: avalanche.max-jitter-ratio out of [0,1]", ErrInvalidValue)
	}
	if c.Avalanche.MaxJitterRatio < c.Avalanche.MinJitterRatio {
		return fmt.Errorf("%w: avalanche.max-jitter-ratio below min-jitter-ratio", ErrInvalidValue)
	}
	if c.Bloom.BitSize <= 0 {
		return fmt.Errorf("%w: bloom.bit-size must be positive", ErrInvalidValue)
	}
	if c.Bloom.HashFunctions <= 0 {
		return fmt.Errorf("%w: bloom.hash-functions must be positive", ErrInvalidValue)
	}
	return nil
}

// DoubleDeleteDelay returns the configured delay as a time.Duration.
func (c *Config) DoubleDeleteDelay() time.Duration {
	return time.Duration(c.DoubleDeleteDelayMs) * time.Millisecond
}

// CleanupInterval, CleanupLockMaxIdle and CleanupInvocationMaxIdle
// return the sweeper cadence/thresholds as time.Duration.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Cleanup.IntervalMs) * time.Millisecond
}

func (c *Config) CleanupLockMaxIdle() time.Duration {
	return time.Duration(c.Cleanup.LockMaxIdleMs) * time.Millisecond
}

func (c *Config) CleanupInvocationMaxIdle() time.Duration {
	return time.Duration(c.Cleanup.InvocationMaxIdleMs) * time.Millisecond
}
