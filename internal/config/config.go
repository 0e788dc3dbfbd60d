package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

const (
	DefaultUserAgent       = "Mozilla/5.0 (compatible; MyScraper/1.0)"
	DefaultWorkers         = 5
	DefaultMaxRetries      = 3
	DefaultRetryDelaySec   = 2.0
	DefaultTimeoutSec      = 10.0
	DefaultExclusionMarker = "This coupon has already been redeemed"
	DefaultOutputPath      = "unredeemed_coupons.json"
	DefaultDatabase        = "coupon_spider"
)

// ErrConfigNotFound is returned by LoadConfig when the file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

var (
	ErrMissingBaseURL    = errors.New("invalid target: base url is required")
	ErrMissingParam      = errors.New("invalid target: query parameter name is required")
	ErrInvalidRange      = errors.New("invalid target: range start must not exceed range end")
	ErrInvalidWorkers    = errors.New("invalid logic: worker concurrency must be positive")
	ErrInvalidRetries    = errors.New("invalid logic: retry count must be positive")
	ErrInvalidRetryDelay = errors.New("invalid logic: retry delay must be non-negative")
	ErrInvalidTimeout    = errors.New("invalid logic: request timeout must be positive")
	ErrInvalidDelay      = errors.New("invalid logic: politeness delay must be non-negative")
	ErrEmptyMarker       = errors.New("invalid filter: exclusion marker must not be empty")
)

type TargetConfig struct {
	BaseURL   string `yaml:"base_url"`
	Param     string `yaml:"param"`
	Start     int    `yaml:"start"`
	End       int    `yaml:"end"`
	RobotsURL string `yaml:"robots_url"`
}

type LogicConfig struct {
	UserAgent            string  `yaml:"user_agent"`
	MaxConcurrentWorkers int     `yaml:"max_concurrent_workers"`
	MaxRetries           int     `yaml:"max_retries"`
	RetryDelaySec        float64 `yaml:"retry_delay_sec"`
	TimeoutSec           float64 `yaml:"timeout_sec"`
	DelayMS              int     `yaml:"delay_ms"`
	CacheRobots          bool    `yaml:"cache_robots"`
}

type FilterConfig struct {
	ExclusionMarker string `yaml:"exclusion_marker"`
}

type OutputConfig struct {
	Path string `yaml:"path"`
}

type DBConfig struct {
	Connection  string `yaml:"connection"`
	Database    string `yaml:"database"`
	Collections struct {
		Documents     string `yaml:"documents"`
		SpiderHistory string `yaml:"spider_history"`
	} `yaml:"collections"`
}

// Enabled reports whether a MongoDB sink was configured.
func (c DBConfig) Enabled() bool {
	return c.Connection != ""
}

type SpiderConfig struct {
	Target TargetConfig `yaml:"target"`
	Logic  LogicConfig  `yaml:"logic"`
	Filter FilterConfig `yaml:"filter"`
	Output OutputConfig `yaml:"output"`
	DB     DBConfig     `yaml:"db"`
}

// Default returns a configuration with every optional field populated.
// The target is left empty.
func Default() *SpiderConfig {
	cfg := &SpiderConfig{
		Logic: LogicConfig{
			UserAgent:            DefaultUserAgent,
			MaxConcurrentWorkers: DefaultWorkers,
			MaxRetries:           DefaultMaxRetries,
			RetryDelaySec:        DefaultRetryDelaySec,
			TimeoutSec:           DefaultTimeoutSec,
			CacheRobots:          true,
		},
		Filter: FilterConfig{ExclusionMarker: DefaultExclusionMarker},
		Output: OutputConfig{Path: DefaultOutputPath},
	}
	cfg.DB.Database = DefaultDatabase
	cfg.DB.Collections.Documents = "coupons"
	cfg.DB.Collections.SpiderHistory = "spider_history"
	return cfg
}

// LoadConfig reads a YAML file on top of Default, so omitted keys keep
// their default values and explicit zeroes are preserved.
func LoadConfig(path string) (*SpiderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration surface and returns the first problem found.
func (c *SpiderConfig) Validate() error {
	switch {
	case c.Target.BaseURL == "":
		return ErrMissingBaseURL
	case c.Target.Param == "":
		return ErrMissingParam
	case c.Target.Start > c.Target.End:
		return fmt.Errorf("%w: start=%d end=%d", ErrInvalidRange, c.Target.Start, c.Target.End)
	case c.Logic.MaxConcurrentWorkers <= 0:
		return ErrInvalidWorkers
	case c.Logic.MaxRetries <= 0:
		return ErrInvalidRetries
	case c.Logic.RetryDelaySec < 0:
		return ErrInvalidRetryDelay
	case c.Logic.TimeoutSec <= 0:
		return ErrInvalidTimeout
	case c.Logic.DelayMS < 0:
		return ErrInvalidDelay
	case c.Filter.ExclusionMarker == "":
		return ErrEmptyMarker
	}
	return nil
}
