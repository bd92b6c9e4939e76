// Package config loads varbatch settings: the global YAML file under the
// varbatch home directory, an optional project overlay, .env files and
// VARBATCH_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/varbatch/internal/atomicfile"
	"github.com/rshade/varbatch/internal/engine/batch"
	"github.com/rshade/varbatch/internal/engine/cache"
	"github.com/rshade/varbatch/internal/export"
	"github.com/rshade/varbatch/internal/hostapi/document"
)

// Defaults not owned by another package.
const (
	DefaultServeAddr     = "127.0.0.1:50551"
	DefaultMaxExtensions = 3
	configFileName       = "config.yaml"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full varbatch configuration.
type Config struct {
	Governor GovernorConfig `yaml:"governor"`
	Export   ExportConfig   `yaml:"export"`
	Host     HostConfig     `yaml:"host"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
	Prompts  PromptsConfig  `yaml:"prompts"`
}

// GovernorConfig selects a governor profile and overrides its fields. Zero
// values keep the profile value.
type GovernorConfig struct {
	Profile         string        `yaml:"profile"`
	ChunkSize       int           `yaml:"chunk_size,omitempty"`
	SoftThreshold   int           `yaml:"soft_threshold,omitempty"`
	HardThreshold   int           `yaml:"hard_threshold,omitempty"`
	MaxItems        int           `yaml:"max_items,omitempty"`
	ExportSoftLimit int           `yaml:"export_soft_limit,omitempty"`
	SettleDelay     time.Duration `yaml:"settle_delay,omitempty"`
	ChunkPause      time.Duration `yaml:"chunk_pause,omitempty"`
	Deadline        time.Duration `yaml:"deadline,omitempty"`
	Reclaim         string        `yaml:"reclaim,omitempty"`
	MaxTextLength   int           `yaml:"max_text_length,omitempty"`
}

// ExportConfig is the CSV export section.
type ExportConfig = export.Config

// HostConfig describes where items come from and how remote hosts are reached.
type HostConfig struct {
	// Addr is a remote host address; empty means the local document.
	Addr             string        `yaml:"addr,omitempty"`
	ServeAddr        string        `yaml:"serve_addr"`
	CallTimeout      time.Duration `yaml:"call_timeout,omitempty"`
	ApplyTimeout     time.Duration `yaml:"apply_timeout,omitempty"`
	SkipVersionCheck bool          `yaml:"skip_version_check,omitempty"`
	Kinds            []string      `yaml:"kinds,omitempty"`
	Command          []string      `yaml:"command,omitempty"`
	ExecTimeout      time.Duration `yaml:"exec_timeout,omitempty"`
}

// CacheConfig is the result cache section.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Directory  string `yaml:"directory,omitempty"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
}

// PromptsConfig controls the answers used when no one can be asked.
type PromptsConfig struct {
	AssumeYes     bool   `yaml:"assume_yes"`
	OnTimeout     string `yaml:"on_timeout"`
	MaxExtensions int    `yaml:"max_extensions"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Governor: GovernorConfig{Profile: batch.ProfileStandard},
		Export:   export.DefaultConfig(),
		Host: HostConfig{
			ServeAddr:   DefaultServeAddr,
			ExecTimeout: document.DefaultExecTimeout,
		},
		Logging: DefaultLoggingConfig(),
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: cache.DefaultTTLSeconds,
			MaxSizeMB:  cache.DefaultCacheMaxSizeMB,
		},
		Prompts: PromptsConfig{
			OnTimeout:     batch.DecisionStop.String(),
			MaxExtensions: DefaultMaxExtensions,
		},
	}
}

// New builds the effective global configuration: defaults, then the global
// config file when present, then .env files and VARBATCH_* overrides. Errors
// reading the file leave the defaults in place.
func New() *Config {
	cfg := Default()
	if dir, err := GetConfigDir(); err == nil {
		_ = cfg.Load(filepath.Join(dir, configFileName))
	}
	_ = LoadEnvFiles()
	ApplyEnvOverrides(cfg, os.Getenv)
	return cfg
}

// ConfigFilePath returns the path of the global config file.
func ConfigFilePath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load merges the YAML file at path onto c. A missing file is reported with
// an error wrapping os.ErrNotExist.
func (c *Config) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Save writes c to path atomically.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.WriteFile(path, data, 0o600)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.Governor.Build(""); err != nil {
		return fmt.Errorf("%w: governor: %w", ErrInvalidConfig, err)
	}
	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("%w: export: %w", ErrInvalidConfig, err)
	}
	if c.Cache.Enabled {
		if c.Cache.TTLSeconds < cache.MinTTLSeconds || c.Cache.TTLSeconds > cache.MaxTTLSeconds {
			return fmt.Errorf("%w: cache: %w", ErrInvalidConfig, cache.ErrInvalidTTL)
		}
		if c.Cache.MaxSizeMB < 0 {
			return fmt.Errorf("%w: cache: max_size_mb must be non-negative", ErrInvalidConfig)
		}
	}
	switch c.Prompts.OnTimeout {
	case "", batch.DecisionStop.String(), batch.DecisionContinue.String():
	default:
		return fmt.Errorf("%w: prompts: on_timeout must be stop or continue, got %q",
			ErrInvalidConfig, c.Prompts.OnTimeout)
	}
	if c.Prompts.MaxExtensions < 0 {
		return fmt.Errorf("%w: prompts: max_extensions must be non-negative", ErrInvalidConfig)
	}
	if c.Host.CallTimeout < 0 || c.Host.ApplyTimeout < 0 || c.Host.ExecTimeout < 0 {
		return fmt.Errorf("%w: host: timeouts must be non-negative", ErrInvalidConfig)
	}
	return nil
}

// Build resolves the governor: the profile (profileOverride wins over
// g.Profile when set), then every non-zero field of g.
func (g GovernorConfig) Build(profileOverride string) (batch.Governor, error) {
	profile := g.Profile
	if profileOverride != "" {
		profile = profileOverride
	}
	gov, err := batch.GovernorForProfile(profile)
	if err != nil {
		return batch.Governor{}, err
	}

	overrideInt(&gov.ChunkSize, g.ChunkSize)
	overrideInt(&gov.SoftThreshold, g.SoftThreshold)
	overrideInt(&gov.HardThreshold, g.HardThreshold)
	overrideInt(&gov.MaxItems, g.MaxItems)
	overrideInt(&gov.ExportSoftLimit, g.ExportSoftLimit)
	overrideInt(&gov.MaxTextLength, g.MaxTextLength)
	if g.SettleDelay > 0 {
		gov.SettleDelay = g.SettleDelay
	}
	if g.ChunkPause > 0 {
		gov.ChunkPause = g.ChunkPause
	}
	if g.Deadline > 0 {
		gov.Deadline = g.Deadline
	}
	if g.Reclaim != "" {
		if gov.Reclaim, err = batch.ParseReclaimPolicy(g.Reclaim); err != nil {
			return batch.Governor{}, err
		}
	}

	if err = gov.Validate(); err != nil {
		return batch.Governor{}, err
	}
	return gov, nil
}

// TimeoutDecision returns the configured non-interactive timeout answer.
func (p PromptsConfig) TimeoutDecision() batch.Decision {
	return batch.ParseDecision(p.OnTimeout)
}

// AutoPrompter returns the prompter used when no terminal is attached.
func (p PromptsConfig) AutoPrompter() batch.AutoPrompter {
	return batch.AutoPrompter{
		Accept:        p.AssumeYes,
		Decision:      p.TimeoutDecision(),
		MaxExtensions: p.MaxExtensions,
	}
}

// CacheDirectory returns the configured cache directory or the default one
// under the varbatch home.
func (c CacheConfig) CacheDirectory() (string, error) {
	if c.Directory != "" {
		return c.Directory, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}

func overrideInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
