package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/rshade/varbatch/internal/export"
)

// Environment overrides.
const (
	EnvEnvFile          = "VARBATCH_ENV_FILE"
	EnvProfile          = "VARBATCH_PROFILE"
	EnvChunkSize        = "VARBATCH_CHUNK_SIZE"
	EnvDeadline         = "VARBATCH_DEADLINE"
	EnvMaxItems         = "VARBATCH_MAX_ITEMS"
	EnvVariablePrefix   = "VARBATCH_VARIABLE_PREFIX"
	EnvMaxFieldLength   = "VARBATCH_MAX_FIELD_LENGTH"
	EnvNewlineMode      = "VARBATCH_NEWLINE_MODE"
	EnvFallbackEncoding = "VARBATCH_FALLBACK_ENCODING"
	EnvHostAddr         = "VARBATCH_HOST_ADDR"
	EnvSkipVersionCheck = "VARBATCH_SKIP_VERSION_CHECK"
	EnvLogLevel         = "VARBATCH_LOG_LEVEL"
	EnvLogFormat        = "VARBATCH_LOG_FORMAT"
	EnvLogFile          = "VARBATCH_LOG_FILE"
	EnvCacheEnabled     = "VARBATCH_CACHE_ENABLED"
	EnvCacheDir         = "VARBATCH_CACHE_DIR"
	EnvAssumeYes        = "VARBATCH_ASSUME_YES"
	EnvOnTimeout        = "VARBATCH_ON_TIMEOUT"
)

// LoadEnvFiles loads .env files without overriding variables already set:
// VARBATCH_ENV_FILE alone when set, otherwise .env.local then .env in the
// working directory. Missing files are ignored.
func LoadEnvFiles() error {
	if envFile := os.Getenv(EnvEnvFile); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env.local: %w", err)
	}
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies VARBATCH_* variables onto cfg. Unparseable values
// are ignored.
func ApplyEnvOverrides(cfg *Config, getenv func(string) string) {
	setString(&cfg.Governor.Profile, getenv(EnvProfile))
	setInt(&cfg.Governor.ChunkSize, getenv(EnvChunkSize))
	setDuration(&cfg.Governor.Deadline, getenv(EnvDeadline))
	setInt(&cfg.Governor.MaxItems, getenv(EnvMaxItems))

	setString(&cfg.Export.VariablePrefix, getenv(EnvVariablePrefix))
	setInt(&cfg.Export.MaxFieldLength, getenv(EnvMaxFieldLength))
	if v := getenv(EnvNewlineMode); v != "" {
		cfg.Export.NewlineMode = export.NewlineMode(strings.ToLower(strings.TrimSpace(v)))
	}
	setString(&cfg.Export.FallbackEncoding, getenv(EnvFallbackEncoding))

	setString(&cfg.Host.Addr, getenv(EnvHostAddr))
	setBool(&cfg.Host.SkipVersionCheck, getenv(EnvSkipVersionCheck))

	setString(&cfg.Logging.Level, getenv(EnvLogLevel))
	setString(&cfg.Logging.Format, getenv(EnvLogFormat))
	setString(&cfg.Logging.File, getenv(EnvLogFile))

	setBool(&cfg.Cache.Enabled, getenv(EnvCacheEnabled))
	setString(&cfg.Cache.Directory, getenv(EnvCacheDir))

	setBool(&cfg.Prompts.AssumeYes, getenv(EnvAssumeYes))
	setString(&cfg.Prompts.OnTimeout, strings.ToLower(getenv(EnvOnTimeout)))
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = n
	}
}

func setBool(dst *bool, v string) {
	if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
		*dst = b
	}
}

func setDuration(dst *time.Duration, v string) {
	if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
		*dst = d
	}
}
