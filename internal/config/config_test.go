package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/varbatch/internal/config"
	"github.com/rshade/varbatch/internal/engine/batch"
	"github.com/rshade/varbatch/internal/logging"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	gov, err := cfg.Governor.Build("")
	require.NoError(t, err)
	assert.Equal(t, batch.DefaultGovernor(), gov)

	assert.Equal(t, "Variable", cfg.Export.VariablePrefix)
	assert.Equal(t, 500, cfg.Export.MaxFieldLength)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, batch.DecisionStop, cfg.Prompts.TimeoutDecision())
}

func TestGovernorConfig_Build(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.GovernorConfig
		override string
		check    func(t *testing.T, g batch.Governor)
		wantErr  bool
	}{
		{
			name: "strict profile",
			cfg:  config.GovernorConfig{Profile: "strict"},
			check: func(t *testing.T, g batch.Governor) {
				assert.Equal(t, 2, g.ChunkSize)
				assert.Equal(t, batch.StrictMaxItems, g.MaxItems)
			},
		},
		{
			name:     "flag profile wins",
			cfg:      config.GovernorConfig{Profile: "strict"},
			override: "relaxed",
			check: func(t *testing.T, g batch.Governor) {
				assert.Equal(t, 500*time.Millisecond, g.ChunkPause)
				assert.Zero(t, g.MaxItems)
			},
		},
		{
			name: "field overrides",
			cfg: config.GovernorConfig{
				ChunkSize: 1, Deadline: time.Minute, MaxItems: 40, Reclaim: "n:5",
			},
			check: func(t *testing.T, g batch.Governor) {
				assert.Equal(t, 1, g.ChunkSize)
				assert.Equal(t, time.Minute, g.Deadline)
				assert.Equal(t, 40, g.MaxItems)
				assert.Equal(t, batch.ReclaimPolicy{Mode: batch.ReclaimEveryN, Every: 5}, g.Reclaim)
			},
		},
		{name: "chunk above ceiling", cfg: config.GovernorConfig{ChunkSize: 10}, wantErr: true},
		{name: "unknown profile", cfg: config.GovernorConfig{Profile: "turbo"}, wantErr: true},
		{name: "bad reclaim", cfg: config.GovernorConfig{Reclaim: "sometimes"}, wantErr: true},
		{name: "soft above hard", cfg: config.GovernorConfig{SoftThreshold: 200}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.cfg.Build(tt.override)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, g)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"governor", func(c *config.Config) { c.Governor.Profile = "turbo" }},
		{"export newline", func(c *config.Config) { c.Export.NewlineMode = "crlf" }},
		{"export encoding", func(c *config.Config) { c.Export.FallbackEncoding = "klingon" }},
		{"cache ttl", func(c *config.Config) { c.Cache.TTLSeconds = 5 }},
		{"on timeout", func(c *config.Config) { c.Prompts.OnTimeout = "maybe" }},
		{"extensions", func(c *config.Config) { c.Prompts.MaxExtensions = -1 }},
		{"host timeout", func(c *config.Config) { c.Host.CallTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}

	cfg := config.Default()
	cfg.Cache.Enabled = false
	cfg.Cache.TTLSeconds = 0
	assert.NoError(t, cfg.Validate(), "disabled cache is not checked")
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := config.Default()
	cfg.Governor.Profile = "strict"
	cfg.Governor.SettleDelay = 250 * time.Millisecond
	cfg.Host.Command = []string{"tr", "a-z", "A-Z"}
	require.NoError(t, cfg.Save(path))

	loaded := config.Default()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, cfg, loaded)

	assert.Error(t, loaded.Load(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		config.EnvProfile:          "relaxed",
		config.EnvChunkSize:        "2",
		config.EnvDeadline:         "45s",
		config.EnvMaxItems:         "oops",
		config.EnvVariablePrefix:   "Campo",
		config.EnvNewlineMode:      "ESCAPED",
		config.EnvFallbackEncoding: "ISO-8859-1",
		config.EnvHostAddr:         "10.0.0.2:50551",
		config.EnvSkipVersionCheck: "true",
		config.EnvLogLevel:         "debug",
		config.EnvCacheEnabled:     "false",
		config.EnvAssumeYes:        "1",
		config.EnvOnTimeout:        "Continue",
	}
	cfg := config.Default()
	config.ApplyEnvOverrides(cfg, func(k string) string { return env[k] })

	assert.Equal(t, "relaxed", cfg.Governor.Profile)
	assert.Equal(t, 2, cfg.Governor.ChunkSize)
	assert.Equal(t, 45*time.Second, cfg.Governor.Deadline)
	assert.Zero(t, cfg.Governor.MaxItems, "unparseable values are ignored")
	assert.Equal(t, "Campo", cfg.Export.VariablePrefix)
	assert.Equal(t, "escaped", string(cfg.Export.NewlineMode))
	assert.Equal(t, "ISO-8859-1", cfg.Export.FallbackEncoding)
	assert.Equal(t, "10.0.0.2:50551", cfg.Host.Addr)
	assert.True(t, cfg.Host.SkipVersionCheck)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Prompts.AssumeYes)
	assert.Equal(t, batch.DecisionContinue, cfg.Prompts.TimeoutDecision())
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("VARBATCH_TEST_FROM_FILE=yes\nVARBATCH_TEST_PRESET=file\n"), 0o600))
	t.Setenv(config.EnvEnvFile, envFile)
	t.Setenv("VARBATCH_TEST_PRESET", "shell")
	t.Setenv("VARBATCH_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("VARBATCH_TEST_FROM_FILE"))

	require.NoError(t, config.LoadEnvFiles())
	assert.Equal(t, "yes", os.Getenv("VARBATCH_TEST_FROM_FILE"))
	assert.Equal(t, "shell", os.Getenv("VARBATCH_TEST_PRESET"), "set variables are not overridden")

	t.Setenv(config.EnvEnvFile, filepath.Join(dir, "missing.env"))
	assert.NoError(t, config.LoadEnvFiles())
}

func TestPromptsConfig_AutoPrompter(t *testing.T) {
	p := config.PromptsConfig{AssumeYes: true, OnTimeout: "continue", MaxExtensions: 2}
	auto := p.AutoPrompter()
	assert.Equal(t, batch.AutoPrompter{Accept: true, Decision: batch.DecisionContinue, MaxExtensions: 2}, auto)
}

func TestLoggingConfig_ToLoggingConfig(t *testing.T) {
	lc := config.LoggingConfig{Level: "debug", Format: "json"}
	got := lc.ToLoggingConfig()
	assert.Equal(t, logging.OutputStderr, got.Output)

	lc.File = "/var/log/varbatch.log"
	got = lc.ToLoggingConfig()
	assert.Equal(t, logging.OutputFile, got.Output)
	assert.Equal(t, "/var/log/varbatch.log", got.File)
}
