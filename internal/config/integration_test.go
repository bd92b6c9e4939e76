package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the home directory and VARBATCH_HOME at temp dirs and
// resets the global config.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	t.Setenv(EnvEnvFile, filepath.Join(home, "missing.env"))
	ResetGlobalConfigForTest()
	t.Cleanup(ResetGlobalConfigForTest)
	return home
}

func TestGlobalConfig(t *testing.T) {
	isolate(t)

	cfg := GetGlobalConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "standard", cfg.Governor.Profile)

	assert.Same(t, cfg, GetGlobalConfig())

	ResetGlobalConfigForTest()
	assert.NotSame(t, cfg, GetGlobalConfig())

	replacement := Default()
	replacement.Logging.Level = "debug"
	SetGlobalConfig(replacement)
	assert.Same(t, replacement, GetGlobalConfig())
	assert.Equal(t, "debug", GetLoggingConfig().Level)
}

func TestGlobalConfig_ReadsHomeFile(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(`
governor:
  profile: strict
logging:
  level: warn
`), 0o600))

	cfg := GetGlobalConfig()
	assert.Equal(t, "strict", cfg.Governor.Profile)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format, "absent keys keep defaults")
}

func TestGetConfigDir(t *testing.T) {
	t.Run("VARBATCH_HOME", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(EnvHome, dir)
		got, err := GetConfigDir()
		require.NoError(t, err)
		assert.Equal(t, dir, got)
	})

	t.Run("user home", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv(EnvHome, "")
		t.Setenv("HOME", home)
		t.Setenv("USERPROFILE", home)
		got, err := GetConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".varbatch"), got)
	})
}

func TestEnsureSubDirs(t *testing.T) {
	home := isolate(t)
	logFile := filepath.Join(t.TempDir(), "logs", "varbatch.log")

	cfg := Default()
	cfg.Logging.File = logFile
	SetGlobalConfig(cfg)

	require.NoError(t, EnsureSubDirs())

	for _, dir := range []string{home, filepath.Join(home, "cache"), filepath.Dir(logFile)} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir())
	}
}

func TestNewWithProjectDir(t *testing.T) {
	isolate(t)
	project := filepath.Join(t.TempDir(), ProjectDirName)
	require.NoError(t, os.MkdirAll(project, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "config.yaml"), []byte(`
export:
  variable_prefix: Campo
  max_field_length: 200
`), 0o600))
	t.Setenv(EnvMaxFieldLength, "120")

	cfg := NewWithProjectDir(context.Background(), project)
	assert.Equal(t, "Campo", cfg.Export.VariablePrefix)
	assert.Equal(t, 120, cfg.Export.MaxFieldLength, "environment wins over the overlay")
	assert.Empty(t, cfg.Export.Ellipsis, "overlay replaces the whole section")
	assert.NoError(t, cfg.Export.Validate())

	plain := NewWithProjectDir(context.Background(), "")
	assert.Equal(t, "Variable", plain.Export.VariablePrefix)

	missing := NewWithProjectDir(context.Background(), t.TempDir())
	assert.Equal(t, "Variable", missing.Export.VariablePrefix)
}
