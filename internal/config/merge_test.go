package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/varbatch/internal/config"
)

// newDefaultTarget returns a Config with known non-zero values so tests can
// verify that absent overlay keys leave the original values intact.
func newDefaultTarget() *config.Config {
	cfg := config.Default()
	cfg.Governor.ChunkSize = 2
	cfg.Logging.Level = "info"
	cfg.Host.Addr = "127.0.0.1:9000"
	return cfg
}

// writeOverlay writes YAML content to a temp file and returns its path.
func writeOverlay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestShallowMergeYAML_SingleKeyOverride(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
logging:
  level: debug
  format: json
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, "debug", target.Logging.Level)
	assert.Equal(t, "json", target.Logging.Format)
	assert.Equal(t, 2, target.Governor.ChunkSize)
	assert.Equal(t, "127.0.0.1:9000", target.Host.Addr)
}

func TestShallowMergeYAML_SectionReplaced(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
governor:
  profile: strict
  deadline: 90s
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, "strict", target.Governor.Profile)
	assert.Equal(t, 90*time.Second, target.Governor.Deadline)
	assert.Zero(t, target.Governor.ChunkSize, "fields absent from the overlay section are zeroed")
}

func TestShallowMergeYAML_AllSections(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
governor: {profile: relaxed}
export: {variable_prefix: V, newline_mode: escaped}
host: {addr: "10.0.0.1:50551", skip_version_check: true}
logging: {level: error}
cache: {enabled: false}
prompts: {assume_yes: true, on_timeout: continue, max_extensions: 1}
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))

	assert.Equal(t, "relaxed", target.Governor.Profile)
	assert.Equal(t, "V", target.Export.VariablePrefix)
	assert.Equal(t, "escaped", string(target.Export.NewlineMode))
	assert.True(t, target.Host.SkipVersionCheck)
	assert.Equal(t, "error", target.Logging.Level)
	assert.False(t, target.Cache.Enabled)
	assert.True(t, target.Prompts.AssumeYes)
	assert.Equal(t, 1, target.Prompts.MaxExtensions)
}

func TestShallowMergeYAML_EmptyAndCommentOnly(t *testing.T) {
	for name, content := range map[string]string{"empty": "", "comments": "# nothing here\n"} {
		t.Run(name, func(t *testing.T) {
			target := newDefaultTarget()
			require.NoError(t, config.ShallowMergeYAML(target, writeOverlay(t, content)))
			assert.Equal(t, newDefaultTarget(), target)
		})
	}
}

func TestShallowMergeYAML_UnknownKeysIgnored(t *testing.T) {
	target := newDefaultTarget()
	overlay := writeOverlay(t, `
telemetry:
  enabled: true
logging:
  level: warn
`)

	require.NoError(t, config.ShallowMergeYAML(target, overlay))
	assert.Equal(t, "warn", target.Logging.Level)
}

func TestShallowMergeYAML_Errors(t *testing.T) {
	assert.Error(t, config.ShallowMergeYAML(nil, "x"))
	assert.Error(t, config.ShallowMergeYAML(newDefaultTarget(), filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, config.ShallowMergeYAML(newDefaultTarget(), writeOverlay(t, "logging: [unclosed")))
	assert.Error(t, config.ShallowMergeYAML(newDefaultTarget(), writeOverlay(t, "governor: {chunk_size: many}")))
}
