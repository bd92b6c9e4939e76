package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rshade/varbatch/internal/config"
)

// isolateCLI points every varbatch location at temp dirs and resets global
// state after the test. It returns the varbatch home.
func isolateCLI(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvEnvFile, filepath.Join(home, "missing.env"))
	t.Setenv(config.EnvProjectDir, "")
	t.Setenv(config.EnvLogLevel, "error")
	t.Cleanup(func() {
		config.ResetGlobalConfigForTest()
		config.SetResolvedProjectDir("")
	})
	return home
}

// executeCmd runs the root command with args and empty stdin.
//
//nolint:nonamedreturns // Named returns document the pair of streams.
func executeCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd("1.0.0-test")
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

// fastConfig writes a config file with millisecond pacing.
func fastConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
governor:
  profile: standard
  settle_delay: 1ms
  chunk_pause: 1ms
`), 0o600))
	return path
}

// writeDocument writes a YAML document with the given texts, one TextFrame
// per text, IDs t1..tN.
func writeDocument(t *testing.T, texts ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("objects:\n")
	for i, text := range texts {
		fmt.Fprintf(&b, "  - id: t%d\n    kind: TextFrame\n    text: %q\n", i+1, text)
	}
	path := filepath.Join(t.TempDir(), "doc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}
