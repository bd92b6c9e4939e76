package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ignoredPatterns are the project-local artifacts varbatch produces. The
// config file itself stays tracked.
var ignoredPatterns = []string{ //nolint:gochecknoglobals // Read-only pattern list
	"cache/",
	"*.csv",
	"*.prom",
	"*.log",
	".varbatch-*.tmp",
}

// GitignoreContent returns the .gitignore written into project .varbatch
// directories.
func GitignoreContent() string {
	var b strings.Builder
	b.WriteString("# varbatch project-local data (auto-generated)\n")
	b.WriteString("# Config is tracked; job results, exports and logs are not.\n")
	for _, p := range ignoredPatterns {
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String()
}

// EnsureGitignore writes dir/.gitignore unless one is already there, creating
// dir as needed. It reports whether a file was written. An existing file is
// never touched.
func EnsureGitignore(dir string) (bool, error) {
	path := filepath.Join(dir, ".gitignore")

	switch _, err := os.Stat(path); {
	case err == nil:
		return false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Errorf("creating %s: %w", dir, err)
	}

	//nolint:gosec // .gitignore is meant to be world-readable.
	if err := os.WriteFile(path, []byte(GitignoreContent()), 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
