// Package version exposes build information injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/rshade/varbatch/pkg/version.version=1.2.0"
package version

import "fmt"

//nolint:gochecknoglobals // Set by the linker at build time.
var (
	version   = "0.0.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// GetVersion returns the semantic version without a leading "v".
func GetVersion() string {
	return version
}

// GetGitCommit returns the commit the binary was built from.
func GetGitCommit() string {
	return gitCommit
}

// GetBuildDate returns the build timestamp.
func GetBuildDate() string {
	return buildDate
}

// String returns a one-line description for --version output.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate)
}
