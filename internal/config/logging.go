package config

import (
	"github.com/rshade/varbatch/internal/logging"
)

// LoggingConfig is the logging section.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File, when set, sends logs to this file instead of stderr.
	File   string `yaml:"file,omitempty"`
	Caller bool   `yaml:"caller,omitempty"`
}

// DefaultLoggingConfig returns info-level console logging to stderr.
func DefaultLoggingConfig() LoggingConfig {
	d := logging.DefaultConfig()
	return LoggingConfig{Level: d.Level, Format: d.Format}
}

// ToLoggingConfig converts the section for the logging package. A set File
// selects file output; otherwise logs go to stderr.
func (lc *LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}

	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: output,
		File:   lc.File,
		Caller: lc.Caller,
	}
}
