// Package export writes job records as a two-row CSV: one header row of
// synthetic variable names and one content row with the captured text of every
// record, in record order.
//
// The file is UTF-8 with a byte-order mark. After writing, the file is read
// back and verified; if the text did not survive, both rows are rewritten in a
// legacy single-byte fallback encoding.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rshade/varbatch/internal/atomicfile"
	"github.com/rshade/varbatch/internal/engine/batch"
	"github.com/rshade/varbatch/internal/logging"
)

// Defaults.
const (
	DefaultVariablePrefix   = "Variable"
	DefaultMaxFieldLength   = 500
	DefaultEllipsis         = "..."
	DefaultFallbackEncoding = "windows-1252"

	// EncodingUTF8BOM names the primary output encoding in Destination.
	EncodingUTF8BOM = "UTF-8 (BOM)"
)

// BOM is the UTF-8 byte-order mark written at the start of the file.
const BOM = "\ufeff"

// DefaultReferenceChars are the non-ASCII strings whose survival is checked
// after writing.
var DefaultReferenceChars = []string{"ção", "ã", "é"}

// ErrNoDestination is returned when the config has no output path.
var ErrNoDestination = errors.New("no export destination configured")

// Config controls one export call.
type Config struct {
	Path             string      `yaml:"path,omitempty" json:"path,omitempty"`
	VariablePrefix   string      `yaml:"variable_prefix" json:"variable_prefix"`
	MaxFieldLength   int         `yaml:"max_field_length" json:"max_field_length"`
	NewlineMode      NewlineMode `yaml:"newline_mode" json:"newline_mode"`
	Ellipsis         string      `yaml:"ellipsis" json:"ellipsis"`
	ReferenceChars   []string    `yaml:"reference_chars" json:"reference_chars"`
	FallbackEncoding string      `yaml:"fallback_encoding" json:"fallback_encoding"`
}

// DefaultConfig returns the export defaults with no path.
func DefaultConfig() Config {
	return Config{
		VariablePrefix:   DefaultVariablePrefix,
		MaxFieldLength:   DefaultMaxFieldLength,
		NewlineMode:      NewlineSpace,
		Ellipsis:         DefaultEllipsis,
		ReferenceChars:   append([]string(nil), DefaultReferenceChars...),
		FallbackEncoding: DefaultFallbackEncoding,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.VariablePrefix == "" {
		c.VariablePrefix = d.VariablePrefix
	}
	if c.MaxFieldLength == 0 {
		c.MaxFieldLength = d.MaxFieldLength
	}
	if c.NewlineMode == "" {
		c.NewlineMode = d.NewlineMode
	}
	if c.Ellipsis == "" {
		c.Ellipsis = d.Ellipsis
	}
	if c.ReferenceChars == nil {
		c.ReferenceChars = d.ReferenceChars
	}
	if c.FallbackEncoding == "" {
		c.FallbackEncoding = d.FallbackEncoding
	}
	return c
}

// Validate checks the config values that cannot be defaulted.
func (c Config) Validate() error {
	if c.MaxFieldLength < 0 {
		return fmt.Errorf("max field length must not be negative, got %d", c.MaxFieldLength)
	}
	if _, err := ParseNewlineMode(string(c.NewlineMode)); err != nil {
		return err
	}
	if _, err := lookupEncoding(c.withDefaults().FallbackEncoding); err != nil {
		return err
	}
	return nil
}

// Destination describes the file that was written.
type Destination struct {
	Path     string `json:"path"`
	Encoding string `json:"encoding"`
	Fields   int    `json:"fields"`
	Bytes    int    `json:"bytes"`
	FellBack bool   `json:"fell_back"`
	// Reason is why verification failed when FellBack is set.
	Reason string `json:"reason,omitempty"`
}

// FileSystem is the storage the exporter writes to and verifies against.
type FileSystem interface {
	WriteFile(path string, data []byte) error
	ReadFile(path string) ([]byte, error)
}

// OSFileSystem writes atomically to the local disk.
type OSFileSystem struct{}

// WriteFile replaces path atomically.
func (OSFileSystem) WriteFile(path string, data []byte) error {
	return atomicfile.WriteFile(path, data, 0)
}

// ReadFile reads path.
func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Exporter writes record sets to CSV files.
type Exporter struct {
	fs     FileSystem
	logger zerolog.Logger
}

// NewExporter creates an exporter. A nil fs means the local disk.
func NewExporter(fs FileSystem, logger zerolog.Logger) *Exporter {
	if fs == nil {
		fs = OSFileSystem{}
	}
	return &Exporter{fs: fs, logger: logging.ComponentLogger(logger, "export")}
}

// Rows returns the header and content lines for records, without line
// terminators. Both rows always have len(records) fields; an empty record set
// yields a single empty quoted field per row.
func Rows(records []batch.ItemRecord, cfg Config) (header, content string) {
	cfg = cfg.withDefaults()
	if len(records) == 0 {
		return `""`, `""`
	}

	names := make([]string, len(records))
	values := make([]string, len(records))
	for i, rec := range records {
		names[i] = quote(fmt.Sprintf("%s%d", cfg.VariablePrefix, i+1))
		values[i] = FormatField(FieldText(rec), cfg)
	}
	return strings.Join(names, ","), strings.Join(values, ",")
}

// FieldText picks the text exported for rec: the captured post-operation text,
// or the original text when nothing was captured afterwards.
func FieldText(rec batch.ItemRecord) string {
	if rec.Post.CurrentText != "" {
		return rec.Post.CurrentText
	}
	return rec.Pre.OriginalText
}

// Export writes records to cfg.Path, verifies the result and falls back to the
// legacy encoding when the text did not survive. Errors are returned only when
// no usable file could be written; the records are never modified.
func (e *Exporter) Export(ctx context.Context, records []batch.ItemRecord, cfg Config) (*Destination, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, ErrNoDestination
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid export config: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	header, content := Rows(records, cfg)
	text := header + "\n" + content + "\n"
	data := []byte(BOM + text)

	log := e.logger.With().Str("path", cfg.Path).Int("fields", len(records)).Logger()

	if err := e.fs.WriteFile(cfg.Path, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", cfg.Path, err)
	}

	dest := &Destination{
		Path:     cfg.Path,
		Encoding: EncodingUTF8BOM,
		Fields:   len(records),
		Bytes:    len(data),
	}

	readBack, err := e.fs.ReadFile(cfg.Path)
	if err == nil {
		err = verify(readBack, header, content, cfg.ReferenceChars)
	}
	if err == nil {
		log.Info().Str("encoding", dest.Encoding).Msg("csv exported")
		return dest, nil
	}

	log.Warn().Err(err).Str("fallback", cfg.FallbackEncoding).Msg("utf-8 verification failed, rewriting in fallback encoding")

	name, encoded, encErr := encodeFallback(text, cfg.FallbackEncoding)
	if encErr != nil {
		return nil, fmt.Errorf("fallback encoding: %w", encErr)
	}
	if writeErr := e.fs.WriteFile(cfg.Path, encoded); writeErr != nil {
		return nil, fmt.Errorf("write %s in %s: %w", cfg.Path, name, writeErr)
	}

	dest.Encoding = name
	dest.Bytes = len(encoded)
	dest.FellBack = true
	dest.Reason = err.Error()
	log.Info().Str("encoding", name).Msg("csv exported with fallback encoding")
	return dest, nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
