package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/varbatch/internal/config"
	"github.com/rshade/varbatch/internal/engine/cache"
	"github.com/rshade/varbatch/internal/export"
	"github.com/rshade/varbatch/internal/tui"
)

var errCacheDisabled = errors.New("the result cache is disabled (cache.enabled: false)")

// ExportOptions holds the flags of the export command.
type ExportOptions struct {
	Job            string
	CSV            string
	VariablePrefix string
	NewlineMode    string
	MaxFieldLength int
	Encoding       string
}

// NewExportCmd creates the export command, which writes the CSV for a job
// stored in the result cache.
func NewExportCmd() *cobra.Command {
	var opts ExportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a cached job as a two-row CSV",
		Long: `Writes the two-row CSV for a job kept in the result cache. Use this to
export a run that was started without --csv, or to export again with
different field settings.`,
		Example: `  # Export the most recent job
  varbatch export --csv out.csv

  # Export a specific job with another variable prefix
  varbatch export --job 01J9Z3K4V6Q8 --csv out.csv --prefix Campo`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Job, "job", "latest", "job ID, or 'latest'")
	f.StringVar(&opts.CSV, "csv", "", "CSV file to write (required)")
	f.StringVar(&opts.VariablePrefix, "prefix", "", "header prefix (default from config)")
	f.StringVar(&opts.NewlineMode, "newline-mode", "", "line breaks in fields: space or escaped")
	f.IntVar(&opts.MaxFieldLength, "max-field-length", 0, "truncate fields longer than this")
	f.StringVar(&opts.Encoding, "fallback-encoding", "", "encoding used when UTF-8 verification fails")
	_ = cmd.MarkFlagRequired("csv")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	ctx := cmd.Context()
	cfg := config.GetGlobalConfig()
	if !cfg.Cache.Enabled {
		return errCacheDisabled
	}

	expCfg := cfg.Export
	expCfg.Path = opts.CSV
	if opts.VariablePrefix != "" {
		expCfg.VariablePrefix = opts.VariablePrefix
	}
	if opts.NewlineMode != "" {
		mode, err := export.ParseNewlineMode(opts.NewlineMode)
		if err != nil {
			return err
		}
		expCfg.NewlineMode = mode
	}
	if opts.MaxFieldLength > 0 {
		expCfg.MaxFieldLength = opts.MaxFieldLength
	}
	if opts.Encoding != "" {
		expCfg.FallbackEncoding = opts.Encoding
	}
	if err := expCfg.Validate(); err != nil {
		return err
	}

	store, err := openResultStore(cfg)
	if err != nil {
		return err
	}
	stored, err := loadStored(store, opts.Job)
	if err != nil {
		return err
	}

	gov, err := cfg.Governor.Build("")
	if err != nil {
		return err
	}
	prompter := NewTerminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr(),
		tui.IsInputTTY(), cfg.Prompts.AutoPrompter())

	dest, err := exportRecords(ctx, cmd, stored.Result.Records, expCfg, gov, prompter)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}

	cmd.Printf("Exported job %s (%d fields) to %s [%s]\n",
		stored.Result.JobID, dest.Fields, dest.Path, dest.Encoding)
	return nil
}

// loadStored loads one job, or the latest when job is "latest" or empty.
func loadStored(store *cache.ResultStore, job string) (*cache.StoredResult, error) {
	var (
		stored *cache.StoredResult
		err    error
	)
	if job == "" || job == "latest" {
		stored, err = store.Latest()
	} else {
		stored, err = store.Load(job)
	}
	if cache.IsMissing(err) {
		return nil, fmt.Errorf("job %q not found in the result cache (see 'varbatch jobs list')", job)
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}
