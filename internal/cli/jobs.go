package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/varbatch/internal/cli/pagination"
	"github.com/rshade/varbatch/internal/config"
	"github.com/rshade/varbatch/internal/engine/batch"
	"github.com/rshade/varbatch/internal/engine/cache"
	"github.com/rshade/varbatch/internal/tui"
)

// newJobsCmd creates the jobs command group for the result cache.
func newJobsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect and clean cached job results"}
	cmd.AddCommand(NewJobsListCmd(), NewJobsShowCmd(), NewJobsCleanCmd())
	return cmd
}

// NewJobsListCmd creates the jobs list command.
func NewJobsListCmd() *cobra.Command {
	params := pagination.NewParams()
	var (
		sortExpr string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs kept in the result cache",
		Example: `  # Newest first
  varbatch jobs list

  # Jobs with the most failures
  varbatch jobs list --sort failed:desc --limit 5

  # Second page of ten
  varbatch jobs list --limit 10 --page 2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			field, order, err := pagination.ParseSort(sortExpr)
			if err != nil {
				return err
			}
			params.SortField, params.SortOrder = field, order
			if err = params.Validate(); err != nil {
				return err
			}
			return runJobsList(cmd, params, asJSON)
		},
	}

	f := cmd.Flags()
	f.IntVar(&params.Limit, "limit", pagination.DefaultLimit, "maximum jobs to show (0 = all)")
	f.IntVar(&params.Offset, "offset", 0, "jobs to skip")
	f.IntVar(&params.Page, "page", 0, "1-based page of --limit jobs")
	f.StringVar(&sortExpr, "sort", "", "sort as field[:asc|desc]; fields: finished, records, failed, job, operation, phase")
	f.BoolVar(&asJSON, "json", false, "print JSON")

	return cmd
}

func runJobsList(cmd *cobra.Command, params pagination.Params, asJSON bool) error {
	cfg := config.GetGlobalConfig()
	if !cfg.Cache.Enabled {
		return errCacheDisabled
	}
	store, err := openResultStore(cfg)
	if err != nil {
		return err
	}
	jobs, err := store.List()
	if err != nil {
		return err
	}
	sorted, err := pagination.SortJobs(jobs, params.SortField, params.SortOrder)
	if err != nil {
		return err
	}
	window := pagination.Apply(params, sorted)
	meta := pagination.NewMeta(params, len(sorted), len(window))

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Jobs       []cache.JobSummary `json:"jobs"`
			Pagination pagination.Meta    `json:"pagination"`
		}{window, meta})
	}

	if len(window) == 0 {
		cmd.Println("No cached jobs.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // Column padding.
	fmt.Fprintln(w, "JOB\tOPERATION\tPHASE\tRECORDS\tFAILED\tFINISHED\tEXPIRES IN\tSOURCE")
	for _, j := range window {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			j.JobID, j.Operation, j.Phase, j.Records, j.Failed,
			j.Finished.Local().Format(time.DateTime), cache.FormatDuration(j.ExpiresIn), j.Document)
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if meta.HasNext {
		cmd.Printf("\nShowing %d of %d jobs (page %d of %d).\n",
			meta.Shown, meta.TotalItems, meta.CurrentPage, meta.TotalPages)
	}
	return nil
}

// NewJobsShowCmd creates the jobs show command, which lists the item records
// of one cached job. On a terminal it opens a scrollable browser.
func NewJobsShowCmd() *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "show [job]",
		Short: "Show the item records of a cached job",
		Args:  cobra.MaximumNArgs(1),
		Example: `  # Browse the most recent job
  varbatch jobs show

  # Print the failed items of a job
  varbatch jobs show 01J9Z3K4V6Q8 --failed --plain`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetGlobalConfig()
			if !cfg.Cache.Enabled {
				return errCacheDisabled
			}
			store, err := openResultStore(cfg)
			if err != nil {
				return err
			}
			job := "latest"
			if len(args) == 1 {
				job = args[0]
			}
			stored, err := loadStored(store, job)
			if err != nil {
				return err
			}

			records := stored.Result.Records
			title := fmt.Sprintf("%s  %s  %s", stored.Result.JobID, stored.Operation, stored.Result.Phase)
			plain, _ := cmd.Flags().GetBool("plain")
			if tui.DetectOutputMode(plain, false, !tui.IsInputTTY()) == tui.OutputModeInteractive {
				model := tui.NewRecordsModel(title, records)
				if failedOnly {
					model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
				}
				_, err = tea.NewProgram(model, tea.WithContext(cmd.Context()), tea.WithAltScreen()).Run()
				return err
			}
			return printRecords(cmd, title, records, failedOnly)
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "show only failed items")

	return cmd
}

func printRecords(cmd *cobra.Command, title string, records []batch.ItemRecord, failedOnly bool) error {
	cmd.Println(title)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // Column padding.
	fmt.Fprintln(w, "INDEX\tSTATUS\tKIND\tTEXT\tERROR")
	shown := 0
	for _, r := range records {
		if failedOnly && !r.Failed() {
			continue
		}
		status := "ok"
		if r.Failed() {
			status = "failed"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			r.Index, status, r.Pre.ObjectKind, strings.Join(strings.Fields(r.Post.CurrentText), " "), r.Error)
		shown++
	}
	if err := w.Flush(); err != nil {
		return err
	}
	cmd.Printf("\n%d of %d records shown.\n", shown, len(records))
	return nil
}

// NewJobsCleanCmd creates the jobs clean command.
func NewJobsCleanCmd() *cobra.Command {
	var (
		all bool
		job string
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove expired jobs, one job, or all jobs from the result cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			if !cfg.Cache.Enabled {
				return errCacheDisabled
			}
			store, err := openResultStore(cfg)
			if err != nil {
				return err
			}

			switch {
			case all:
				if err = store.Clear(); err != nil {
					return err
				}
				cmd.Println("Removed all cached jobs.")
			case job != "":
				if err = store.Delete(job); err != nil {
					return err
				}
				cmd.Printf("Removed job %s.\n", job)
			default:
				removed, pruneErr := store.Prune()
				if pruneErr != nil {
					return pruneErr
				}
				cmd.Printf("Removed %d expired jobs.\n", removed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove every cached job")
	cmd.Flags().StringVar(&job, "job", "", "remove only this job")
	cmd.MarkFlagsMutuallyExclusive("all", "job")

	return cmd
}
