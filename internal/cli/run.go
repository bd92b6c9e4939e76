package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/rshade/varbatch/internal/config"
	"github.com/rshade/varbatch/internal/engine/batch"
	"github.com/rshade/varbatch/internal/engine/cache"
	"github.com/rshade/varbatch/internal/export"
	"github.com/rshade/varbatch/internal/hostapi"
	"github.com/rshade/varbatch/internal/metrics"
	"github.com/rshade/varbatch/internal/tui"
)

// RunOptions holds the flags of the run command.
type RunOptions struct {
	Document        string
	Action          string
	CSV             string
	ChunkSize       int
	Deadline        time.Duration
	MaxItems        int
	Yes             bool
	OnTimeout       string
	HostAddr        string
	MetricsFile     string
	Save            bool
	Command         string
	Kinds           []string
	IDs             []string
	FailOnItemError bool
}

// NewRunCmd creates the run command, which processes every selected item of
// a document with one action.
func NewRunCmd() *cobra.Command {
	var opts RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply an action to every item, a few at a time",
		Long: `Applies one action to every selected item of a document in small chunks,
pausing between chunks. Large selections ask for confirmation first; runs that
pass the deadline ask whether to continue. The first Ctrl+C stops the run at
the next chunk boundary and keeps everything processed so far.

Results are stored in the result cache and can be exported as a two-row CSV
now (--csv) or later (varbatch export).`,
		Example: `  # Bind text objects to variables, export and save the document
  varbatch run --document drawing.yaml --action setvar --csv out.csv --save

  # Only process two objects
  varbatch run -d drawing.yaml -a upper --ids t1,t7

  # Pipe each text through a command
  varbatch run -d drawing.yaml -a exec --command "tr a-z A-Z"

  # Unattended
  varbatch run -d drawing.yaml -a setvar --yes --on-timeout continue --plain`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Document, "document", "d", "", "document to process (YAML or JSON)")
	f.StringVarP(&opts.Action, "action", "a", "setvar", "action applied to each item")
	f.StringVar(&opts.CSV, "csv", "", "export results to this CSV file")
	f.IntVar(&opts.ChunkSize, "chunk-size", 0, "items per chunk (clamped to the safety ceiling)")
	f.DurationVar(&opts.Deadline, "deadline", 0, "run time before asking whether to continue")
	f.IntVar(&opts.MaxItems, "max-items", 0, "process at most this many items")
	f.BoolVarP(&opts.Yes, "yes", "y", false, "accept size confirmations without asking")
	f.StringVar(&opts.OnTimeout, "on-timeout", "", "answer when nobody can be asked: stop or continue")
	f.StringVar(&opts.HostAddr, "host-addr", "", "process a document served by 'varbatch serve' at this address")
	f.StringVar(&opts.MetricsFile, "metrics-file", "", "write Prometheus metrics in textfile format")
	f.BoolVar(&opts.Save, "save", false, "save the modified document in place")
	f.StringVar(&opts.Command, "command", "", "command line for the exec action")
	f.StringSliceVar(&opts.Kinds, "kinds", nil, "only process objects of these kinds")
	f.StringSliceVar(&opts.IDs, "ids", nil, "only process these object IDs")
	f.BoolVar(&opts.FailOnItemError, "fail-on-item-error", false,
		fmt.Sprintf("exit with code %d when any item failed", ExitItemFailures))

	return cmd
}

// applyRunFlags copies explicitly set flags into cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, opts *RunOptions) {
	f := cmd.Flags()
	if f.Changed("chunk-size") {
		cfg.Governor.ChunkSize = opts.ChunkSize
	}
	if f.Changed("deadline") {
		cfg.Governor.Deadline = opts.Deadline
	}
	if f.Changed("max-items") {
		cfg.Governor.MaxItems = opts.MaxItems
	}
	if opts.Yes {
		cfg.Prompts.AssumeYes = true
	}
	if f.Changed("on-timeout") {
		cfg.Prompts.OnTimeout = strings.ToLower(opts.OnTimeout)
	}
	if f.Changed("host-addr") {
		cfg.Host.Addr = opts.HostAddr
	}
	if f.Changed("kinds") {
		cfg.Host.Kinds = opts.Kinds
	}
	if f.Changed("command") {
		cfg.Host.Command = strings.Fields(opts.Command)
	}
}

//nolint:funlen,gocognit // Sequential orchestration of one job.
func runRun(cmd *cobra.Command, opts *RunOptions) error {
	ctx := cmd.Context()
	cfg := config.GetGlobalConfig()
	applyRunFlags(cmd, cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if opts.Save && cfg.Host.Addr != "" {
		return errSaveWithoutFile
	}

	gov, err := cfg.Governor.Build("")
	if err != nil {
		return err
	}

	session, err := openHost(ctx, cfg, opts.Document, opts.Action, opts.IDs)
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	plain, _ := cmd.Flags().GetBool("plain")
	interactiveInput := tui.IsInputTTY()
	mode := tui.DetectOutputMode(plain, false, !interactiveInput)
	prompter := NewTerminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr(),
		interactiveInput && mode != tui.OutputModePlain, cfg.Prompts.AutoPrompter())

	m := metrics.New()
	job := &jobRunner{
		opts: batch.Options{
			Governor:      gov,
			ChunkSizeHint: gov.ChunkSize,
			Logger:        logger,
		},
		session:  session,
		prompter: prompter,
		metrics:  m,
		out:      cmd.ErrOrStderr(),
		holdLogs: logsOnTerminal,
	}

	var res *batch.Result
	var runErr error
	if mode == tui.OutputModeInteractive {
		res, runErr = job.runInteractive(ctx)
	} else {
		res, runErr = job.runHeadless(ctx, mode)
	}

	if errors.Is(runErr, batch.ErrDeclined) {
		cmd.PrintErrf("Nothing processed: %v\n", runErr)
		return &ExitError{Code: ExitDeclined, Reason: runErr.Error()}
	}
	if runErr != nil && res == nil {
		return runErr
	}
	if runErr != nil {
		logger.Warn().Ctx(ctx).Err(runErr).Msg("job ended with an error, keeping partial results")
	}

	var dest *export.Destination
	var exportErr error
	if opts.CSV != "" || cfg.Export.Path != "" {
		expCfg := cfg.Export
		if opts.CSV != "" {
			expCfg.Path = opts.CSV
		}
		dest, exportErr = exportRecords(ctx, cmd, res.Records, expCfg, gov, prompter)
		if exportErr != nil {
			cmd.PrintErrf("Export failed: %v\n", exportErr)
		}
	}

	if opts.Save && session.Document != nil {
		if err = session.Document.Save(""); err != nil {
			return fmt.Errorf("saving document: %w", err)
		}
		cmd.PrintErrf("Saved %s\n", session.Document.Path())
	}

	storeResult(ctx, cfg, res, cache.JobMeta{Operation: session.Operation.Name(), Document: session.Source})

	if opts.MetricsFile != "" {
		if err = m.WriteTextfile(opts.MetricsFile); err != nil {
			logger.Warn().Ctx(ctx).Err(err).Str("path", opts.MetricsFile).Msg("could not write metrics file")
		}
	}

	printSummary(cmd, mode, res, dest)

	switch {
	case res.Phase == batch.PhaseCancelled:
		return &ExitError{Code: ExitCancelled, Reason: "job cancelled"}
	case exportErr != nil:
		return &ExitError{Code: ExitFailure, Reason: "export failed: " + exportErr.Error()}
	case opts.FailOnItemError && res.Failed > 0:
		return &ExitError{Code: ExitItemFailures, Reason: fmt.Sprintf("%d items failed", res.Failed)}
	}
	return nil
}

// jobRunner drives one scheduler run in either interactive or headless mode.
type jobRunner struct {
	opts     batch.Options
	session  *hostSession
	prompter batch.Prompter
	metrics  *metrics.Metrics
	out      io.Writer
	// holdLogs buffers job log lines while the interactive view owns the
	// terminal; they are written out once it closes.
	holdLogs bool
}

// itemCount reads the host length, or 0 when the host cannot report it.
func (j *jobRunner) itemCount() int {
	return hostapi.Read(j.session.Host.Len, 0).Value
}

func (j *jobRunner) title() string {
	return fmt.Sprintf("%s on %s", j.session.Operation.Name(), j.session.Source)
}

// runHeadless runs the job with a progress bar (styled) or log lines
// (plain). The first interrupt requests cancellation, the second aborts.
func (j *jobRunner) runHeadless(ctx context.Context, mode tui.OutputMode) (*batch.Result, error) {
	opts := j.opts
	opts.Prompter = j.prompter
	opts.Observer = j.metrics

	var bar *tui.BarReporter
	if mode == tui.OutputModeStyled {
		bar = tui.NewBarReporter(j.out, j.itemCount(), j.title())
		opts.Reporter = bar
	} else {
		opts.Reporter = batch.LogReporter{Logger: logger}
	}

	sched, err := batch.NewScheduler(opts)
	if err != nil {
		return nil, err
	}

	runCtx, abort := context.WithCancel(ctx)
	defer abort()
	stop := watchInterrupts(j.out, sched, abort)
	defer stop()

	res, err := sched.Run(runCtx, j.session.Host, j.session.Operation)
	if bar != nil {
		bar.Finish()
	}
	return res, err
}

// runInteractive runs the job next to a Bubble Tea progress view. Prompts
// are answered inside the view.
func (j *jobRunner) runInteractive(ctx context.Context) (*batch.Result, error) {
	var sched *batch.Scheduler
	model := tui.NewProgressModel(j.title(), j.itemCount(), j.opts.Governor.ClampChunk(j.opts.ChunkSizeHint),
		func() { sched.Cancel() })
	program := tea.NewProgram(model, tea.WithContext(ctx), tea.WithOutput(j.out))
	bridge := tui.NewBridge(program)

	opts := j.opts
	opts.Prompter = bridge
	opts.Reporter = bridge
	opts.Observer = batch.MultiObserver{j.metrics, bridge}
	var held bytes.Buffer
	if j.holdLogs {
		opts.Logger = opts.Logger.Output(zerolog.SyncWriter(&held))
		defer func() { _, _ = held.WriteTo(j.out) }()
	}
	sched, err := batch.NewScheduler(opts)
	if err != nil {
		return nil, err
	}

	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()

	var (
		res    *batch.Result
		runErr error
		g      errgroup.Group
	)
	g.Go(func() error {
		_, err := program.Run()
		// The view is gone; nobody is left to answer prompts.
		sched.Cancel()
		cancelJob()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		res, runErr = sched.Run(jobCtx, j.session.Host, j.session.Operation)
		bridge.Done(res, runErr)
		return nil
	})
	if err = g.Wait(); err != nil {
		return res, fmt.Errorf("progress view: %w", err)
	}
	return res, runErr
}

// watchInterrupts cancels the scheduler cooperatively on the first SIGINT
// and calls abort on the second.
func watchInterrupts(w io.Writer, sched *batch.Scheduler, abort context.CancelFunc) func() {
	sigCh := make(chan os.Signal, 2) //nolint:mnd // first and second interrupt
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})

	go func() {
		count := 0
		for {
			select {
			case <-done:
				return
			case <-sigCh:
				count++
				if count == 1 {
					sched.Cancel()
					fmt.Fprintln(w, "\nCancelling after the current chunk. Press Ctrl+C again to abort.")
					continue
				}
				abort()
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// exportRecords asks the export gate, then writes the CSV.
func exportRecords(
	ctx context.Context,
	cmd *cobra.Command,
	records []batch.ItemRecord,
	cfg export.Config,
	gov batch.Governor,
	prompter batch.Prompter,
) (*export.Destination, error) {
	if gate, ok := gov.ExportGate(len(records)); ok && !prompter.Confirm(ctx, gate) {
		cmd.PrintErrln("Export skipped.")
		return nil, nil //nolint:nilnil // Declining the export is not an error.
	}

	exporter := export.NewExporter(export.OSFileSystem{}, logger)
	dest, err := exporter.Export(ctx, records, cfg)
	if err != nil {
		return nil, err
	}
	if dest.FellBack {
		cmd.PrintErrf("Warning: UTF-8 verification failed (%s); wrote %s instead\n", dest.Reason, dest.Encoding)
	}
	return dest, nil
}

// storeResult saves res in the result cache. Failures are logged only.
func storeResult(ctx context.Context, cfg *config.Config, res *batch.Result, meta cache.JobMeta) {
	store, err := openResultStore(cfg)
	if err != nil {
		logger.Warn().Ctx(ctx).Err(err).Msg("result cache unavailable")
		return
	}
	if !store.Enabled() {
		return
	}
	if err = store.Save(res, meta); err != nil {
		logger.Warn().Ctx(ctx).Err(err).Str("job_id", res.JobID).Msg("could not store job results")
		return
	}
	logger.Debug().Ctx(ctx).Str("job_id", res.JobID).Msg("job results stored")
}

func openResultStore(cfg *config.Config) (*cache.ResultStore, error) {
	dir, err := cfg.Cache.CacheDirectory()
	if err != nil {
		return nil, err
	}
	fs, err := cache.NewFileStore(dir, cfg.Cache.Enabled, cfg.Cache.TTLSeconds, cfg.Cache.MaxSizeMB)
	if err != nil {
		return nil, err
	}
	return cache.NewResultStore(fs), nil
}

// printSummary writes the job summary to stdout.
func printSummary(cmd *cobra.Command, mode tui.OutputMode, res *batch.Result, dest *export.Destination) {
	if mode == tui.OutputModePlain {
		cmd.Print(tui.RenderPlainSummary(res, dest))
		return
	}
	width := 0
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width = w
	}
	cmd.Println(tui.RenderSummary(res, dest, width))
}
