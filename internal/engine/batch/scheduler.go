package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/varbatch/internal/hostapi"
	"github.com/rshade/varbatch/internal/logging"
)

// Scheduler errors.
var (
	ErrDeclined       = errors.New("processing declined")
	ErrAlreadyRunning = errors.New("a job is already running on this scheduler")
	ErrNilHost        = errors.New("host cannot be nil")
	ErrNilOperation   = errors.New("operation cannot be nil")
)

// Observer receives scheduler events. Implementations must not block.
type Observer interface {
	PhaseChanged(from, to Phase)
	ItemProcessed(rec ItemRecord, took time.Duration)
	ChunkCompleted(index, size int)
	ReclaimHinted()
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) PhaseChanged(Phase, Phase)              {}
func (NopObserver) ItemProcessed(ItemRecord, time.Duration) {}
func (NopObserver) ChunkCompleted(int, int)                {}
func (NopObserver) ReclaimHinted()                          {}

// MultiObserver fans events out to several observers. nil entries are skipped.
type MultiObserver []Observer

func (m MultiObserver) PhaseChanged(from, to Phase) {
	for _, o := range m {
		if o != nil {
			o.PhaseChanged(from, to)
		}
	}
}

func (m MultiObserver) ItemProcessed(rec ItemRecord, took time.Duration) {
	for _, o := range m {
		if o != nil {
			o.ItemProcessed(rec, took)
		}
	}
}

func (m MultiObserver) ChunkCompleted(index, size int) {
	for _, o := range m {
		if o != nil {
			o.ChunkCompleted(index, size)
		}
	}
}

func (m MultiObserver) ReclaimHinted() {
	for _, o := range m {
		if o != nil {
			o.ReclaimHinted()
		}
	}
}

// Options configure a Scheduler. Zero values select safe defaults.
type Options struct {
	Governor      Governor
	ChunkSizeHint int
	Clock         Clock
	Prompter      Prompter
	Reporter      Reporter
	Observer      Observer

	// Reclaim is the reclamation hint. nil means no-op, which is correct for
	// a garbage-collected runtime.
	Reclaim func()

	Logger zerolog.Logger
}

// Result is what a job hands to the exporter.
type Result struct {
	JobID      string       `json:"job_id"`
	Phase      Phase        `json:"phase"`
	Records    []ItemRecord `json:"records"`
	Total      int          `json:"total"`
	Selected   int          `json:"selected"`
	Capped     int          `json:"capped"`
	Failed     int          `json:"failed"`
	ChunkSize  int          `json:"chunk_size"`
	Extensions int          `json:"extensions"`
	Reclaims   int          `json:"reclaims"`
	Started    time.Time    `json:"started"`
	Finished   time.Time    `json:"finished"`
}

// Duration returns how long the job ran.
func (r *Result) Duration() time.Duration {
	if r == nil || r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// Scheduler drives the ItemProcessor over a host collection in chunks.
// One Scheduler runs one job at a time; its JobState is never shared.
type Scheduler struct {
	opts      Options
	processor *ItemProcessor
	logger    zerolog.Logger

	mu    sync.Mutex
	state JobState
	stop  context.CancelFunc
}

// NewScheduler validates the options and creates a scheduler.
func NewScheduler(opts Options) (*Scheduler, error) {
	if opts.Governor == (Governor{}) {
		opts.Governor = DefaultGovernor()
	}
	if err := opts.Governor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid governor: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Prompter == nil {
		opts.Prompter = AutoPrompter{Accept: false, Decision: DecisionStop}
	}
	if opts.Reporter == nil {
		opts.Reporter = ReporterFunc(func(int, int) {})
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Reclaim == nil {
		opts.Reclaim = func() {}
	}

	logger := logging.ComponentLogger(opts.Logger, "scheduler")
	return &Scheduler{
		opts:      opts,
		processor: NewItemProcessor(opts.Governor, opts.Clock, logger),
		logger:    logger,
	}, nil
}

// Governor returns the policy in use.
func (s *Scheduler) Governor() Governor {
	return s.opts.Governor
}

// ChunkSize returns the effective chunk size after clamping the hint.
func (s *Scheduler) ChunkSize() int {
	return s.opts.Governor.ClampChunk(s.opts.ChunkSizeHint)
}

// CalculateChunks returns the [start, end] 1-based index pairs for totalItems.
func (s *Scheduler) CalculateChunks(totalItems int) [][2]int {
	size := s.ChunkSize()
	var chunks [][2]int
	for start := 1; start <= totalItems; start += size {
		chunks = append(chunks, [2]int{start, min(start+size-1, totalItems)})
	}
	return chunks
}

// Cancel requests cooperative cancellation. It takes effect at the next chunk
// boundary; the chunk in flight always finishes.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.CancelRequested = true
	if s.stop != nil {
		s.stop()
	}
}

// State returns a snapshot of the current job state.
func (s *Scheduler) State() JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run processes every item of h with op. It returns the records collected so
// far together with ErrDeclined when a confirmation gate is declined; in every
// other case the error is nil and Result.Phase says how the job ended.
func (s *Scheduler) Run(ctx context.Context, h hostapi.Host, op hostapi.Operation) (*Result, error) {
	if h == nil {
		return nil, ErrNilHost
	}
	if op == nil {
		return nil, ErrNilOperation
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	if err := s.begin(stop); err != nil {
		return nil, err
	}

	g := s.opts.Governor
	length := hostapi.Read(h.Len, 0)
	n := max(length.Value, 0)
	chunkSize := s.ChunkSize()
	res := &Result{
		JobID:     s.State().ID,
		Phase:     PhaseIdle,
		Selected:  n,
		ChunkSize: chunkSize,
		Records:   []ItemRecord{},
	}

	log := s.logger.With().Str("job_id", res.JobID).Str("operation", op.Name()).Logger()
	if length.Err != nil {
		log.Warn().Err(length.Err).Msg("collection size unreadable, treating it as empty")
	}

	for _, gate := range g.Gates(n) {
		if !s.opts.Prompter.Confirm(ctx, gate) {
			log.Info().Str("gate", gate.Level.String()).Int("items", n).Msg("confirmation declined")
			s.finishIdle()
			return res, fmt.Errorf("%w at %s gate (%d items)", ErrDeclined, gate.Level, n)
		}
	}

	total := g.CapItems(n)
	res.Total = total
	res.Capped = n - total
	if res.Capped > 0 {
		log.Warn().Int("selected", n).Int("cap", total).Msg("selection exceeds processing cap, extra items left untouched")
	}

	start := s.opts.Clock.Now()
	deadline := time.Time{}
	if g.Deadline > 0 {
		deadline = start.Add(g.Deadline)
	}
	res.Started = start
	s.setRunning(total, start, deadline)
	log.Info().Int("total", total).Int("chunk_size", chunkSize).Msg("job started")

	// Items are never interrupted mid-flight, so they get a context that
	// ignores cancellation of the run.
	itemCtx := context.WithoutCancel(ctx)

	chunks := s.CalculateChunks(total)
	for chunkIndex, bounds := range chunks {
		for index := bounds[0]; index <= bounds[1]; index++ {
			began := s.opts.Clock.Now()
			rec := s.processor.Process(itemCtx, h, index, op)
			res.Records = append(res.Records, rec)
			if rec.Failed() {
				res.Failed++
			}
			s.setProcessed(len(res.Records))
			s.opts.Observer.ItemProcessed(rec, s.opts.Clock.Now().Sub(began))
			s.opts.Reporter.Report(index, total)

			if g.ReclaimAfterItem(len(res.Records)) {
				s.reclaim(res)
			}
		}
		s.opts.Observer.ChunkCompleted(chunkIndex, bounds[1]-bounds[0]+1)

		if chunkIndex == len(chunks)-1 {
			break
		}

		if g.ReclaimAfterChunk() {
			s.reclaim(res)
		}
		_ = s.opts.Clock.Sleep(runCtx, g.ChunkPause)

		if s.cancelRequested(runCtx) {
			log.Info().Int("processed", len(res.Records)).Msg("job cancelled")
			return s.finish(res, PhaseCancelled), nil
		}

		if !deadline.IsZero() && s.opts.Clock.Now().After(deadline) {
			decision := s.timedOut(ctx, res, start)
			if decision == DecisionStop {
				log.Info().Int("processed", len(res.Records)).Msg("job stopped after timeout")
				return s.finish(res, PhaseCancelled), nil
			}
			deadline = deadline.Add(g.Deadline)
			res.Extensions++
			s.resume(deadline)
			log.Info().Time("deadline", deadline).Msg("deadline extended")
		}
	}

	log.Info().Int("processed", len(res.Records)).Int("failed", res.Failed).Msg("job completed")
	return s.finish(res, PhaseCompleted), nil
}

func (s *Scheduler) begin(stop context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Phase == PhaseRunning || s.state.Phase == PhaseTimedOut {
		return ErrAlreadyRunning
	}
	s.state = JobState{ID: logging.NewID(), Phase: PhaseIdle}
	s.stop = stop
	return nil
}

func (s *Scheduler) setRunning(total int, start, deadline time.Time) {
	s.transition(PhaseRunning, func(st *JobState) {
		st.Total = total
		st.StartTime = start
		st.Deadline = deadline
	})
}

func (s *Scheduler) setProcessed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Processed = n
}

func (s *Scheduler) resume(deadline time.Time) {
	s.transition(PhaseRunning, func(st *JobState) { st.Deadline = deadline })
}

func (s *Scheduler) finishIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Phase = PhaseIdle
	s.stop = nil
}

func (s *Scheduler) finish(res *Result, phase Phase) *Result {
	s.transition(phase, nil)

	s.mu.Lock()
	s.stop = nil
	s.mu.Unlock()

	res.Phase = phase
	res.Finished = s.opts.Clock.Now()
	return res
}

func (s *Scheduler) transition(to Phase, mutate func(*JobState)) {
	s.mu.Lock()
	from := s.state.Phase
	s.state.Phase = to
	if mutate != nil {
		mutate(&s.state)
	}
	s.mu.Unlock()

	if from != to {
		s.opts.Observer.PhaseChanged(from, to)
	}
}

func (s *Scheduler) timedOut(ctx context.Context, res *Result, start time.Time) Decision {
	s.transition(PhaseTimedOut, nil)

	t := Timeout{
		Elapsed:   s.opts.Clock.Now().Sub(start),
		Processed: len(res.Records),
		Total:     res.Total,
		Extension: res.Extensions,
	}
	s.logger.Warn().
		Dur("elapsed", t.Elapsed).
		Int("processed", t.Processed).
		Int("total", t.Total).
		Msg("run deadline reached")

	return s.opts.Prompter.OnTimeout(ctx, t)
}

func (s *Scheduler) cancelRequested(ctx context.Context) bool {
	s.mu.Lock()
	requested := s.state.CancelRequested
	s.mu.Unlock()
	return requested || ctx.Err() != nil
}

func (s *Scheduler) reclaim(res *Result) {
	s.opts.Reclaim()
	res.Reclaims++
	s.opts.Observer.ReclaimHinted()
}
