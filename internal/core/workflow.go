// Package core runs listing searches: it screens the input, lets a planner
// drive the listing tools within fixed budgets and assembles a validated
// batch from what the tools actually observed.
package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/ai"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/guardrail"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/listing"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/observability"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/search"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/store"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/urlutil"
)

var (
	// ErrSchemaViolation means the assembled batch failed validation.
	ErrSchemaViolation = errors.New("result failed listing schema validation")
	// ErrRunUndefined means the run ended without any usable output.
	ErrRunUndefined = errors.New("run produced no output")
)

type Searcher interface {
	Search(ctx context.Context, query string, limit int) []search.Result
}

// PageSource returns a page's HTML, or "" when it is unavailable.
type PageSource interface {
	Fetch(ctx context.Context, url string) string
}

type Screener interface {
	Check(ctx context.Context, input string) guardrail.Verdict
}

type RunRecorder interface {
	SaveRun(ctx context.Context, run store.Run) error
}

// Limits are the hard per-run budgets.
type Limits struct {
	MaxTurns          int
	MaxSearchCalls    int
	MaxSearchResults  int
	MaxFetches        int
	MaxExtractions    int
	MaxNormalizations int
	RunTimeout        time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxTurns:          6,
		MaxSearchCalls:    1,
		MaxSearchResults:  3,
		MaxFetches:        3,
		MaxExtractions:    3,
		MaxNormalizations: 1,
		RunTimeout:        90 * time.Second,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxTurns <= 0 {
		l.MaxTurns = d.MaxTurns
	}
	if l.MaxSearchCalls <= 0 {
		l.MaxSearchCalls = d.MaxSearchCalls
	}
	if l.MaxSearchResults <= 0 {
		l.MaxSearchResults = d.MaxSearchResults
	}
	if l.MaxFetches <= 0 {
		l.MaxFetches = d.MaxFetches
	}
	if l.MaxExtractions <= 0 {
		l.MaxExtractions = d.MaxExtractions
	}
	// The batch is assembled exactly once.
	l.MaxNormalizations = 1
	if l.RunTimeout <= 0 {
		l.RunTimeout = d.RunTimeout
	}
	return l
}

// Deps are the shared collaborators of every run. Gate and Recorder may be
// nil.
type Deps struct {
	Planner  ai.Planner
	Searcher Searcher
	Pages    PageSource
	Gate     Screener
	Recorder RunRecorder
	Limits   Limits
	Domains  []string
	Stats    *observability.Stats
	Logger   *slog.Logger
}

// Workflow holds what runs share. Each Execute call builds its own Run, so
// concurrent requests never share budgets, state or seen-sets.
type Workflow struct {
	planner    ai.Planner
	searcher   Searcher
	pages      PageSource
	gate       Screener
	recorder   RunRecorder
	limits     Limits
	domains    []string
	normalizer *listing.Normalizer
	stats      *observability.Stats
	logger     *slog.Logger
}

func NewWorkflow(d Deps) *Workflow {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if len(d.Domains) == 0 {
		d.Domains = urlutil.ListingDomains
	}
	return &Workflow{
		planner:    d.Planner,
		searcher:   d.Searcher,
		pages:      d.Pages,
		gate:       d.Gate,
		recorder:   d.Recorder,
		limits:     d.Limits.withDefaults(),
		domains:    d.Domains,
		normalizer: listing.NewNormalizer(listing.MaxListings, d.Logger),
		stats:      d.Stats,
		logger:     d.Logger,
	}
}

func (w *Workflow) Limits() Limits {
	return w.limits
}

// Usage counts the tool calls a run issued.
type Usage struct {
	Searches       int `json:"searches"`
	Fetches        int `json:"fetches"`
	Extractions    int `json:"extractions"`
	Normalizations int `json:"normalizations"`
}

type RunResult struct {
	ID         string
	State      State
	Listings   []listing.Listing
	OutputText string
	Blocked    bool
	Guardrail  guardrail.Verdict
	Turns      int
	Usage      Usage
	Duration   time.Duration
}

// Execute screens input and, unless blocked, runs the tool loop to a
// terminal state. Only a schema violation, a run without output or a
// cancelled request produce an error.
func (w *Workflow) Execute(ctx context.Context, input string) (*RunResult, error) {
	run := newRun(w, input)
	start := time.Now()
	w.stats.IncRun()

	res, err := run.execute(ctx)
	if res == nil {
		res = run.result()
	}
	res.Duration = time.Since(start)
	w.stats.ObserveRunDuration(res.Duration)

	switch {
	case err != nil:
		w.stats.IncFailed()
		kind := observability.ErrorUnknown
		if errors.Is(err, ErrSchemaViolation) {
			kind = observability.ErrorSchema
		} else if errors.Is(err, ErrRunUndefined) {
			kind = observability.ErrorAI
		}
		w.stats.IncError(kind, "workflow")
		w.logger.Error("run failed", "run_id", run.id, "state", run.state.String(), "error", err)
	case res.Blocked:
		w.stats.IncBlocked()
	case res.State == StateEmptyResult:
		w.stats.IncEmpty()
	default:
		w.stats.AddListings(len(res.Listings))
	}

	w.record(ctx, run, res, err)
	return res, err
}

func (w *Workflow) record(ctx context.Context, run *Run, res *RunResult, runErr error) {
	if w.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	rec := store.Run{
		ID:           res.ID,
		Planner:      w.planner.Name(),
		State:        res.State.String(),
		ListingCount: len(res.Listings),
		Turns:        res.Turns,
		DurationMS:   res.Duration.Milliseconds(),
		Blocked:      res.Blocked,
		Output:       res.OutputText,
	}
	// Blocked input may carry personal data; it is not kept.
	if !res.Blocked {
		rec.Input = run.input
	}
	if runErr != nil {
		rec.State = "failed"
		rec.Error = runErr.Error()
	}
	if err := w.recorder.SaveRun(ctx, rec); err != nil {
		w.stats.IncError(observability.ErrorStore, "store")
		w.logger.Warn("failed to record run", "run_id", res.ID, "error", err)
	}
}
