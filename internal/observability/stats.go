package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

type StatsSnapshot struct {
	Runs              uint64            `json:"runs"`
	RunsBlocked       uint64            `json:"runs_blocked"`
	RunsEmpty         uint64            `json:"runs_empty"`
	RunsFailed        uint64            `json:"runs_failed"`
	SearchCalls       uint64            `json:"search_calls"`
	PagesFetched      uint64            `json:"pages_fetched"`
	PlannerCalls      uint64            `json:"planner_calls"`
	ListingsReturned  uint64            `json:"listings_returned"`
	ErrorsTotal       uint64            `json:"errors_total"`
	RunSecondsAvg     float64           `json:"run_seconds_avg"`
	ErrorsByType      map[string]uint64 `json:"errors_by_type,omitempty"`
	ErrorsByComponent map[string]uint64 `json:"errors_by_component,omitempty"`
}

// Stats collects process counters. It is created once in main and handed to
// the components that report into it; a nil *Stats ignores every call.
type Stats struct {
	runs             uint64
	runsBlocked      uint64
	runsEmpty        uint64
	runsFailed       uint64
	searchCalls      uint64
	pagesFetched     uint64
	plannerCalls     uint64
	listingsReturned uint64
	errorsTotal      uint64

	runCount uint64
	runNanos uint64

	mu                sync.Mutex
	errorsByType      map[string]uint64
	errorsByComponent map[string]uint64
}

func NewStats() *Stats {
	return &Stats{
		errorsByType:      map[string]uint64{},
		errorsByComponent: map[string]uint64{},
	}
}

func (s *Stats) IncRun() {
	if s == nil {
		return
	}
	atomic.AddUint64(&s.runs, 1)
}

func (s *Stats) IncBlocked() {
	if s == nil {
		return
	}
	atomic.AddUint64(&s.runsBlocked, 1)
}

func (s *Stats) IncEmpty() {
	if s == nil {
		return
	}
	atomic.AddUint64(&s.runsEmpty, 1)
}

func (s *Stats) IncFailed() {
	if s == nil {
		return
	}
	atomic.AddUint64(&s.runsFailed, 1)
}

func (s *Stats) IncSearchCall() {
	if s == nil {
		return
	}
	atomic.AddUint64(&s.searchCalls, 1)
}

func (s *Stats) IncPageFetched() {
	if s == nil {
		return
	}
	atomic.AddUint64(&s.pagesFetched, 1)
}

func (s *Stats) IncPlannerCall() {
	if s == nil {
		return
	}
	atomic.AddUint64(&s.plannerCalls, 1)
}

func (s *Stats) AddListings(n int) {
	if s == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&s.listingsReturned, uint64(n))
}

func (s *Stats) ObserveRunDuration(d time.Duration) {
	if s == nil || d <= 0 {
		return
	}
	atomic.AddUint64(&s.runCount, 1)
	atomic.AddUint64(&s.runNanos, uint64(d.Nanoseconds()))
}

func (s *Stats) IncError(errType, component string) {
	if s == nil {
		return
	}
	if errType == "" {
		errType = ErrorUnknown
	}
	if component == "" {
		component = "unknown"
	}
	atomic.AddUint64(&s.errorsTotal, 1)
	s.mu.Lock()
	s.errorsByType[errType]++
	s.errorsByComponent[component]++
	s.mu.Unlock()
}

func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	s.mu.Lock()
	errorsTypeCopy := copyMap(s.errorsByType)
	errorsComponentCopy := copyMap(s.errorsByComponent)
	s.mu.Unlock()

	count := atomic.LoadUint64(&s.runCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&s.runNanos)) / float64(count) / 1e9
	}

	return StatsSnapshot{
		Runs:              atomic.LoadUint64(&s.runs),
		RunsBlocked:       atomic.LoadUint64(&s.runsBlocked),
		RunsEmpty:         atomic.LoadUint64(&s.runsEmpty),
		RunsFailed:        atomic.LoadUint64(&s.runsFailed),
		SearchCalls:       atomic.LoadUint64(&s.searchCalls),
		PagesFetched:      atomic.LoadUint64(&s.pagesFetched),
		PlannerCalls:      atomic.LoadUint64(&s.plannerCalls),
		ListingsReturned:  atomic.LoadUint64(&s.listingsReturned),
		ErrorsTotal:       atomic.LoadUint64(&s.errorsTotal),
		RunSecondsAvg:     avg,
		ErrorsByType:      errorsTypeCopy,
		ErrorsByComponent: errorsComponentCopy,
	}
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
