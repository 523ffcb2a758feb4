package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/httpx"
)

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ErrorUnknown},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), ErrorTimeout},
		{"429", &httpx.FetchError{Status: http.StatusTooManyRequests}, ErrorRateLimit},
		{"403", &httpx.FetchError{Status: http.StatusForbidden}, ErrorBlocked},
		{"404", &httpx.FetchError{Status: http.StatusNotFound}, ErrorNetwork},
		{"robots", errors.New("disallowed by robots.txt"), ErrorBlocked},
		{"other", errors.New("boom"), ErrorUnknown},
	}
	for _, tt := range tests {
		if got := ClassifyFetchError(tt.err); got != tt.want {
			t.Errorf("%s: ClassifyFetchError = %q; want %q", tt.name, got, tt.want)
		}
	}
}

func TestClassifyUpstreamError(t *testing.T) {
	if got := ClassifyUpstreamError(errors.New("invalid character '<' looking for beginning of value")); got != ErrorParsing {
		t.Errorf("got %q; want parsing", got)
	}
	if got := ClassifyUpstreamError(errors.New("connection refused")); got != ErrorNetwork {
		t.Errorf("got %q; want network", got)
	}
}

func TestStatsConcurrentAndNilSafe(t *testing.T) {
	var nilStats *Stats
	nilStats.IncRun()
	nilStats.IncError(ErrorAI, "workflow")
	if snap := nilStats.Snapshot(); snap.Runs != 0 {
		t.Errorf("nil stats should report zero, got %+v", snap)
	}

	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncRun()
			s.AddListings(2)
			s.IncError("", "")
			s.ObserveRunDuration(500 * time.Millisecond)
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.Runs != 20 || snap.ListingsReturned != 40 || snap.ErrorsTotal != 20 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.ErrorsByType[ErrorUnknown] != 20 || snap.ErrorsByComponent["unknown"] != 20 {
		t.Errorf("blank error labels should bucket as unknown: %+v", snap)
	}
	if snap.RunSecondsAvg < 0.49 || snap.RunSecondsAvg > 0.51 {
		t.Errorf("average run time = %f", snap.RunSecondsAvg)
	}
}
