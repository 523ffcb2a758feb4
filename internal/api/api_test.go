package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/ai"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/core"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/guardrail"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/listing"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/observability"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/store"
)

type fakeRunner struct {
	res   *core.RunResult
	err   error
	input string
}

func (f *fakeRunner) Execute(_ context.Context, input string) (*core.RunResult, error) {
	f.input = input
	return f.res, f.err
}

type fakeHistory struct {
	runs          []store.Run
	limit, offset int
}

func (f *fakeHistory) ListRuns(_ context.Context, limit, offset int) ([]store.Run, error) {
	f.limit, f.offset = limit, offset
	return f.runs, nil
}

func (f *fakeHistory) GetRun(_ context.Context, id string) (store.Run, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return store.Run{}, store.ErrNotFound
}

func newTestServer(runner Runner, history RunHistory) *httptest.Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httptest.NewServer(NewServer(runner, history, observability.NewStats(), logger).Router())
}

func post(t *testing.T, srv *httptest.Server, body string, header ...string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/runWorkflow", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, out
}

func TestRunWorkflowSuccess(t *testing.T) {
	price := int64(450000)
	listings := []listing.Listing{{MLS: "11111111", URL: listing.StringPtr("https://www.centris.ca/fr/1"), Price: &price}}
	runner := &fakeRunner{res: &core.RunResult{
		ID:         "run-1",
		State:      core.StateDone,
		Listings:   listings,
		OutputText: `{"listings":[{"mls":"11111111"}]}`,
	}}
	srv := newTestServer(runner, nil)
	defer srv.Close()

	resp, out := post(t, srv, `{"input_as_text":"maison Lévis"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if runner.input != "maison Lévis" {
		t.Errorf("runner got %q", runner.input)
	}
	if out["output_text"] != `{"listings":[{"mls":"11111111"}]}` || out["state"] != "done" {
		t.Errorf("unexpected body %v", out)
	}
	parsed, _ := out["output_parsed"].([]any)
	if len(parsed) != 1 {
		t.Fatalf("expected 1 parsed listing, got %v", out["output_parsed"])
	}
	first := parsed[0].(map[string]any)
	if first["mls"] != "11111111" || first["price"] != float64(450000) {
		t.Errorf("unexpected listing %v", first)
	}
	if _, ok := first["beds"]; !ok || first["beds"] != nil {
		t.Errorf("absent fields must be present as null, got %v", first)
	}
}

func TestRunWorkflowEmptyResult(t *testing.T) {
	runner := &fakeRunner{res: &core.RunResult{State: core.StateEmptyResult, OutputText: `{"listings":[]}`}}
	srv := newTestServer(runner, nil)
	defer srv.Close()

	resp, out := post(t, srv, `{"input_as_text":"condo"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	parsed, ok := out["output_parsed"].([]any)
	if !ok || len(parsed) != 0 {
		t.Errorf("expected empty array, got %v", out["output_parsed"])
	}
}

func TestRunWorkflowBlocked(t *testing.T) {
	runner := &fakeRunner{res: &core.RunResult{
		Blocked: true,
		Guardrail: guardrail.Verdict{
			Blocked: true,
			Results: []guardrail.CheckResult{
				{Name: "pii", Tripwire: true, Category: "email", Severity: guardrail.SeverityHigh},
				{Name: "jailbreak", Tripwire: false},
			},
		},
	}}
	srv := newTestServer(runner, nil)
	defer srv.Close()

	resp, out := post(t, srv, `{"input_as_text":"a@b.ca"}`, "Accept-Language", "en-CA,en;q=0.9")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out["blocked"] != true || out["message"] != guardrail.BlockedMessageEN || out["message_fr"] != guardrail.BlockedMessageFR {
		t.Errorf("unexpected blocked payload %v", out)
	}
	results, _ := out["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected only triggered results, got %v", out["results"])
	}
	if r := results[0].(map[string]any); r["tripwire_triggered"] != true || r["category"] != "email" {
		t.Errorf("unexpected result %v", r)
	}
	if _, ok := out["output_parsed"]; ok {
		t.Error("blocked payload must not carry listings")
	}
}

func TestRunWorkflowErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
		msg    string
	}{
		{"undefined", fmt.Errorf("%w: planner gemini: quota", core.ErrRunUndefined), `{"input_as_text":"x"}`, 500, "Workflow produced no output"},
		{"schema", fmt.Errorf("%w: bad", core.ErrSchemaViolation), `{"input_as_text":"x"}`, 500, "Result failed schema validation"},
		{"other", errors.New("boom"), `{"input_as_text":"x"}`, 500, "Workflow failed"},
		{"malformed", nil, `{"input_as_text":`, 400, "Invalid request body"},
		{"missing input", nil, `{"input_as_text":"   "}`, 400, "input_as_text is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeRunner{err: tt.err}, nil)
			defer srv.Close()

			resp, out := post(t, srv, tt.body)
			if resp.StatusCode != tt.status || out["error"] != tt.msg {
				t.Errorf("got %d %v; want %d %q", resp.StatusCode, out, tt.status, tt.msg)
			}
		})
	}
}

func TestRootAndHealth(t *testing.T) {
	srv := newTestServer(&fakeRunner{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != `{"ok":true}` {
		t.Errorf("GET / = %d %s", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "OK" {
		t.Errorf("GET /health = %s", body)
	}

	resp, err = http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	var snap observability.StatsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Errorf("stats did not decode: %v", err)
	}
	resp.Body.Close()
}

func TestRunHistory(t *testing.T) {
	srv := newTestServer(&fakeRunner{}, nil)
	resp, err := http.Get(srv.URL + "/runs")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	srv.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("runs without a store = %d; want 503", resp.StatusCode)
	}

	history := &fakeHistory{runs: []store.Run{{ID: "abc", State: "done", ListingCount: 2}}}
	srv = newTestServer(&fakeRunner{}, history)
	defer srv.Close()

	resp, err = http.Get(srv.URL + "/runs?limit=5&offset=-3")
	if err != nil {
		t.Fatal(err)
	}
	var page struct {
		Items []store.Run `json:"items"`
	}
	json.NewDecoder(resp.Body).Decode(&page)
	resp.Body.Close()
	if len(page.Items) != 1 || history.limit != 5 || history.offset != 0 {
		t.Errorf("unexpected page %+v (limit %d offset %d)", page, history.limit, history.offset)
	}

	resp, err = http.Get(srv.URL + "/runs/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing run = %d; want 404", resp.StatusCode)
	}
}

func TestEndToEndWithScriptedWorkflow(t *testing.T) {
	pages := map[string]string{
		"https://www.centris.ca/fr/1": `<p>MLS 12345678</p><p>$399,000</p><p>3 chambres</p>`,
	}
	wf := core.NewWorkflow(core.Deps{
		Planner:  ai.NewScriptedPlanner(),
		Searcher: staticSearch{"https://www.centris.ca/fr/1", "https://evil.example.com/x"},
		Pages:    staticPages(pages),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv := newTestServer(wf, nil)
	defer srv.Close()

	resp, out := post(t, srv, `{"input_as_text":"maison"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d %v", resp.StatusCode, out)
	}
	parsed, _ := out["output_parsed"].([]any)
	if len(parsed) != 1 || parsed[0].(map[string]any)["mls"] != "12345678" {
		t.Errorf("unexpected listings %v", out)
	}
}
