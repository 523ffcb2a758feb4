package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPlannerSelection(t *testing.T) {
	tests := []struct {
		name string
		cfg  PlannerConfig
		want string
	}{
		{"auto without key", PlannerConfig{}, "scripted"},
		{"auto with key", PlannerConfig{GeminiAPIKey: "k"}, "gemini"},
		{"gemini without key", PlannerConfig{Provider: "gemini"}, "scripted"},
		{"forced scripted", PlannerConfig{Provider: "Scripted", GeminiAPIKey: "k"}, "scripted"},
	}
	for _, tt := range tests {
		if got := NewPlanner(tt.cfg, quietLogger()).Name(); got != tt.want {
			t.Errorf("%s: planner = %q; want %q", tt.name, got, tt.want)
		}
	}
}

func TestCleanJSON(t *testing.T) {
	in := "```json\n{\"listings\": []}\n```"
	if got := CleanJSON(in); got != `{"listings": []}` {
		t.Errorf("CleanJSON = %q", got)
	}
}

func TestGeminiFunctionCall(t *testing.T) {
	var got geminiRequest
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[
			{"text":"Je cherche."},
			{"functionCall":{"name":"fetch_page","args":{"url":"https://www.centris.ca/fr/1"}}},
			{"functionCall":{"name":"fetch_page","args":{"url":"https://www.centris.ca/fr/2"}}}
		]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	g := NewGeminiPlanner("secret", time.Second).WithBaseURL(srv.URL).WithModel("test-model")
	history := []Message{
		{Role: RoleUser, Text: "condo Québec"},
		{Role: RoleModel, Calls: []ToolCall{{ID: "1", Name: "web_search", Args: map[string]any{"query": "condo Québec"}}}},
		{Role: RoleTool, Results: []ToolResult{{CallID: "1", Name: "web_search", Content: map[string]any{"results": []any{}}}}},
	}
	step, err := g.Next(context.Background(), PlanRequest{
		Input:     "condo Québec",
		History:   history,
		TurnsLeft: 4,
		Tools:     []ToolSpec{{Name: "fetch_page", Description: "fetch", Parameters: map[string]any{"type": "object"}}},
	})
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	if gotKey != "secret" || gotPath != "/test-model:generateContent" {
		t.Errorf("unexpected request: key=%q path=%q", gotKey, gotPath)
	}
	if len(got.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(got.Contents))
	}
	if got.Contents[1].Role != "model" || got.Contents[1].Parts[0].FunctionCall == nil {
		t.Errorf("expected model function call turn, got %+v", got.Contents[1])
	}
	if got.Contents[2].Role != "user" || got.Contents[2].Parts[0].FunctionResponse == nil {
		t.Errorf("expected function response turn, got %+v", got.Contents[2])
	}
	if got.SystemInstruction == nil || !strings.Contains(got.SystemInstruction.Parts[0].Text, "4 turns left") {
		t.Errorf("expected system prompt with turn budget")
	}
	if len(got.Tools) != 1 || got.Tools[0].FunctionDeclarations[0].Name != "fetch_page" {
		t.Errorf("expected tool declarations, got %+v", got.Tools)
	}

	if step.Final() || len(step.Calls) != 2 {
		t.Fatalf("expected 2 tool calls, got %+v", step)
	}
	if step.Calls[1].Args["url"] != "https://www.centris.ca/fr/2" {
		t.Errorf("unexpected args %+v", step.Calls[1].Args)
	}
	if step.Calls[0].ID == step.Calls[1].ID {
		t.Error("call ids must be distinct")
	}
}

func TestGeminiFinalAnswerAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/final:generateContent":
			_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"listings\":[]}"}]}}]}`)
		case "/empty:generateContent":
			_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"bad key","code":400}}`)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	step, err := NewGeminiPlanner("k", time.Second).WithBaseURL(srv.URL).WithModel("final").Next(ctx, PlanRequest{})
	if err != nil || !step.Final() || step.Text != `{"listings":[]}` {
		t.Fatalf("unexpected final step %+v, err %v", step, err)
	}
	if _, err := NewGeminiPlanner("k", time.Second).WithBaseURL(srv.URL).WithModel("empty").Next(ctx, PlanRequest{}); err == nil {
		t.Error("expected error for empty candidate")
	}
	if _, err := NewGeminiPlanner("k", time.Second).WithBaseURL(srv.URL).WithModel("broken").Next(ctx, PlanRequest{}); err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestScriptedPlannerWalksThePlan(t *testing.T) {
	p := NewScriptedPlanner()
	ctx := context.Background()
	history := []Message{{Role: RoleUser, Text: "duplex Sherbrooke"}}

	step, _ := p.Next(ctx, PlanRequest{Input: "  duplex Sherbrooke ", History: history})
	if len(step.Calls) != 1 || step.Calls[0].Name != ToolWebSearch || step.Calls[0].Args["query"] != "duplex Sherbrooke" {
		t.Fatalf("expected search first, got %+v", step)
	}

	history = append(history,
		Message{Role: RoleModel, Calls: step.Calls},
		Message{Role: RoleTool, Results: []ToolResult{{Name: ToolWebSearch, Content: map[string]any{
			"results": []any{
				map[string]any{"url": "https://www.centris.ca/1"},
				map[string]any{"url": "https://www.duproprio.com/2"},
			},
		}}}},
	)
	step, _ = p.Next(ctx, PlanRequest{History: history})
	if len(step.Calls) != 2 || step.Calls[0].Name != ToolFetchPage || step.Calls[1].Args["url"] != "https://www.duproprio.com/2" {
		t.Fatalf("expected two fetches, got %+v", step)
	}

	history = append(history,
		Message{Role: RoleModel, Calls: step.Calls},
		Message{Role: RoleTool, Results: []ToolResult{
			{Name: ToolFetchPage, Content: map[string]any{"url": "https://www.centris.ca/1", "ok": true}},
			{Name: ToolFetchPage, Content: map[string]any{"url": "https://www.duproprio.com/2", "ok": false}},
		}},
	)
	step, _ = p.Next(ctx, PlanRequest{History: history})
	if len(step.Calls) != 1 || step.Calls[0].Name != ToolExtractListing || step.Calls[0].Args["url"] != "https://www.centris.ca/1" {
		t.Fatalf("expected one extraction, got %+v", step)
	}

	history = append(history,
		Message{Role: RoleModel, Calls: step.Calls},
		Message{Role: RoleTool, Results: []ToolResult{{Name: ToolExtractListing, Content: map[string]any{"fragment": map[string]any{}}}}},
	)
	step, _ = p.Next(ctx, PlanRequest{History: history})
	if len(step.Calls) != 1 || step.Calls[0].Name != ToolNormalizeListings {
		t.Fatalf("expected normalization, got %+v", step)
	}

	history = append(history,
		Message{Role: RoleModel, Calls: step.Calls},
		Message{Role: RoleTool, Results: []ToolResult{{Name: ToolNormalizeListings, Content: map[string]any{"listings": []any{map[string]any{}}}}}},
	)
	step, _ = p.Next(ctx, PlanRequest{History: history})
	if !step.Final() || !strings.Contains(step.Text, "1 listing(s) found") {
		t.Fatalf("expected final summary, got %+v", step)
	}
}

func TestScriptedPlannerStopsWithoutResults(t *testing.T) {
	p := NewScriptedPlanner()
	history := []Message{
		{Role: RoleUser, Text: "x"},
		{Role: RoleTool, Results: []ToolResult{{Name: ToolWebSearch, Content: map[string]any{"results": []any{}}}}},
	}
	step, _ := p.Next(context.Background(), PlanRequest{History: history})
	if !step.Final() {
		t.Fatalf("expected finish on empty search, got %+v", step)
	}
}
