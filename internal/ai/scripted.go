package ai

import (
	"context"
	"fmt"
	"strings"
)

// Tool names the scripted plan walks through, in order.
const (
	ToolWebSearch         = "web_search"
	ToolFetchPage         = "fetch_page"
	ToolExtractListing    = "extract_listing"
	ToolNormalizeListings = "normalize_listings"
)

// ScriptedPlanner follows a fixed plan: search, fetch every result, extract
// every non-empty page, normalize once, finish. It needs no credentials and
// is fully deterministic, which also makes it the reference planner in tests.
type ScriptedPlanner struct{}

func NewScriptedPlanner() *ScriptedPlanner {
	return &ScriptedPlanner{}
}

func (s *ScriptedPlanner) Name() string { return "scripted" }

func (s *ScriptedPlanner) Next(_ context.Context, req PlanRequest) (Step, error) {
	last, ok := lastToolTurn(req.History)
	if !ok {
		query := strings.TrimSpace(req.Input)
		return Step{Calls: []ToolCall{call(1, ToolWebSearch, map[string]any{"query": query})}}, nil
	}

	switch phase(last) {
	case ToolWebSearch:
		urls := searchURLs(last)
		if len(urls) == 0 {
			return finish("Aucune annonce trouvée. / No listings found."), nil
		}
		calls := make([]ToolCall, 0, len(urls))
		for i, u := range urls {
			calls = append(calls, call(i+1, ToolFetchPage, map[string]any{"url": u}))
		}
		return Step{Calls: calls}, nil

	case ToolFetchPage:
		var calls []ToolCall
		for _, r := range last.Results {
			if r.Name != ToolFetchPage || !fetched(r) {
				continue
			}
			if u, _ := r.Content["url"].(string); u != "" {
				calls = append(calls, call(len(calls)+1, ToolExtractListing, map[string]any{"url": u}))
			}
		}
		if len(calls) == 0 {
			return finish("Aucune page disponible. / No page could be retrieved."), nil
		}
		return Step{Calls: calls}, nil

	case ToolExtractListing:
		return Step{Calls: []ToolCall{call(1, ToolNormalizeListings, map[string]any{})}}, nil

	default:
		return finish(summary(last)), nil
	}
}

func call(n int, name string, args map[string]any) ToolCall {
	return ToolCall{ID: fmt.Sprintf("scripted-%s-%d", name, n), Name: name, Args: args}
}

func finish(text string) Step {
	return Step{Text: text}
}

func lastToolTurn(history []Message) (Message, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleTool {
			return history[i], true
		}
	}
	return Message{}, false
}

// phase is the tool the last turn ran; budget refusals do not count.
func phase(m Message) string {
	name := ""
	for _, r := range m.Results {
		if _, refused := r.Content["error"]; refused {
			continue
		}
		name = r.Name
	}
	return name
}

func searchURLs(m Message) []string {
	var urls []string
	for _, r := range m.Results {
		if r.Name != ToolWebSearch {
			continue
		}
		items, _ := r.Content["results"].([]any)
		for _, item := range items {
			obj, _ := item.(map[string]any)
			if u, _ := obj["url"].(string); u != "" {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

func fetched(r ToolResult) bool {
	ok, _ := r.Content["ok"].(bool)
	return ok
}

func summary(m Message) string {
	for _, r := range m.Results {
		if r.Name != ToolNormalizeListings {
			continue
		}
		if items, ok := r.Content["listings"].([]any); ok {
			return fmt.Sprintf("%d annonce(s) trouvée(s). / %d listing(s) found.", len(items), len(items))
		}
	}
	return "Recherche terminée. / Search complete."
}
