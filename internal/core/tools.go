package core

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/ai"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/content"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/listing"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/urlutil"
)

// tool is one planner-callable operation with its per-run budget.
type tool struct {
	spec    ai.ToolSpec
	limit   int
	used    int
	handler func(ctx context.Context, args map[string]any) any
}

func toolSpecs(tools []*tool) []ai.ToolSpec {
	specs := make([]ai.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, t.spec)
	}
	return specs
}

// newTools builds the tool set bound to one run, in declaration order.
func (r *Run) newTools() []*tool {
	l := r.wf.limits
	return []*tool{
		{
			spec: ai.ToolSpec{
				Name:        ai.ToolWebSearch,
				Description: "Search Québec listing sites (centris.ca, realtor.ca, royallepage.ca, remax-quebec.com, duproprio.com). Returns candidate listing URLs. One search per request.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Search terms, e.g. 'maison 3 chambres Lévis'.",
						},
						"count": map[string]any{
							"type":        "integer",
							"description": "Maximum number of URLs wanted.",
						},
					},
					"required": []string{"query"},
				},
			},
			limit:   l.MaxSearchCalls,
			handler: r.webSearch,
		},
		{
			spec: ai.ToolSpec{
				Name:        ai.ToolFetchPage,
				Description: "Download one listing page and return its title and cleaned text. An empty text means the page could not be retrieved.",
				Parameters:  urlParameters("Listing page URL returned by web_search."),
			},
			limit:   l.MaxFetches,
			handler: r.fetchPage,
		},
		{
			spec: ai.ToolSpec{
				Name:        ai.ToolExtractListing,
				Description: "Extract the MLS number, price, bedrooms and bathrooms from a page already fetched with fetch_page.",
				Parameters:  urlParameters("URL of a page fetched earlier."),
			},
			limit:   l.MaxExtractions,
			handler: r.extractListing,
		},
		{
			spec: ai.ToolSpec{
				Name:        ai.ToolNormalizeListings,
				Description: "Build the final deduplicated batch (at most 12) from every extracted listing plus any listings given here. Runs once per request.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"listings": map[string]any{
							"type":        "array",
							"description": "Extra listings assembled from fetched pages. Optional.",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"mls":        map[string]any{"type": "string"},
									"url":        map[string]any{"type": "string"},
									"address":    map[string]any{"type": "string"},
									"price":      map[string]any{"type": "number"},
									"price_text": map[string]any{"type": "string"},
									"beds":       map[string]any{"type": "integer"},
									"baths":      map[string]any{"type": "integer"},
									"type":       map[string]any{"type": "string"},
									"note_fr":    map[string]any{"type": "string"},
									"note_en":    map[string]any{"type": "string"},
								},
							},
						},
					},
				},
			},
			limit:   l.MaxNormalizations,
			handler: r.normalizeListings,
		},
	}
}

func urlParameters(desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": desc,
			},
		},
		"required": []string{"url"},
	}
}

func (r *Run) webSearch(ctx context.Context, args map[string]any) any {
	r.advance(StateSearching)
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		query = r.input
	}
	limit := r.wf.limits.MaxSearchResults
	if n, ok := intArg(args["count"]); ok && n > 0 && n < limit {
		limit = n
	}

	results := r.wf.searcher.Search(ctx, query, limit)
	if len(results) > r.wf.limits.MaxSearchResults {
		results = results[:r.wf.limits.MaxSearchResults]
	}
	for _, res := range results {
		r.evidence.addURL(res.URL)
	}
	return map[string]any{"results": results}
}

func (r *Run) fetchPage(ctx context.Context, args map[string]any) any {
	r.advance(StateFetching)
	u := strings.TrimSpace(stringArg(args["url"]))
	if !urlutil.Allowed(u, r.wf.domains) {
		return map[string]any{"url": u, "ok": false, "error": "url_not_allowed"}
	}

	raw := r.wf.pages.Fetch(ctx, u)
	p := page{
		html:  raw,
		text:  content.Sanitize(raw),
		title: content.PageTitle(raw),
		hints: content.StructuredHints(raw),
	}
	r.pages[pageKey(u)] = p
	r.evidence.addURL(u)
	r.evidence.addPage(raw, p.hints)

	out := map[string]any{
		"url":   u,
		"ok":    raw != "",
		"title": p.title,
		"text":  p.text,
	}
	if !p.hints.Empty() {
		out["hints"] = p.hints
	}
	return out
}

func (r *Run) extractListing(_ context.Context, args map[string]any) any {
	r.advance(StateExtracting)
	u := strings.TrimSpace(stringArg(args["url"]))

	// A page never fetched reads as an empty page.
	p := r.pages[pageKey(u)]
	var urlPtr *string
	if u != "" && r.evidence.hasURL(u) {
		urlPtr = listing.StringPtr(u)
	}
	frag := content.ExtractListing(urlPtr, p.html)

	out := map[string]any{
		"listing":  normalizeOne(frag),
		"accepted": false,
	}
	if p.html == "" {
		out["reason"] = "page_unavailable"
	} else {
		r.fragments = append(r.fragments, frag)
		out["accepted"] = true
	}
	return out
}

func (r *Run) normalizeListings(_ context.Context, args map[string]any) any {
	r.advance(StateNormalizing)
	fragments := append([]listing.Fragment(nil), r.fragments...)
	fragments = append(fragments, r.plannerFragments(args["listings"])...)

	r.batch = r.wf.normalizer.Normalize(fragments)
	r.normalized = true
	return listing.Batch{Listings: r.batch}
}

// plannerFragments decodes listings supplied in tool arguments and grounds
// them against what the run observed.
func (r *Run) plannerFragments(v any) []listing.Fragment {
	items, _ := v.([]any)
	out := make([]listing.Fragment, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var f listing.Fragment
		if err := json.Unmarshal(raw, &f); err != nil {
			continue
		}
		grounded := r.evidence.ground(normalizeOne(f))
		if !grounded.WellFormed() {
			r.wf.logger.Debug("planner listing dropped, nothing grounded", "run_id", r.id)
			continue
		}
		out = append(out, listing.FromListing(grounded))
	}
	return out
}

func normalizeOne(f listing.Fragment) listing.Listing {
	return listing.Normalize([]listing.Fragment{f})[0]
}

func stringArg(v any) string {
	s, _ := v.(string)
	return s
}

func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func pageKey(u string) string {
	if key, _, err := urlutil.Normalize(u); err == nil {
		return key
	}
	return u
}

// toContent renders a handler result as the JSON object the planner sees.
func toContent(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"error": "encode_failed"}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return map[string]any{"result": v}
	}
	return out
}
