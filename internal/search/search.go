// Package search finds candidate listing URLs through a web search backend.
//
// Backends implement [Provider]. The [Adapter] sits in front of one provider
// and owns the listing-specific policy: queries are scoped to the listing
// sites, results off the allow-list are dropped, duplicates are folded and
// the result count is capped. The adapter never reports an error; an
// unconfigured or failing backend yields no URLs.
package search

import (
	"context"
)

// Result is a single search result.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options are optional parameters for a search query.
type Options struct {
	// Count is the maximum number of results to return.
	// Providers may return fewer. Zero means provider default.
	Count int `json:"count,omitempty"`

	// Language is an ISO 639-1 language code (e.g., "fr", "en").
	Language string `json:"language,omitempty"`

	// Country narrows results to one market (e.g., "CA").
	Country string `json:"country,omitempty"`
}

// Provider is the interface that search backends implement.
type Provider interface {
	// Name returns the provider identifier (e.g., "brave", "duckduckgo").
	Name() string

	// Search executes a query and returns results.
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}
