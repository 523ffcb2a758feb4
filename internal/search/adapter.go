package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/observability"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/urlutil"
)

// ErrNotConfigured is returned by providers that lack a credential.
var ErrNotConfigured = errors.New("search provider not configured")

const (
	DefaultMaxResults = 3
	// overfetch leaves room for results the allow-list will drop.
	overfetch       = 4
	maxProviderPage = 20
)

type AdapterOptions struct {
	Domains    []string
	MaxResults int
	Timeout    time.Duration
	Language   string
	Country    string
}

// Adapter applies listing-site policy to a Provider. A nil provider is
// valid and always yields no results.
type Adapter struct {
	provider   Provider
	domains    []string
	maxResults int
	timeout    time.Duration
	language   string
	country    string
	stats      *observability.Stats
	logger     *slog.Logger
}

func NewAdapter(provider Provider, opts AdapterOptions, stats *observability.Stats, logger *slog.Logger) *Adapter {
	if len(opts.Domains) == 0 {
		opts.Domains = urlutil.ListingDomains
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		provider:   provider,
		domains:    opts.Domains,
		maxResults: opts.MaxResults,
		timeout:    opts.Timeout,
		language:   opts.Language,
		country:    opts.Country,
		stats:      stats,
		logger:     logger,
	}
}

// Configured reports whether a backend is wired in.
func (a *Adapter) Configured() bool {
	return a != nil && a.provider != nil
}

// MaxResults is the hard cap on URLs returned by one search.
func (a *Adapter) MaxResults() int {
	return a.maxResults
}

// Search returns up to limit allow-listed, distinct results for query, in
// the provider's order. limit is a hint: values outside (0, MaxResults] are
// clamped. Failures are logged and produce an empty slice.
func (a *Adapter) Search(ctx context.Context, query string, limit int) []Result {
	query = strings.TrimSpace(query)
	if !a.Configured() || query == "" {
		return []Result{}
	}
	if limit <= 0 || limit > a.maxResults {
		limit = a.maxResults
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.stats.IncSearchCall()
	raw, err := a.provider.Search(ctx, ScopedQuery(query, a.domains), Options{
		Count:    min(limit*overfetch, maxProviderPage),
		Language: a.language,
		Country:  a.country,
	})
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			a.logger.Debug("search skipped, provider not configured", "provider", a.provider.Name())
			return []Result{}
		}
		a.stats.IncError(observability.ClassifyUpstreamError(err), "search")
		a.logger.Warn("search failed",
			"provider", a.provider.Name(),
			"error", err,
		)
		return []Result{}
	}

	out := Filter(raw, a.domains, limit)
	a.logger.Info("search completed",
		"provider", a.provider.Name(),
		"raw", len(raw),
		"kept", len(out),
	)
	return out
}

// Filter keeps results on domains, drops duplicate URLs (compared in
// normalized form) and stops at limit.
func Filter(results []Result, domains []string, limit int) []Result {
	out := make([]Result, 0, min(len(results), max(limit, 0)))
	seen := make(map[string]struct{})
	for _, r := range results {
		if len(out) >= limit {
			break
		}
		u := strings.TrimSpace(r.URL)
		if !urlutil.Allowed(u, domains) {
			continue
		}
		key, _, err := urlutil.Normalize(u)
		if err != nil {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		r.URL = u
		out = append(out, r)
	}
	return out
}

// ScopedQuery restricts query to the given sites unless the caller already
// used a site: operator.
func ScopedQuery(query string, domains []string) string {
	if len(domains) == 0 || strings.Contains(strings.ToLower(query), "site:") {
		return query
	}
	sites := make([]string, 0, len(domains))
	for _, d := range domains {
		sites = append(sites, "site:"+d)
	}
	return query + " (" + strings.Join(sites, " OR ") + ")"
}
