// Package app assembles the workflow and its collaborators from config.
package app

import (
	"log/slog"
	"strings"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/ai"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/config"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/core"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/guardrail"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/httpx"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/observability"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/scraper"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/search"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/urlutil"
)

// NewWorkflow builds every shared collaborator once and returns the
// workflow that requests run against. recorder may be nil.
func NewWorkflow(cfg config.Config, recorder core.RunRecorder, stats *observability.Stats, logger *slog.Logger) *core.Workflow {
	domains := cfg.Search.Domains
	if len(domains) == 0 {
		domains = urlutil.ListingDomains
	}

	fetcher := httpx.NewCollyFetcher(httpx.FetcherOptions{
		UserAgent:     cfg.Fetch.UserAgent,
		Timeout:       cfg.Fetch.Timeout,
		MaxBodyBytes:  cfg.Fetch.MaxBytes,
		RespectRobots: cfg.Fetch.RespectRobots,
	})
	pages := scraper.NewPageFetcher(fetcher, cfg.Fetch.Timeout, stats, logger)

	searcher := search.NewAdapter(searchProvider(cfg, fetcher.UserAgent(), logger), search.AdapterOptions{
		Domains:    domains,
		MaxResults: cfg.Limits.MaxSearchResults,
		Timeout:    cfg.Search.Timeout,
		Language:   "fr",
		Country:    "CA",
	}, stats, logger)

	var moderation guardrail.Provider
	if cfg.Moderation.APIKey != "" {
		moderation = guardrail.NewModeration(cfg.Moderation.APIKey, cfg.Moderation.Endpoint, cfg.Search.Timeout)
	}
	gate := guardrail.NewGate(logger, guardrail.NewLocalChecks(), moderation)

	planner := ai.NewPlanner(ai.PlannerConfig{
		Provider:     cfg.Planner.Provider,
		GeminiAPIKey: cfg.Planner.GeminiAPIKey,
		GeminiModel:  cfg.Planner.GeminiModel,
		Timeout:      cfg.Planner.Timeout,
	}, logger)

	limits := core.DefaultLimits()
	limits.MaxTurns = cfg.Limits.MaxTurns
	limits.MaxSearchResults = cfg.Limits.MaxSearchResults
	limits.MaxFetches = cfg.Limits.MaxFetchCalls
	limits.RunTimeout = cfg.Limits.RunTimeout

	deps := core.Deps{
		Planner:  planner,
		Searcher: searcher,
		Pages:    pages,
		Gate:     gate,
		Recorder: recorder,
		Limits:   limits,
		Domains:  domains,
		Stats:    stats,
		Logger:   logger,
	}
	return core.NewWorkflow(deps)
}

func searchProvider(cfg config.Config, userAgent string, logger *slog.Logger) search.Provider {
	switch strings.ToLower(cfg.Search.Provider) {
	case "duckduckgo":
		client := httpx.NewPoliteClient(userAgent, cfg.Search.Timeout, cfg.Fetch.RespectRobots)
		logger.Info("using duckduckgo search")
		return search.NewDuckDuckGo(client, cfg.Search.Endpoint)
	default:
		if cfg.Search.APIKey == "" {
			logger.Warn("SEARCH_API_KEY not set, web search returns no results")
			return nil
		}
		logger.Info("using brave search")
		return search.NewBrave(cfg.Search.APIKey, cfg.Search.Endpoint, cfg.Search.Timeout)
	}
}
