// Package scraper fetches listing pages for a run.
package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/httpx"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/observability"
)

// PageFetcher downloads one page per call. It never returns an error: any
// failure, including a timeout or an error status, yields an empty page.
type PageFetcher struct {
	fetcher *httpx.CollyFetcher
	timeout time.Duration
	stats   *observability.Stats
	logger  *slog.Logger
}

func NewPageFetcher(fetcher *httpx.CollyFetcher, timeout time.Duration, stats *observability.Stats, logger *slog.Logger) *PageFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PageFetcher{
		fetcher: fetcher,
		timeout: timeout,
		stats:   stats,
		logger:  logger,
	}
}

// Fetch returns the page body as text, or "" when the page is unavailable.
func (p *PageFetcher) Fetch(ctx context.Context, rawURL string) string {
	if strings.TrimSpace(rawURL) == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	body, status, err := p.fetcher.FetchBytes(ctx, rawURL)
	if err != nil {
		kind := observability.ClassifyFetchError(err)
		p.stats.IncError(kind, "page_fetch")
		p.logger.Warn("page fetch failed",
			"url", rawURL,
			"status", status,
			"kind", kind,
			"error", err,
		)
		return ""
	}
	p.stats.IncPageFetched()

	page := toText(body)
	p.logger.Debug("page fetched",
		"url", rawURL,
		"status", status,
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return page
}

func toText(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if utf8.Valid(body) {
		return string(body)
	}
	return strings.ToValidUTF8(string(body), "�")
}
