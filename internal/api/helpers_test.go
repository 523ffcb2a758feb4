package api

import (
	"context"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/search"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/urlutil"
)

// staticSearch returns its URLs, keeping only allow-listed hosts.
type staticSearch []string

func (s staticSearch) Search(_ context.Context, _ string, limit int) []search.Result {
	var all []search.Result
	for _, u := range s {
		all = append(all, search.Result{URL: u})
	}
	return search.Filter(all, urlutil.ListingDomains, limit)
}

type staticPages map[string]string

func (p staticPages) Fetch(_ context.Context, url string) string { return p[url] }
