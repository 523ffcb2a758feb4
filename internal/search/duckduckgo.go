package search

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/httpx"
)

const duckDuckGoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the keyless HTML endpoint through the polite client.
type DuckDuckGo struct {
	client   *httpx.PoliteClient
	endpoint string
}

func NewDuckDuckGo(client *httpx.PoliteClient, endpoint string) *DuckDuckGo {
	if endpoint == "" {
		endpoint = duckDuckGoEndpoint
	}
	return &DuckDuckGo{client: client, endpoint: endpoint}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	params := url.Values{"q": {query}}
	if opts.Language != "" && opts.Country != "" {
		params.Set("kl", strings.ToLower(opts.Country)+"-"+strings.ToLower(opts.Language))
	}

	req, err := httpx.NewRequest(ctx, d.endpoint+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: build request: %w", err)
	}

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: request failed: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse results: %w", err)
	}

	limit := opts.Count
	var results []Result
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if limit > 0 && len(results) >= limit {
			return false
		}
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return true
		}

		// DuckDuckGo rewrites links as /l/?uddg=<encoded>
		if strings.Contains(href, "/l/?") && strings.Contains(href, "uddg=") {
			if decoded := decodeDDGLink(href); decoded != "" {
				href = decoded
			}
		}

		if !strings.HasPrefix(href, "http") {
			return true
		}
		if strings.Contains(href, "duckduckgo.com") {
			return true
		}

		results = append(results, Result{
			Title: strings.Join(strings.Fields(a.Text()), " "),
			URL:   href,
		})
		return true
	})

	return results, nil
}

func decodeDDGLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	// Query() already unescapes the parameter.
	return u.Query().Get("uddg")
}
