package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

// PoliteClient enforces per-host rate limits, robots.txt rules, and polite retries.
// Search providers use it for plain HTTP calls that colly would be overkill for.
type PoliteClient struct {
	client        *http.Client
	ua            string
	respectRobots bool
	limiters      map[string]*rate.Limiter
	robotsCache   map[string]*robotstxt.RobotsData
	mu            sync.Mutex
}

func NewPoliteClient(userAgent string, timeout time.Duration, respectRobots bool) *PoliteClient {
	if userAgent == "" {
		userAgent = DesktopUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PoliteClient{
		client:        &http.Client{Timeout: timeout},
		ua:            userAgent,
		respectRobots: respectRobots,
		limiters:      map[string]*rate.Limiter{},
		robotsCache:   map[string]*robotstxt.RobotsData{},
	}
}

func (p *PoliteClient) limiterFor(host string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(time.Second), 2) // 1 req/s, burst 2
	p.limiters[host] = l
	return l
}

// NewRequest builds an HTTP GET request with context and a safe URL defaulting to https.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	target, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
}

func (p *PoliteClient) robotsFor(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	host := u.Hostname()
	p.mu.Lock()
	if data, ok := p.robotsCache[host]; ok {
		p.mu.Unlock()
		return data, nil
	}
	p.mu.Unlock()

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.ua)

	if err := p.limiterFor(host).Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.robotsCache[host] = data
	p.mu.Unlock()
	return data, nil
}

// Do executes the request respecting robots.txt and rate limits. A non-2xx
// final status is returned as a *FetchError with the body closed.
func (p *PoliteClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", p.ua)
	}

	u := req.URL
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	if p.respectRobots && !p.allowed(ctx, u, req.Method) {
		return nil, &FetchError{Status: http.StatusForbidden, Err: fmt.Errorf("blocked by robots.txt: %s", u)}
	}

	limiter := p.limiterFor(u.Hostname())

	var lastErr error
	status := 0
	for attempt := 0; attempt < 3; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := p.client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		status = resp.StatusCode
		if shouldBackoff(status) {
			lastErr = fmt.Errorf("retryable status %d", status)
			resp.Body.Close()
			backoff := time.Duration(500*(1<<attempt)) * time.Millisecond
			if err := sleepWithContext(ctx, backoff); err != nil {
				return nil, err
			}
			continue
		}
		if status >= 400 {
			resp.Body.Close()
			return nil, &FetchError{Status: status, Err: fmt.Errorf("status %d", status)}
		}

		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("polite client: failed without error")
	}
	return nil, &FetchError{Status: status, Err: lastErr}
}

func (p *PoliteClient) allowed(ctx context.Context, u *url.URL, method string) bool {
	// Only reads are ever issued.
	if !strings.EqualFold(method, http.MethodGet) && !strings.EqualFold(method, http.MethodHead) {
		return false
	}
	data, err := p.robotsFor(ctx, u)
	if err != nil {
		return true // fail open to avoid blocking everything
	}
	group := data.FindGroup(p.ua)
	if group == nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}
