package guardrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	moderationEndpoint = "https://api.openai.com/v1/moderations"
	moderationModel    = "omni-moderation-latest"
)

// Moderation calls an OpenAI-compatible moderation endpoint.
type Moderation struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
}

func NewModeration(apiKey, endpoint string, timeout time.Duration) *Moderation {
	if endpoint == "" {
		endpoint = moderationEndpoint
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Moderation{
		apiKey:     apiKey,
		endpoint:   endpoint,
		model:      moderationModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (m *Moderation) Name() string { return "moderation" }

type moderationRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged        bool               `json:"flagged"`
		Categories     map[string]bool    `json:"categories"`
		CategoryScores map[string]float64 `json:"category_scores"`
	} `json:"results"`
}

func (m *Moderation) Check(ctx context.Context, input string) ([]CheckResult, error) {
	body, err := json.Marshal(moderationRequest{Model: m.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("moderation: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("moderation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moderation: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("moderation: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var mr moderationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&mr); err != nil {
		return nil, fmt.Errorf("moderation: decode response: %w", err)
	}
	if len(mr.Results) == 0 {
		return nil, fmt.Errorf("moderation: empty result set")
	}

	out := make([]CheckResult, 0, len(mr.Results))
	for _, r := range mr.Results {
		cr := CheckResult{Name: "moderation", Category: "moderation", Tripwire: r.Flagged}
		if r.Flagged {
			cat, score := topCategory(r.Categories, r.CategoryScores)
			if cat != "" {
				cr.Category = cat
			}
			cr.Severity = severityFor(score)
		}
		out = append(out, cr)
	}
	return out, nil
}

// topCategory picks the flagged category with the highest score, breaking
// ties by name so the result is stable.
func topCategory(flags map[string]bool, scores map[string]float64) (string, float64) {
	names := make([]string, 0, len(flags))
	for name, on := range flags {
		if on {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	best, bestScore := "", -1.0
	for _, name := range names {
		if s := scores[name]; s > bestScore {
			best, bestScore = name, s
		}
	}
	return best, bestScore
}

func severityFor(score float64) string {
	switch {
	case score >= 0.8:
		return SeverityHigh
	case score >= 0.4:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
