// Package guardrail screens user input before a run starts. Every configured
// provider sees the raw text; one triggered tripwire blocks the run.
package guardrail

import (
	"context"
	"log/slog"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// CheckResult is one provider's finding. Detail never echoes the matched
// input.
type CheckResult struct {
	Name     string `json:"name"`
	Tripwire bool   `json:"tripwire_triggered"`
	Category string `json:"category,omitempty"`
	Severity string `json:"severity,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Provider runs one family of checks.
type Provider interface {
	Name() string
	Check(ctx context.Context, input string) ([]CheckResult, error)
}

type Verdict struct {
	Blocked bool          `json:"blocked"`
	Results []CheckResult `json:"results"`
}

// Triggered returns the results whose tripwire fired.
func (v Verdict) Triggered() []CheckResult {
	var out []CheckResult
	for _, r := range v.Results {
		if r.Tripwire {
			out = append(out, r)
		}
	}
	return out
}

type Gate struct {
	providers []Provider
	logger    *slog.Logger
}

func NewGate(logger *slog.Logger, providers ...Provider) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	var ps []Provider
	for _, p := range providers {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return &Gate{providers: ps, logger: logger}
}

// Check runs every provider in order. A provider that fails is recorded as
// unavailable and does not block.
func (g *Gate) Check(ctx context.Context, input string) Verdict {
	v := Verdict{Results: []CheckResult{}}
	if g == nil {
		return v
	}
	for _, p := range g.providers {
		results, err := p.Check(ctx, input)
		if err != nil {
			g.logger.Warn("guardrail provider unavailable", "provider", p.Name(), "error", err)
			v.Results = append(v.Results, CheckResult{
				Name:   p.Name(),
				Detail: "unavailable",
			})
			continue
		}
		for _, r := range results {
			if r.Tripwire {
				v.Blocked = true
			}
			v.Results = append(v.Results, r)
		}
	}
	if v.Blocked {
		g.logger.Info("input blocked by guardrail", "triggered", len(v.Triggered()))
	}
	return v
}
