// Package ai drives the language model that decides which listing tool to
// call next. The model is a black box behind [Planner]; the orchestrator
// enforces every budget regardless of what a planner asks for.
package ai

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
	RoleTool  = "tool"
)

// ToolSpec describes one callable tool. Parameters is a JSON schema object.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type ToolResult struct {
	CallID  string         `json:"call_id"`
	Name    string         `json:"name"`
	Content map[string]any `json:"content"`
}

// Message is one turn of the planner dialogue.
type Message struct {
	Role    string       `json:"role"`
	Text    string       `json:"text,omitempty"`
	Calls   []ToolCall   `json:"calls,omitempty"`
	Results []ToolResult `json:"results,omitempty"`
}

type PlanRequest struct {
	Input     string
	Tools     []ToolSpec
	History   []Message
	TurnsLeft int
}

// Step is a planner decision: tool calls to run, or, when Calls is empty,
// a final answer in Text.
type Step struct {
	Text  string
	Calls []ToolCall
}

func (s Step) Final() bool {
	return len(s.Calls) == 0
}

type Planner interface {
	Name() string
	Next(ctx context.Context, req PlanRequest) (Step, error)
}

type PlannerConfig struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	GeminiURL    string
	Timeout      time.Duration
}

// NewPlanner picks a planner from cfg.Provider: "gemini" (the default when a
// Gemini key is set) or "scripted". A gemini request without a key falls
// back to the scripted planner.
func NewPlanner(cfg PlannerConfig, logger *slog.Logger) Planner {
	if logger == nil {
		logger = slog.Default()
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	// Auto-detect provider if not specified
	if provider == "" {
		if cfg.GeminiAPIKey != "" {
			provider = "gemini"
		} else {
			provider = "scripted"
		}
	}

	switch provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			logger.Warn("PLANNER_PROVIDER=gemini but GEMINI_API_KEY not set, falling back to scripted planner")
			return NewScriptedPlanner()
		}
		g := NewGeminiPlanner(cfg.GeminiAPIKey, cfg.Timeout)
		if cfg.GeminiModel != "" {
			g = g.WithModel(cfg.GeminiModel)
		}
		if cfg.GeminiURL != "" {
			g = g.WithBaseURL(cfg.GeminiURL)
		}
		logger.Info("using gemini planner", "model", g.model)
		return g
	default:
		logger.Info("using scripted planner (set GEMINI_API_KEY for a model planner)")
		return NewScriptedPlanner()
	}
}

// CleanJSON removes markdown code blocks if present
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
