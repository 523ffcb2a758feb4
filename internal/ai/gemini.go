package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel  = "gemini-2.0-flash"
)

// GeminiPlanner implements Planner with Gemini function calling.
// Get an API key at: https://aistudio.google.com/apikey
type GeminiPlanner struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiPlanner(apiKey string, timeout time.Duration) *GeminiPlanner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GeminiPlanner{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: geminiBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithModel allows changing the model (e.g., "gemini-2.5-pro")
func (g *GeminiPlanner) WithModel(model string) *GeminiPlanner {
	g.model = model
	return g
}

func (g *GeminiPlanner) WithBaseURL(baseURL string) *GeminiPlanner {
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

func (g *GeminiPlanner) Name() string { return "gemini" }

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	Tools             []geminiTool           `json:"tools,omitempty"`
	ToolConfig        *geminiToolConfig      `json:"toolConfig,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type geminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTool struct {
	FunctionDeclarations []ToolSpec `json:"functionDeclarations"`
}

type geminiToolConfig struct {
	FunctionCallingConfig struct {
		Mode string `json:"mode"`
	} `json:"functionCallingConfig"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Next sends the whole dialogue and returns the model's next move.
func (g *GeminiPlanner) Next(ctx context.Context, req PlanRequest) (Step, error) {
	body := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: SystemPrompt(req.TurnsLeft)}}},
		Contents:          toGeminiContents(req.History),
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.1, // Low temperature for consistent tool use
			MaxOutputTokens: 2048,
		},
	}
	if len(req.Tools) > 0 {
		body.Tools = []geminiTool{{FunctionDeclarations: req.Tools}}
		body.ToolConfig = &geminiToolConfig{}
		body.ToolConfig.FunctionCallingConfig.Mode = "AUTO"
	}

	resp, err := g.callAPI(ctx, body)
	if err != nil {
		return Step{}, err
	}

	var step Step
	var texts []string
	for _, part := range resp.Content.Parts {
		switch {
		case part.FunctionCall != nil:
			step.Calls = append(step.Calls, ToolCall{
				ID:   fmt.Sprintf("gemini-%d", len(step.Calls)+1),
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			})
		case part.Text != "":
			texts = append(texts, part.Text)
		}
	}
	step.Text = strings.TrimSpace(strings.Join(texts, "\n"))
	if step.Final() && step.Text == "" {
		return Step{}, fmt.Errorf("empty response from Gemini (finish reason %q)", resp.FinishReason)
	}
	return step, nil
}

type geminiCandidate struct {
	Content      geminiContent
	FinishReason string
}

func (g *GeminiPlanner) callAPI(ctx context.Context, reqBody geminiRequest) (geminiCandidate, error) {
	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return geminiCandidate{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return geminiCandidate{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return geminiCandidate{}, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return geminiCandidate{}, fmt.Errorf("failed to read response: %w", err)
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return geminiCandidate{}, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	if geminiResp.Error != nil {
		return geminiCandidate{}, fmt.Errorf("Gemini API error: %s (code: %d)", geminiResp.Error.Message, geminiResp.Error.Code)
	}

	if len(geminiResp.Candidates) == 0 {
		return geminiCandidate{}, fmt.Errorf("empty response from Gemini")
	}

	c := geminiResp.Candidates[0]
	return geminiCandidate{Content: c.Content, FinishReason: c.FinishReason}, nil
}

func toGeminiContents(history []Message) []geminiContent {
	contents := make([]geminiContent, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleModel:
			c := geminiContent{Role: "model"}
			if m.Text != "" {
				c.Parts = append(c.Parts, geminiPart{Text: m.Text})
			}
			for _, call := range m.Calls {
				c.Parts = append(c.Parts, geminiPart{FunctionCall: &geminiFunctionCall{Name: call.Name, Args: call.Args}})
			}
			if len(c.Parts) > 0 {
				contents = append(contents, c)
			}
		case RoleTool:
			c := geminiContent{Role: "user"}
			for _, r := range m.Results {
				c.Parts = append(c.Parts, geminiPart{FunctionResponse: &geminiFunctionResponse{Name: r.Name, Response: r.Content}})
			}
			if len(c.Parts) > 0 {
				contents = append(contents, c)
			}
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Text}}})
		}
	}
	return contents
}
