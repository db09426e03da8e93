package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrAnalysisUnavailable indicates the analysis collaborator could not be
// reached or answered with a non-success status.
var ErrAnalysisUnavailable = errors.New("analysis service unavailable")

// AnalyzeRequest carries the idea fields handed to the collaborator.
type AnalyzeRequest struct {
	Title       string
	Description string
	Language    string
}

// Analyzer produces a structured validation report for a startup idea.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error)
}

// LLMConfig configures the chat-completions client. The proxy speaks the
// OpenAI-compatible protocol, so BaseURL may point at any conforming gateway.
type LLMConfig struct {
	BaseURL string        `env:"LLM_PROXY_URL" envDefault:"https://llm-proxy.densematrix.ai"`
	APIKey  string        `env:"LLM_PROXY_KEY,required"`
	Model   string        `env:"LLM_MODEL" envDefault:"anthropic/claude-sonnet-4-20250514"`
	Timeout time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
}

// LLMClient implements Analyzer against an OpenAI-compatible
// /v1/chat/completions endpoint.
type LLMClient struct {
	cfg    LLMConfig
	client *http.Client
}

func NewLLMClient(cfg LLMConfig) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LLMClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze sends the analyst prompt and decodes the model's JSON report.
func (c *LLMClient) Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(req)},
		},
		Temperature: 0.7,
		MaxTokens:   4000,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errors.Join(ErrAnalysisUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Join(ErrAnalysisUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrAnalysisUnavailable, resp.StatusCode, respBody)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResult, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrMalformedResult)
	}

	return ParseResult(chat.Choices[0].Message.Content)
}

const analystPrompt = `You are an expert startup analyst and venture capitalist. Analyze the following startup idea and provide a comprehensive validation report.

**Startup Idea:**
Title: %s
Description: %s

**Provide your analysis in the following JSON format:**
{
  "overall_score": <integer 0-100>,
  "market_analysis": {
    "tam": "<Total Addressable Market estimate>",
    "sam": "<Serviceable Available Market estimate>",
    "som": "<Serviceable Obtainable Market estimate>",
    "market_trends": ["<trend 1>", "<trend 2>", ...],
    "target_customers": "<description of ideal customers>",
    "score": <integer 0-100>
  },
  "competition_analysis": {
    "direct_competitors": ["<competitor 1>", "<competitor 2>", ...],
    "indirect_competitors": ["<competitor 1>", "<competitor 2>", ...],
    "competitive_advantages": ["<advantage 1>", "<advantage 2>", ...],
    "barriers_to_entry": ["<barrier 1>", "<barrier 2>", ...],
    "score": <integer 0-100>
  },
  "technical_feasibility": {
    "technology_stack": ["<tech 1>", "<tech 2>", ...],
    "development_complexity": "<low/medium/high>",
    "time_to_mvp": "<estimate in weeks/months>",
    "key_technical_challenges": ["<challenge 1>", "<challenge 2>", ...],
    "score": <integer 0-100>
  },
  "business_model": {
    "revenue_streams": ["<stream 1>", "<stream 2>", ...],
    "pricing_strategy": "<description>",
    "unit_economics": "<description>",
    "scalability": "<low/medium/high>",
    "score": <integer 0-100>
  },
  "risks": {
    "market_risks": ["<risk 1>", "<risk 2>", ...],
    "technical_risks": ["<risk 1>", "<risk 2>", ...],
    "financial_risks": ["<risk 1>", "<risk 2>", ...],
    "regulatory_risks": ["<risk 1>", "<risk 2>", ...],
    "overall_risk_level": "<low/medium/high>"
  },
  "suggestions": {
    "immediate_actions": ["<action 1>", "<action 2>", ...],
    "improvements": ["<improvement 1>", "<improvement 2>", ...],
    "pivot_ideas": ["<pivot 1>", "<pivot 2>", ...],
    "resources_needed": ["<resource 1>", "<resource 2>", ...]
  },
  "summary": "<2-3 sentence executive summary of the validation>"
}

Respond ONLY with valid JSON. Be specific, actionable, and data-driven in your analysis. Language: %s`

func buildPrompt(req AnalyzeRequest) string {
	return fmt.Sprintf(analystPrompt, req.Title, req.Description, req.Language)
}
