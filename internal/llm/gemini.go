package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	genai "google.golang.org/genai"
)

const (
	defaultAttempts = 3
	baseBackoff     = 300 * time.Millisecond
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiClient is a thin wrapper around the official genai client with
// retries.
type GeminiClient struct {
	generate generateFunc
	model    string
	attempts int
	backoff  time.Duration
	logger   *zap.Logger
}

// NewGeminiClient creates a client for the Gemini API. An empty apiKey lets
// genai read GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewGeminiClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiClient, error) {
	if model == "" {
		return nil, fmt.Errorf("gemini model cannot be empty")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGeminiClient(cli.Models.GenerateContent, model, logger), nil
}

func newGeminiClient(generate generateFunc, model string, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{
		generate: generate,
		model:    model,
		attempts: defaultAttempts,
		backoff:  baseBackoff,
		logger:   logger,
	}
}

// Name implements Client
func (g *GeminiClient) Name() string { return "Gemini:" + g.model }

// Close implements Client
func (g *GeminiClient) Close() error { return nil }

// Generate sends the prompt and returns the concatenated text of the first
// candidate. Failed attempts are retried with exponential backoff.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = req.MaxTokens
	}
	contents := []*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}}

	var lastErr error
	for attempt := 0; attempt < g.attempts; attempt++ {
		if attempt > 0 {
			wait := g.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, err := g.generate(ctx, g.model, contents, config)
		if err == nil {
			if text := responseText(resp); text != "" {
				return text, nil
			}
			err = ErrEmptyResponse
		}
		lastErr = err
		g.logger.Warn("LLM request failed",
			zap.String("model", g.model),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("gemini %s: %w", g.model, lastErr)
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
