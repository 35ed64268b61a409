package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"RedditMonitor/internal/config"
	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/ports"
)

// GeminiClient implements ports.Completer with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ ports.Completer = (*GeminiClient)(nil)

// NewGeminiClient creates an SDK client. cfg.Endpoint overrides the API base URL.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini client misconfigured: missing api key")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// Complete generates a single candidate for prompt.
func (g *GeminiClient) Complete(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(params.Temperature)),
	}
	if params.MaxOutputTokens > 0 {
		gc.MaxOutputTokens = int32(params.MaxOutputTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), gc)
	if err != nil {
		if geminiThrottled(err) {
			return "", fmt.Errorf("%w: gemini: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func geminiThrottled(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Status == "RESOURCE_EXHAUSTED"
	}
	return false
}
