package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"RedditMonitor/internal/config"
	"RedditMonitor/internal/domain"
	"RedditMonitor/internal/ports"
)

// AnthropicClient implements ports.Completer with the Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

var _ ports.Completer = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client. SDK retries are disabled; throttling is
// surfaced as ErrRateLimited and handled by the caller.
func NewAnthropicClient(cfg config.LLMConfig) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}
}

// Complete sends prompt as one user turn and concatenates the text blocks of the reply.
func (a *AnthropicClient) Complete(ctx context.Context, prompt string, params domain.GenerationParams) (string, error) {
	maxTokens := int64(params.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(params.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: anthropic: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
