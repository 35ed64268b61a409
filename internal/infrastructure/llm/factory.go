package llm

import (
	"context"
	"fmt"

	"RedditMonitor/internal/config"
	"RedditMonitor/internal/ports"
)

// New returns the Completer for cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (ports.Completer, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
