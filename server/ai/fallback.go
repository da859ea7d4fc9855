package ai

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

// FallbackChain tries providers strictly in order, returning the first
// successful completion. Each provider sees the same system prompt and
// history.
type FallbackChain struct {
	providers []Provider
}

// NewFallbackChain creates a chain over the given providers. Nil entries
// are skipped so callers can pass an unconfigured secondary.
func NewFallbackChain(providers ...Provider) *FallbackChain {
	chain := &FallbackChain{}
	for _, p := range providers {
		if p != nil {
			chain.providers = append(chain.providers, p)
		}
	}
	return chain
}

func (c *FallbackChain) Name() string {
	return "fallback"
}

// Complete tries each provider in order.
func (c *FallbackChain) Complete(ctx context.Context, system string, history []Message, maxTokens int) (string, error) {
	if len(c.providers) == 0 {
		return "", errors.New("no AI providers configured")
	}

	var lastErr error
	for i, p := range c.providers {
		result, err := p.Complete(ctx, system, history, maxTokens)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < len(c.providers)-1 {
			slog.Warn("AI provider failed, falling back",
				"provider", p.Name(),
				"error", err)
		}
	}
	return "", errors.Wrap(lastErr, "all AI providers failed")
}
