package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/config"
	"github.com/victorpicon/Backend-Ai-Powered-Code-Review/model"
)

// Reviewer is the AI review backend abstraction
type Reviewer interface {
	Review(ctx context.Context, language, code string) (*model.Feedback, error)
	Name() string
}

// ProviderChain walks an ordered list of backends with retry and
// exponential backoff. An attempt tries every backend in preference order;
// attempt k waits base*2^(k-1) before the next round. The wait only
// suspends the calling goroutine.
type ProviderChain struct {
	backends    []Reviewer
	maxAttempts int
	backoffBase time.Duration
}

// NewProviderChain builds the chain from configuration: OpenAI first when a
// key is present, Anthropic as fallback. An empty chain is valid —
// Review then fails fast with ErrNoProvider.
func NewProviderChain(cfg *config.ProviderConfig) *ProviderChain {
	var backends []Reviewer
	if cfg.OpenAIKey != "" {
		backends = append(backends, NewOpenAIReviewer(cfg.OpenAIKey, cfg.OpenAIModel))
	}
	if cfg.AnthropicKey != "" {
		backends = append(backends, NewAnthropicReviewer(cfg.AnthropicKey, cfg.AnthropicModel))
	}
	if len(backends) == 0 {
		slog.Warn("no review provider configured, all submissions will fail")
	}

	return &ProviderChain{
		backends:    backends,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: time.Duration(cfg.BackoffBaseMS) * time.Millisecond,
	}
}

func (p *ProviderChain) Name() string { return "chain" }

// Review obtains feedback from the first backend that succeeds. The last
// attempt's failure is returned unmodified.
func (p *ProviderChain) Review(ctx context.Context, language, code string) (*model.Feedback, error) {
	if len(p.backends) == 0 {
		return nil, ErrNoProvider
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := p.backoffBase * (1 << (attempt - 2))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		for _, backend := range p.backends {
			feedback, err := backend.Review(ctx, language, code)
			if err == nil {
				return feedback, nil
			}
			lastErr = err
			slog.Warn("review attempt failed",
				"provider", backend.Name(),
				"attempt", attempt,
				"error", err,
			)
		}
	}
	return nil, lastErr
}

// reviewPrompt is the instruction sent to every backend. The provider must
// answer with JSON only so the feedback can be parsed into a fixed shape.
func reviewPrompt(language, code string) string {
	return fmt.Sprintf(`You are a code reviewer.
Analyze the following %s snippet and return ONLY valid JSON with this structure:

{
    "score": <integer 1-10>,
    "issues": [ "list of identified issues" ],
    "suggestions": [ "list of improvement suggestions" ],
    "security": [ "list of security concerns" ],
    "performance": [ "list of performance recommendations" ]
}

Code:
%s`, language, code)
}
