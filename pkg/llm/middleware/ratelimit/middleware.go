// Package ratelimit throttles LLM requests per minute by count and by
// estimated tokens.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"appforge/pkg/llm"
	"appforge/pkg/tokens"
)

// Config sets per-minute budgets. Zero disables a budget.
type Config struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	TokensPerMinute   int `yaml:"tokens_per_minute"`
}

// Enabled reports whether any budget is set.
func (c Config) Enabled() bool {
	return c.RequestsPerMinute > 0 || c.TokensPerMinute > 0
}

// Limiter holds the token buckets shared by every client it wraps.
type Limiter struct {
	requests *rate.Limiter
	tokens   *rate.Limiter
	burst    int
}

// NewLimiter creates buckets that start full.
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{}
	if cfg.RequestsPerMinute > 0 {
		l.requests = rate.NewLimiter(perMinute(cfg.RequestsPerMinute), cfg.RequestsPerMinute)
	}
	if cfg.TokensPerMinute > 0 {
		l.tokens = rate.NewLimiter(perMinute(cfg.TokensPerMinute), cfg.TokensPerMinute)
		l.burst = cfg.TokensPerMinute
	}
	return l
}

func perMinute(n int) rate.Limit {
	return rate.Every(time.Minute / time.Duration(n))
}

// Wait blocks until a request estimated at n tokens may proceed. Requests
// larger than the whole minute budget wait for a full bucket.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l.requests != nil {
		if err := l.requests.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if l.tokens != nil && n > 0 {
		if n > l.burst {
			n = l.burst
		}
		if err := l.tokens.WaitN(ctx, n); err != nil {
			return fmt.Errorf("token budget wait: %w", err)
		}
	}
	return nil
}

// EstimateTokens approximates the cost of req as its prompt tokens plus the
// requested output budget.
func EstimateTokens(req llm.CompletionRequest) int {
	var prompt strings.Builder
	for i := range req.Messages {
		prompt.WriteString(req.Messages[i].Content)
		for j := range req.Messages[i].ToolResults {
			prompt.WriteString(req.Messages[i].ToolResults[j].Content)
		}
	}
	return tokens.Count(prompt.String()) + req.MaxTokens
}

// Middleware waits on limiter before each request reaches next.
func Middleware(limiter *Limiter) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		if limiter == nil {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if err := limiter.Wait(ctx, EstimateTokens(req)); err != nil {
					return llm.CompletionResponse{}, err
				}
				return next.Complete(ctx, req)
			},
			func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
				if err := limiter.Wait(ctx, EstimateTokens(req)); err != nil {
					return nil, err
				}
				return next.Stream(ctx, req)
			},
			next.GetModelName,
		)
	}
}
