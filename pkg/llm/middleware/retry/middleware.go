package retry

import (
	"context"
	"fmt"
	"time"

	"appforge/pkg/llm"
	"appforge/pkg/llm/llmerrors"
	"appforge/pkg/logx"
)

// Middleware wraps an LLM client with retry logic. Retries apply to single model
// requests only; a failed coder step is never retried here.
func Middleware(policy *Policy, logger *logx.Logger) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				var resp llm.CompletionResponse
				err := do(ctx, policy, logger, func() error {
					var err error
					resp, err = next.Complete(ctx, req)
					return err
				})
				return resp, err
			},
			func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
				var ch <-chan llm.StreamChunk
				err := do(ctx, policy, logger, func() error {
					var err error
					ch, err = next.Stream(ctx, req)
					return err
				})
				return ch, err
			},
			next.GetModelName,
		)
	}
}

func do(ctx context.Context, policy *Policy, logger *logx.Logger, call func() error) error {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= policy.Config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if delay := policy.CalculateDelay(attempt); delay > 0 {
				select {
				case <-ctx.Done():
					return fmt.Errorf("retry cancelled: %w", ctx.Err())
				case <-time.After(delay):
				}
			}
		}

		attempts = attempt
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || !policy.ShouldRetry(lastErr) {
			return lastErr
		}
		if logger != nil && attempt < policy.Config.MaxAttempts {
			logger.Warn("LLM request failed (attempt %d/%d), retrying: %v", attempt, policy.Config.MaxAttempts, lastErr)
		}
	}

	if attempts > 1 {
		return llmerrors.NewServiceUnavailableError(lastErr, attempts)
	}
	return lastErr
}
