// Package timeout provides timeout middleware for LLM clients.
package timeout

import (
	"context"
	"time"

	"appforge/pkg/llm"
)

// Middleware bounds each Complete call with its own deadline. A zero duration
// disables the bound.
func Middleware(duration time.Duration) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		if duration <= 0 {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				timeoutCtx, cancel := context.WithTimeout(ctx, duration)
				defer cancel()
				return next.Complete(timeoutCtx, req)
			},
			// Streams outlive this call, so they only inherit the caller's context.
			next.Stream,
			next.GetModelName,
		)
	}
}
