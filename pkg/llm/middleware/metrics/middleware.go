package metrics

import (
	"context"
	"strings"
	"time"

	"appforge/pkg/llm"
	"appforge/pkg/llm/llmerrors"
	"appforge/pkg/logx"
	"appforge/pkg/tokens"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor is a function that extracts token usage from a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor prefers provider-reported usage and falls back to
// counting with tiktoken.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	if resp.InputTokens > 0 || resp.OutputTokens > 0 {
		return resp.InputTokens, resp.OutputTokens
	}

	var prompt strings.Builder
	for i := range req.Messages {
		prompt.WriteString(req.Messages[i].Content)
		prompt.WriteString("\n")
		for j := range req.Messages[i].ToolResults {
			prompt.WriteString(req.Messages[i].ToolResults[j].Content)
			prompt.WriteString("\n")
		}
	}
	return tokens.Count(prompt.String()), tokens.Count(resp.Content)
}

// Middleware records latency, token usage and error type for every request.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if recorder == nil {
		recorder = Nop()
	}
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()
				stage := StageFromContext(ctx)

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				}

				recorder.ObserveRequest(model, stage, promptTokens, completionTokens, err == nil, errorType(err), duration)

				if logger != nil {
					status := statusSuccess
					if err != nil {
						status = statusError
					}
					logger.Info("LLM request: model=%s stage=%s tokens=%d+%d=%d status=%s duration=%dms",
						model, stage, promptTokens, completionTokens, promptTokens+completionTokens, status, duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // pass through unchanged
			},
			func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
				start := time.Now()
				ch, err := next.Stream(ctx, req)
				recorder.ObserveRequest(next.GetModelName(), StageFromContext(ctx), 0, 0, err == nil, errorType(err), time.Since(start))
				return ch, err //nolint:wrapcheck // pass through unchanged
			},
			next.GetModelName,
		)
	}
}

// errorType labels err for metrics.
func errorType(err error) string {
	if err == nil {
		return ""
	}
	return llmerrors.Classify(err, 0).Type.String()
}
