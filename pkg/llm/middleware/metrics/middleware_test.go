package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appforge/pkg/llm"
	"appforge/pkg/llm/mock"
)

type observation struct {
	model, stage, errorType string
	prompt, completion      int
	success                 bool
}

type fakeRecorder struct {
	observed []observation
}

func (f *fakeRecorder) ObserveRequest(model, stage string, promptTokens, completionTokens int, success bool, errorType string, _ time.Duration) {
	f.observed = append(f.observed, observation{model, stage, errorType, promptTokens, completionTokens, success})
}

func TestMiddleware_RecordsSuccessAndFailure(t *testing.T) {
	rec := &fakeRecorder{}
	base := mock.New("test-model",
		mock.Step{Response: llm.CompletionResponse{Content: "ok", InputTokens: 12, OutputTokens: 3}},
		mock.Fail(errors.New("status code: 401")),
	)
	client := llm.Chain(base, Middleware(rec, nil, nil))

	ctx := WithStage(context.Background(), "planner")
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hello")})

	_, err := client.Complete(ctx, req)
	require.NoError(t, err)
	_, err = client.Complete(ctx, req)
	require.Error(t, err)

	require.Len(t, rec.observed, 2)
	assert.Equal(t, observation{"test-model", "planner", "", 12, 3, true}, rec.observed[0])
	assert.Equal(t, observation{"test-model", "planner", "auth", 0, 0, false}, rec.observed[1])
}

func TestPrometheusRecorder_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveRequest("m", "coder", 10, 4, true, "", 50*time.Millisecond)
	rec.ObserveRequest("m", "coder", 0, 0, false, "transient", 10*time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)

	totals := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				totals[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.InDelta(t, 2, totals["appforge_llm_requests_total"], 0)
	assert.InDelta(t, 14, totals["appforge_llm_tokens_total"], 0)
}

func TestDefaultUsageExtractor_CountsWhenProviderSilent(t *testing.T) {
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("write an html page with a title")})
	p, c := DefaultUsageExtractor(req, llm.CompletionResponse{Content: "<html></html>"})
	assert.Positive(t, p)
	assert.Positive(t, c)

	p, c = DefaultUsageExtractor(req, llm.CompletionResponse{InputTokens: 7, OutputTokens: 2})
	assert.Equal(t, 7, p)
	assert.Equal(t, 2, c)
}

func TestStageFromContext(t *testing.T) {
	assert.Equal(t, "unknown", StageFromContext(context.Background()))
	assert.Equal(t, "coder", StageFromContext(WithStage(context.Background(), "coder")))
}

func TestNilRecorderFallsBackToNop(t *testing.T) {
	client := llm.Chain(mock.New("m", mock.Reply("x")), Middleware(nil, nil, nil))
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("x")}))
	require.NoError(t, err)
}
