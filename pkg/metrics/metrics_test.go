package metrics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmmetrics "appforge/pkg/llm/middleware/metrics"
)

func TestSummarize(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	llmRec := llmmetrics.NewPrometheusRecorder(reg)

	rec.ObserveNode("plan", time.Second, nil)
	rec.ObserveNode("architect", time.Second, nil)
	rec.ObserveNode("coder", time.Second, nil)
	rec.ObserveNode("coder", time.Second, errors.New("x"))
	rec.ObserveStep(time.Second, nil)
	rec.ObserveStep(time.Second, errors.New("x"))
	rec.ObserveRun("error", time.Minute)

	llmRec.ObserveRequest("m", "plan", 100, 20, true, "", time.Second)
	llmRec.ObserveRequest("m", "coder", 50, 5, true, "", time.Second)
	llmRec.ObserveRequest("m", "coder", 0, 0, false, "transient", time.Second)

	rm, err := Summarize(reg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rm.NodeInvocations["coder"])
	assert.Equal(t, int64(1), rm.NodeInvocations["plan"])
	assert.Equal(t, int64(3), rm.LLMRequests)
	assert.Equal(t, int64(1), rm.LLMErrors)
	assert.Equal(t, int64(150), rm.PromptTokens)
	assert.Equal(t, int64(25), rm.CompletionTokens)
	assert.Equal(t, int64(175), rm.TotalTokens)
	assert.Equal(t, int64(1), rm.StepsSucceeded)
	assert.Equal(t, int64(1), rm.StepsFailed)
}

func TestSummarize_EmptyRegistry(t *testing.T) {
	rm, err := Summarize(prometheus.NewRegistry())
	require.NoError(t, err)
	assert.Zero(t, rm.TotalTokens)
	assert.Empty(t, rm.NodeInvocations)
}

func TestWriteText(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusRecorder(reg).ObserveRun("done", time.Second)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	assert.Contains(t, buf.String(), `appforge_runs_total{status="done"} 1`)
	assert.Contains(t, buf.String(), "# TYPE appforge_run_duration_seconds histogram")
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.ObserveNode("plan", 0, nil)
	r.ObserveStep(0, nil)
	r.ObserveRun("done", 0)
}
