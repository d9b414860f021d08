package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// RunMetrics is an aggregate view of one registry's counters.
type RunMetrics struct {
	NodeInvocations  map[string]int64 `json:"node_invocations"`
	LLMRequests      int64            `json:"llm_requests"`
	LLMErrors        int64            `json:"llm_errors"`
	PromptTokens     int64            `json:"prompt_tokens"`
	CompletionTokens int64            `json:"completion_tokens"`
	TotalTokens      int64            `json:"total_tokens"`
	StepsSucceeded   int64            `json:"steps_succeeded"`
	StepsFailed      int64            `json:"steps_failed"`
}

// Summarize aggregates the pipeline and LLM counters gathered from g.
func Summarize(g prometheus.Gatherer) (*RunMetrics, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather metrics: %w", err)
	}

	rm := &RunMetrics{NodeInvocations: make(map[string]int64)}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			value := int64(m.GetCounter().GetValue())
			switch mf.GetName() {
			case "appforge_node_invocations_total":
				rm.NodeInvocations[label(m, "node")] += value
			case "appforge_llm_requests_total":
				rm.LLMRequests += value
				if label(m, "status") == statusError {
					rm.LLMErrors += value
				}
			case "appforge_llm_tokens_total":
				switch label(m, "type") {
				case "prompt":
					rm.PromptTokens += value
				case "completion":
					rm.CompletionTokens += value
				}
			case "appforge_steps_total":
				if label(m, "status") == statusSuccess {
					rm.StepsSucceeded += value
				} else {
					rm.StepsFailed += value
				}
			}
		}
	}
	rm.TotalTokens = rm.PromptTokens + rm.CompletionTokens
	return rm, nil
}

// WriteText writes every gathered family in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
