package llm_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appforge/pkg/llm"
	"appforge/pkg/llm/mock"
)

func tagging(tag string, order *[]string) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				*order = append(*order, tag)
				return next.Complete(ctx, req)
			},
			next.Stream,
			next.GetModelName,
		)
	}
}

func TestChain_FirstMiddlewareIsOutermost(t *testing.T) {
	var order []string
	base := mock.New("test-model", mock.Reply("ok"))

	client := llm.Chain(base, tagging("a", &order), tagging("b", &order), tagging("c", &order))

	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, "test-model", client.GetModelName())
}

func TestChain_NoMiddleware(t *testing.T) {
	base := mock.New("m")
	assert.Same(t, base, llm.Chain(base))
}

func TestStreamToReader(t *testing.T) {
	client := mock.New("m", mock.Reply("streamed text"))

	ch, err := client.Stream(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.NoError(t, err)

	data, err := io.ReadAll(llm.StreamToReader(ch))
	require.NoError(t, err)
	assert.Equal(t, "streamed text", string(data))
}

func TestCompletionRequest_Validate(t *testing.T) {
	req := llm.NewCompletionRequest(nil)
	require.Error(t, req.Validate())

	req = llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewSystemMessage("s"), llm.NewUserMessage("u")})
	require.NoError(t, req.Validate())
	assert.Equal(t, llm.DefaultMaxTokens, req.MaxTokens)

	req.ToolChoice = llm.ToolChoiceAny
	require.Error(t, req.Validate())

	req.ToolChoice = ""
	req.Temperature = 3
	require.Error(t, req.Validate())
}
