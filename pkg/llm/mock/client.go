// Package mock provides a scripted llm.LLMClient for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"appforge/pkg/llm"
)

// Step is one scripted reply.
type Step struct {
	Err      error
	Response llm.CompletionResponse
}

// Handler computes a reply from the request. When set it takes precedence over
// scripted steps.
type Handler func(req llm.CompletionRequest) (llm.CompletionResponse, error)

// Client replays scripted replies in order and records every request.
type Client struct {
	handler  Handler
	model    string
	steps    []Step
	requests []llm.CompletionRequest
	mu       sync.Mutex
}

// New returns a client that answers with steps in order.
func New(model string, steps ...Step) *Client {
	return &Client{model: model, steps: steps}
}

// NewWithHandler returns a client that answers every request with h.
func NewWithHandler(model string, h Handler) *Client {
	return &Client{model: model, handler: h}
}

// Reply is a Step that returns text content only.
func Reply(content string) Step {
	return Step{Response: llm.CompletionResponse{Content: content, StopReason: "end_turn"}}
}

// ToolCalls is a Step that requests the given tool calls.
func ToolCalls(calls ...llm.ToolCall) Step {
	return Step{Response: llm.CompletionResponse{ToolCalls: calls, StopReason: "tool_use"}}
}

// Fail is a Step that returns err.
func Fail(err error) Step {
	return Step{Err: err}
}

// Call builds a tool call with a generated ID.
func Call(id, name string, params map[string]any) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Parameters: params}
}

// Complete implements llm.LLMClient.
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, in)
	handler := c.handler
	var step *Step
	if handler == nil && len(c.steps) > 0 {
		s := c.steps[0]
		c.steps = c.steps[1:]
		step = &s
	}
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return llm.CompletionResponse{}, err
	}
	if handler != nil {
		return handler(in)
	}
	if step == nil {
		return llm.CompletionResponse{}, fmt.Errorf("mock: no scripted response for request %d", c.Calls())
	}
	return step.Response, step.Err
}

// Stream implements llm.LLMClient.
func (c *Client) Stream(ctx context.Context, in llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	return llm.StreamFromComplete(ctx, c, in), nil
}

// GetModelName implements llm.LLMClient.
func (c *Client) GetModelName() string {
	return c.model
}

// Requests returns a copy of every request received so far.
func (c *Client) Requests() []llm.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.CompletionRequest(nil), c.requests...)
}

// Calls returns the number of requests received so far.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// Remaining returns the number of unconsumed scripted steps.
func (c *Client) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.steps)
}
