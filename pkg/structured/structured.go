// Package structured implements schema-constrained model calls. The JSON
// Schema is reflected from a Go type, offered to the model as the only tool it
// may call, and the returned arguments are validated against the same schema
// before being decoded.
package structured

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v5"

	"appforge/pkg/llm"
	"appforge/pkg/tools"
)

// ErrGeneration is returned when the model produced no usable structured result.
var ErrGeneration = errors.New("structured generation failed")

const schemaURL = "structured.json"

// Request describes one schema-constrained call.
//
//nolint:govet // fieldalignment: struct fields ordered for clarity over memory alignment
type Request struct {
	SystemPrompt string
	UserPrompt   string

	// ToolName and ToolDescription name the forced tool that carries the result.
	ToolName        string
	ToolDescription string

	// Discard lists argument keys dropped before validation. The caller
	// fills those fields itself.
	Discard []string

	MaxTokens   int
	Temperature float32
}

// Schema holds a reflected schema in both the model-facing and the compiled form.
type Schema struct {
	Input    tools.InputSchema
	raw      []byte
	compiled *validator.Schema
}

// SchemaFor reflects T into a Schema.
func SchemaFor[T any]() (*Schema, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		Anonymous:      true,
	}
	var zero T
	reflected := r.Reflect(&zero)

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	var input tools.InputSchema
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to convert schema: %w", err)
	}

	compiler := validator.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Schema{Input: input, raw: raw, compiled: compiled}, nil
}

// JSON returns the reflected schema document.
func (s *Schema) JSON() []byte {
	return s.raw
}

// Validate checks args against the schema.
func (s *Schema) Validate(args map[string]any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode arguments: %w", err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("arguments do not match schema: %w", err)
	}
	return nil
}

// Generate makes one call that forces the model to answer through a tool whose
// input schema is T, validates the arguments and decodes them into T. Every
// failure after the request is built wraps ErrGeneration.
//
//nolint:gocritic // Request passed by value for call-site ergonomics
func Generate[T any](ctx context.Context, client llm.LLMClient, req Request) (*T, error) {
	if req.ToolName == "" {
		return nil, fmt.Errorf("structured request needs a tool name")
	}
	schema, err := SchemaFor[T]()
	if err != nil {
		return nil, err
	}

	messages := make([]llm.CompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(req.SystemPrompt))
	}
	messages = append(messages, llm.NewUserMessage(req.UserPrompt))

	completion := llm.NewCompletionRequest(messages)
	completion.Tools = []tools.ToolDefinition{{
		Name:        req.ToolName,
		Description: req.ToolDescription,
		InputSchema: schema.Input,
	}}
	completion.ToolChoice = llm.ToolChoiceAny
	if req.MaxTokens > 0 {
		completion.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		completion.Temperature = req.Temperature
	}

	resp, err := client.Complete(ctx, completion)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	args, err := findArguments(&resp, req.ToolName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	args = without(args, req.Discard)
	if err := schema.Validate(args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode result: %w", ErrGeneration, err)
	}
	return &out, nil
}

func findArguments(resp *llm.CompletionResponse, toolName string) (map[string]any, error) {
	for i := range resp.ToolCalls {
		if resp.ToolCalls[i].Name == toolName {
			if resp.ToolCalls[i].Parameters == nil {
				return nil, fmt.Errorf("tool %s called with no arguments", toolName)
			}
			return resp.ToolCalls[i].Parameters, nil
		}
	}
	return nil, fmt.Errorf("model did not call %s", toolName)
}

func without(args map[string]any, keys []string) map[string]any {
	if len(keys) == 0 {
		return args
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if !slices.Contains(keys, k) {
			out[k] = v
		}
	}
	return out
}
