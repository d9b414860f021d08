// Package tokens counts prompt tokens with tiktoken.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens for one model family.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter returns a counter for model. Every provider is approximated with the
// GPT-4 encoding; only the order of magnitude matters to callers.
func NewCounter(model string) (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in text, falling back to len/4 when the
// codec is unavailable.
func (c *Counter) Count(text string) int {
	if c == nil || c.codec == nil {
		return len(text) / 4
	}
	n, err := c.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// Truncate cuts text to roughly limit tokens, appending "..." when it was cut.
func (c *Counter) Truncate(text string, limit int) string {
	current := c.Count(text)
	if current <= limit {
		return text
	}
	ratio := float64(limit) / float64(current)
	charLimit := int(float64(len(text)) * ratio * 0.9)
	if charLimit >= len(text) {
		return text
	}
	return text[:charLimit] + "..."
}

//nolint:gochecknoglobals // shared codec, built once
var (
	defaultOnce    sync.Once
	defaultCounter *Counter
)

// Count counts text with a shared GPT-4 counter.
func Count(text string) int {
	defaultOnce.Do(func() {
		c, err := NewCounter("gpt-4")
		if err == nil {
			defaultCounter = c
		}
	})
	return defaultCounter.Count(text)
}
