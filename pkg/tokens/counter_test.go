package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	c, err := NewCounter("claude-sonnet-4")
	require.NoError(t, err)

	assert.Equal(t, 0, c.Count(""))
	assert.Positive(t, c.Count("<!DOCTYPE html><html><title>Hello</title></html>"))
	assert.Equal(t, c.Count("hello world"), Count("hello world"))
}

func TestCount_NilCounterEstimates(t *testing.T) {
	var c *Counter
	assert.Equal(t, 3, c.Count("twelve chars"))
}

func TestTruncate(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)

	short := "body { margin: 0; }"
	assert.Equal(t, short, c.Truncate(short, 1000))

	long := strings.Repeat("function f() { return 1; }\n", 200)
	cut := c.Truncate(long, 50)
	assert.Less(t, len(cut), len(long))
	assert.True(t, strings.HasSuffix(cut, "..."))
}
