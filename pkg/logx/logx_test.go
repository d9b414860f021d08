package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// setupTestLogger redirects log output into a buffer.
func setupTestLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("planner")

	if logger.GetComponent() != "planner" {
		t.Errorf("Expected component 'planner', got '%s'", logger.GetComponent())
	}
}

func TestLogFormat(t *testing.T) {
	buf := setupTestLogger(t)

	logger := NewLogger("architect")
	logger.Info("Test message with %s", "formatting")

	output := buf.String()

	if !strings.Contains(output, "[architect]") {
		t.Errorf("Expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO") {
		t.Errorf("Expected log level in output, got: %s", output)
	}
	if !strings.Contains(output, "Test message with formatting") {
		t.Errorf("Expected formatted message in output, got: %s", output)
	}
}

func TestLogLevels(t *testing.T) {
	logger := NewLogger("coder")

	tests := []struct {
		level    Level
		logFunc  func(string, ...any)
		expected string
	}{
		{LevelDebug, logger.Debug, "DEBUG"},
		{LevelInfo, logger.Info, "INFO"},
		{LevelWarn, logger.Warn, "WARN"},
		{LevelError, logger.Error, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := setupTestLogger(t)

			if tt.level == LevelDebug {
				SetDebug(true)
				defer SetDebug(false)
			}

			tt.logFunc("test message")

			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("Expected level '%s' in output, got: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	buf := setupTestLogger(t)
	SetDebug(false)

	NewLogger("coder").Debug("hidden")
	Debug(context.Background(), "coder", "hidden too")

	if buf.Len() != 0 {
		t.Errorf("Expected no debug output, got: %s", buf.String())
	}
}

func TestDebugDomainFiltering(t *testing.T) {
	buf := setupTestLogger(t)
	SetDebug(true)
	SetDebugDomains([]string{"toolloop"})
	defer func() {
		SetDebug(false)
		SetDebugDomains(nil)
	}()

	ctx := context.WithValue(context.Background(), RunIDKey, "run-42")
	Debug(ctx, "coder", "filtered out")
	Debug(ctx, "toolloop", "kept %d", 1)

	output := buf.String()
	if strings.Contains(output, "filtered out") {
		t.Errorf("Expected coder domain to be filtered, got: %s", output)
	}
	if !strings.Contains(output, "[run-42]") || !strings.Contains(output, "[toolloop] kept 1") {
		t.Errorf("Expected toolloop debug line with run id, got: %s", output)
	}
}

func TestWithComponent(t *testing.T) {
	buf := setupTestLogger(t)

	original := NewLogger("orchestrator")
	derived := original.WithComponent("orchestrator/run-1")

	original.Info("one")
	derived.Info("two")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[orchestrator]") {
		t.Errorf("Expected first line to contain [orchestrator], got: %s", lines[0])
	}
	if !strings.Contains(lines[1], "[orchestrator/run-1]") {
		t.Errorf("Expected second line to contain derived component, got: %s", lines[1])
	}
}

func TestWrap(t *testing.T) {
	_ = setupTestLogger(t)

	if Wrap(nil, "noop") != nil {
		t.Error("Expected Wrap(nil) to return nil")
	}

	base := errors.New("disk full")
	err := Wrap(base, "write index.html")
	if !errors.Is(err, base) {
		t.Errorf("Expected wrapped error to unwrap to base, got %v", err)
	}
	if err.Error() != "write index.html: disk full" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}

func TestTimestampFormat(t *testing.T) {
	buf := setupTestLogger(t)

	NewLogger("test").Info("timestamp test")

	output := buf.String()
	start := strings.Index(output, "[")
	end := strings.Index(output, "]")
	if start == -1 || end == -1 || end <= start {
		t.Fatalf("Could not find timestamp in output: %s", output)
	}

	if _, err := time.Parse(timestampFormat, output[start+1:end]); err != nil {
		t.Errorf("Invalid timestamp format '%s': %v", output[start+1:end], err)
	}
}
