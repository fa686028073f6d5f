package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestDisabledTracerProvider(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), TracingConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown of disabled provider failed: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")

	logger.Info("hidden")
	logger.Warn("shown", "key", "k")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"key":"k"`) {
		t.Fatalf("expected json output got %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("") != slog.LevelInfo {
		t.Fatalf("unexpected level parsing")
	}
}
