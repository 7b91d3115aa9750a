package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "warn", Format: FormatJSON, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", slog.Int("code", 3))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %d: %q", len(lines), buf.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["msg"] != "shown" || record["code"] != float64(3) {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestAutoFormatFallsBackToJSONForNonTerminals(t *testing.T) {
	var buf bytes.Buffer
	New(&Config{Level: "info", Format: FormatAuto, Output: &buf}).Info("hello")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected JSON output for a buffer, got %q", buf.String())
	}

	buf.Reset()
	New(&Config{Level: "info", Format: FormatText, Output: &buf}).Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("PROCVISOR_LOG_LEVEL", "DEBUG")
	t.Setenv("PROCVISOR_LOG_FORMAT", "text")
	t.Setenv("PROCVISOR_LOG_SOURCE", "1")

	cfg := FromEnv()
	if cfg.Level != "debug" || cfg.Format != FormatText || !cfg.AddSource {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	if err := (&Config{Level: "loud"}).Validate(); err == nil {
		t.Fatalf("expected level error")
	}
	if err := (&Config{Level: "info", Format: "xml"}).Validate(); err == nil {
		t.Fatalf("expected format error")
	}
}

func TestWithProcessAddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	logger := WithProcess(New(&Config{Level: "debug", Format: FormatJSON, Output: &buf}), "web", "abc")
	logger.Debug("started")
	if !strings.Contains(buf.String(), `"process":"web"`) || !strings.Contains(buf.String(), `"process_id":"abc"`) {
		t.Fatalf("missing correlation fields: %s", buf.String())
	}
}
