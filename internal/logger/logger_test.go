package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestZapWritesStructuredObjects(t *testing.T) {
	var buf bytes.Buffer
	log := NewZap(New("debug", zapcore.AddSync(&buf)))

	log.DebugObj("upload completed", "upload", map[string]any{"key": "abc", "size": 5})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "upload completed" || entry["level"] != "debug" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("missing ts in %v", entry)
	}
	upload, ok := entry["upload"].(map[string]any)
	if !ok || upload["key"] != "abc" {
		t.Fatalf("unexpected upload field %v", entry["upload"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewZap(New("warn", zapcore.AddSync(&buf)))

	log.InfoObj("hidden", "k", 1)
	log.DebugObj("hidden", "k", 1)
	log.WarnObj("shown", "k", 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"shown"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestNilSugarIsSafe(t *testing.T) {
	NewZap(nil).ErrorObj("dropped", "k", 1)
	var nop Logger = &NopLogger{}
	nop.InfoObj("dropped", "k", 1)
}
