package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestZapLogger_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatbot.log")
	l := NewZapLogger(Options{Level: "debug", FilePath: path})

	l.Info("search", "search finished", map[string]interface{}{"results": 3})
	l.Error("usecase", "select failed", map[string]interface{}{"error": errors.New("boom")})
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"message":"search finished"`) {
		t.Errorf("expected info line in log, got %s", out)
	}
	if !strings.Contains(out, `"module":"usecase"`) {
		t.Errorf("expected module field in log, got %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Warn("x", "ignored", nil)
	if err := l.Sync(); err != nil {
		t.Errorf("nop sync returned %v", err)
	}
}
