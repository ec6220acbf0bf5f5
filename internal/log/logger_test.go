package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"firestige.xyz/lidarpcd/internal/config"
)

func keepDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestParseLevelValid(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if err != nil {
				t.Errorf("parseLevel(%q) returned error: %v", tt.input, err)
			}
			if level != tt.expected {
				t.Errorf("parseLevel(%q) = %v, expected %v", tt.input, level, tt.expected)
			}
		})
	}
}

func TestParseLevelInvalid(t *testing.T) {
	for _, input := range []string{"invalid", "trace", "fatal", ""} {
		t.Run(input, func(t *testing.T) {
			if _, err := parseLevel(input); err == nil {
				t.Errorf("parseLevel(%q) should return error, got nil", input)
			}
		})
	}
}

func TestInitStderr(t *testing.T) {
	keepDefault(t)

	if err := Init(config.LogConfig{Level: "info", Format: "json"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if slog.Default() == nil {
		t.Fatal("Expected logger to be set, got nil")
	}
}

func TestInitWriterLevelFiltering(t *testing.T) {
	keepDefault(t)
	var buf bytes.Buffer

	if err := InitWriter(config.LogConfig{Level: "warn", Format: "text"}, &buf); err != nil {
		t.Fatalf("InitWriter failed: %v", err)
	}

	slog.Debug("debug message")
	slog.Info("info message")
	slog.Warn("warn message", "frames", 3)

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("Messages below warn should be filtered out, got %q", output)
	}
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "frames=3") {
		t.Errorf("Warn message should be present, got %q", output)
	}
}

func TestInitWriterJSON(t *testing.T) {
	keepDefault(t)
	var buf bytes.Buffer

	if err := InitWriter(config.LogConfig{Level: "debug", Format: "json"}, &buf); err != nil {
		t.Fatalf("InitWriter failed: %v", err)
	}
	slog.Debug("frame complete", "index", 7)

	output := buf.String()
	if !strings.Contains(output, `"msg":"frame complete"`) || !strings.Contains(output, `"index":7`) {
		t.Errorf("Unexpected JSON output: %q", output)
	}
}

func TestInitWithFileOutput(t *testing.T) {
	keepDefault(t)
	logPath := filepath.Join(t.TempDir(), "test.log")

	cfg := config.LogConfig{
		Level:  "debug",
		Format: "text",
		Outputs: config.LogOutputsConfig{
			File: config.FileOutputConfig{
				Enabled: true,
				Path:    logPath,
				Rotation: config.RotationConfig{
					MaxSizeMB:  10,
					MaxBackups: 3,
					MaxAgeDays: 7,
					Compress:   true,
				},
			},
		},
	}

	var console bytes.Buffer
	if err := InitWriter(cfg, &console); err != nil {
		t.Fatalf("InitWriter failed: %v", err)
	}
	slog.Info("test message", "key", "value")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Log file was not created at %s: %v", logPath, err)
	}
	if !strings.Contains(string(data), "test message") {
		t.Errorf("Log file missing message, got %q", data)
	}
	if !strings.Contains(console.String(), "test message") {
		t.Errorf("Console missing message, got %q", console.String())
	}
}

func TestInitWithInvalidLevel(t *testing.T) {
	err := Init(config.LogConfig{Level: "invalid", Format: "json"})
	if err == nil {
		t.Fatal("Expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("Expected error about invalid log level, got: %v", err)
	}
}

func TestInitWithInvalidFormat(t *testing.T) {
	err := Init(config.LogConfig{Level: "info", Format: "xml"})
	if err == nil {
		t.Fatal("Expected error for invalid log format, got nil")
	}
	if !strings.Contains(err.Error(), "unsupported log format") {
		t.Errorf("Expected error about unsupported format, got: %v", err)
	}
}

func TestInitWithMissingFilePath(t *testing.T) {
	cfg := config.LogConfig{
		Level:  "info",
		Format: "json",
		Outputs: config.LogOutputsConfig{
			File: config.FileOutputConfig{Enabled: true},
		},
	}

	err := Init(cfg)
	if err == nil {
		t.Fatal("Expected error for missing file path, got nil")
	}
	if !strings.Contains(err.Error(), "path") {
		t.Errorf("Expected error about missing path, got: %v", err)
	}
}
