package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"debug console", "debug", "console"},
		{"info console", "info", "console"},
		{"json format", "info", "json"},
		{"uppercase level", "ERROR", "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Setup(tt.level, tt.format)
			if Log == nil {
				t.Error("expected Log to be initialized")
			}
		})
	}
}

func TestLevelMapping(t *testing.T) {
	tests := []struct {
		level  string
		expect zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			Setup(tt.level, "console")
			if got := zerolog.GlobalLevel(); got != tt.expect {
				t.Errorf("level %s: expected %v, got %v", tt.level, tt.expect, got)
			}
		})
	}
}

func TestFieldHandling(t *testing.T) {
	Setup("debug", "console")

	// None of these shapes should panic.
	Log.Info("no fields")
	Log.Info("paired fields", "kernel", "f32_sample", "offset", 7)
	Log.Warn("odd args drop the orphan", "key", "value", "orphan")
	Log.Error("non-string key", 123, "value")
	Log.Debug("nil value", "key", nil)
}
