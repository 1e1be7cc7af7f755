package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"DEBUG", zapcore.DebugLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	for _, json := range []bool{false, true} {
		logger, err := New("debug", json)
		if err != nil {
			t.Fatalf("New(json=%v) failed: %v", json, err)
		}
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("Expected debug level to be enabled")
		}
	}
	if _, err := New("loud", false); err == nil {
		t.Error("Expected error for unknown level")
	}
}
