package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		log, err := New(tt.level, false)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.level, err)
		}
		if !log.Core().Enabled(tt.want) {
			t.Errorf("%q: expected %s enabled", tt.level, tt.want)
		}
		if tt.want > zapcore.DebugLevel && log.Core().Enabled(tt.want-1) {
			t.Errorf("%q: expected %s disabled", tt.level, tt.want-1)
		}
	}
}
