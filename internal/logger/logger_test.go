package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	testCases := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"verbose", zapcore.InfoLevel},
	}

	for _, format := range []string{"json", "console"} {
		for _, tc := range testCases {
			t.Run(format+"/"+tc.level, func(t *testing.T) {
				l, err := New(tc.level, format, "carelog")
				require.NoError(t, err)
				assert.True(t, l.Core().Enabled(tc.want))
				if tc.want > zapcore.DebugLevel {
					assert.False(t, l.Core().Enabled(tc.want-1))
				}
			})
		}
	}
}
