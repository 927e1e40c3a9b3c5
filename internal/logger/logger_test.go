package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		"info":   zapcore.InfoLevel,
		" WARN ": zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
		"panic":  zapcore.PanicLevel,
		"fatal":  zapcore.FatalLevel,
	}

	for input, want := range cases {
		got, ok := ParseLogLevel(input)
		require.True(t, ok, input)
		require.Equal(t, want, got)
	}

	_, ok := ParseLogLevel("verbose")
	require.False(t, ok)
}

func TestSetLevel(t *testing.T) {
	previous := Level()
	defer SetLevel(previous)

	SetLevel(zapcore.DebugLevel)
	require.Equal(t, zapcore.DebugLevel, Level())
}
