package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel(" WARNING "))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("ERROR"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNewAndOrNop(t *testing.T) {
	assert.NotNil(t, New("INFO", FormatJSON))
	assert.NotNil(t, New("DEBUG", FormatConsole))
	assert.NotNil(t, OrNop(nil))

	l := New("INFO", FormatConsole)
	assert.Same(t, l, OrNop(l))
}
