package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sshwatch/internal/types"
)

func TestInit_Stderr(t *testing.T) {
	log := Init(types.LoggingConfig{Level: "info"})
	require.NotNil(t, log)
	assert.Same(t, log, Get(nil))
	_ = Sync()
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sshwatch.log")
	log := Init(types.LoggingConfig{Level: "debug", Path: path, MaxSize: 1})
	log.Infow("hello", "k", "v")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("bogus"))
}

func TestWithContext(t *testing.T) {
	nop := zap.NewNop().Sugar()
	ctx := WithContext(context.Background(), nop)
	assert.Same(t, nop, Get(ctx))
	assert.NotNil(t, Get(context.Background()))
}
