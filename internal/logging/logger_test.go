package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.log")

	logger, err := New(Options{File: path})
	require.NoError(t, err)

	logger.Info("item written", zap.Int64("id", 7))
	logger.Debug("hidden at info level")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `"msg":"item written"`)
	assert.Contains(t, out, `"id":7`)
	assert.False(t, strings.Contains(out, "hidden at info level"))
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.log")

	logger, err := New(Options{File: path, Verbose: true})
	require.NoError(t, err)

	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_StderrLogger(t *testing.T) {
	logger, err := New(Options{})
	require.NoError(t, err)

	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
