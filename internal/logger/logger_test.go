package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/townsquare/internal/config"
	"go.uber.org/zap/zapcore"
)

func TestInit_FileOutputAndLevel(t *testing.T) {
	dir := t.TempDir()
	err := Init(&config.LogConfig{
		Level:  "warn",
		Format: "json",
		Output: "file",
		File: config.LogFileConfig{
			Path:       dir,
			Filename:   "townsquare.log",
			MaxSize:    1,
			MaxAge:     1,
			MaxBackups: 1,
		},
		Modules: map[string]string{"phase": "debug"},
	})
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, Level())

	GetLogger().Error("写入失败测试")
	require.NoError(t, Sync())

	data, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "写入失败测试")

	SetLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, Level())

	assert.NotNil(t, WithModule("phase"))
	assert.NotNil(t, WithModule("unconfigured"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}
