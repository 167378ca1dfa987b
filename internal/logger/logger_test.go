package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/options-simulator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesRotatedFile(t *testing.T) {
	dir := t.TempDir()

	log, err := New(config.LogConfig{Level: "debug", Format: "json", Dir: dir})
	require.NoError(t, err)

	log.Info("settled trade")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "settled trade")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
