package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_FileSinkAndLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forum.log")
	Configure("production", "warn", FileConfig{Path: path, MaxSizeMB: 1})
	t.Cleanup(Init)

	Info("hidden %d", 1)
	Warn("shown %d", 2)
	l := WithComponent("reconcile")
	l.Error().Msg("component line")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, `"message":"shown 2"`)
	assert.Contains(t, out, `"component":"reconcile"`)
	assert.Contains(t, out, `"service":"angple-forum"`)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, isLocal(""))
	assert.True(t, isLocal("local"))
	assert.False(t, isLocal("production"))
}
