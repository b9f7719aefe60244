package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_IsNop(t *testing.T) {
	l := New()
	require.NotNil(t, l.Log)
	l.Log.Info("discarded")
}

func TestInit_Levels(t *testing.T) {
	for _, lvl := range []string{"debug", "Info", "WARN", "error"} {
		l := New()
		require.NoError(t, l.Init(lvl, ""), lvl)
	}

	l := New()
	assert.Error(t, l.Init("verbose", ""))
}

func TestInit_WritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imar.log")

	l := New()
	require.NoError(t, l.Init("info", path))
	l.Log.Info("analysis billed", zap.Int("remaining_credits", 4))
	l.Log.Debug("below level")
	_ = l.Log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"analysis billed"`)
	assert.Contains(t, string(data), `"remaining_credits":4`)
	assert.NotContains(t, string(data), "below level")
}
