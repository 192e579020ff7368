package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLoggersWritesJSONFiles(t *testing.T) {
	dir := t.TempDir()
	InitLoggers(dir)
	t.Cleanup(func() {
		ErrorLogger, AuditLogger, RequestLogger = zap.NewNop(), zap.NewNop(), zap.NewNop()
		SecurityLogger, SystemLogger = zap.NewNop(), zap.NewNop()
	})

	AuditLogger.Info("task created", zap.Int("task_id", 3))
	SecurityLogger.Info("below warn level, dropped")
	SyncLoggers()

	data, err := os.ReadFile(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"task_id":3`)
	assert.Contains(t, string(data), `"timestamp"`)

	_, err = os.Stat(filepath.Join(dir, "security.log"))
	assert.True(t, os.IsNotExist(err), "lumberjack opens files lazily on first write")
}
