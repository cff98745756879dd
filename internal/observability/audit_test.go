package observability

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLoggerRecord(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLogger(zerolog.New(&buf))

	a.Record(context.Background(), AuditEvent{
		Type:     "command",
		Actor:    "tty-1",
		Action:   "command:bg",
		Status:   "success",
		Metadata: map[string]interface{}{"retired_lane": 1},
	})

	out := buf.String()
	assert.Contains(t, out, `"action":"command:bg"`)
	assert.Contains(t, out, `"actor":"tty-1"`)
	assert.Contains(t, out, `"retired_lane":1`)
}

func TestInitAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))
	t.Cleanup(func() {
		_ = GetAuditLogger().Close()
		auditMu.Lock()
		auditInst = nil
		auditMu.Unlock()
	})

	RecordWorkAudit(context.Background(), "tty-1", "success", map[string]interface{}{"lane_id": 2})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"work_submitted"`)
}
