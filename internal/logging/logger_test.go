package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelInfo, WithWriter(&buf))

	logger.Info("evaluating node", "node", "a", "error", errors.New("boom"))
	logger.Debug("cache hit", "node", "a")

	out := buf.String()
	assert.Contains(t, out, "err=boom")
	assert.NotContains(t, out, "error=")
	assert.NotContains(t, out, "cache hit")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(slog.LevelDebug, WithWriter(&buf), WithJSON()).Debug("recomputed node", "node", "b")
	assert.Contains(t, buf.String(), `"node":"b"`)
}
