package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/cauldron/internal/domain/interfaces"
)

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Output: &buf})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("archive assembled", interfaces.F(interfaces.FieldPath, "build/libs/HMS.jar"), interfaces.F(interfaces.FieldCount, 42))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=info")
	assert.Contains(t, out, "msg=archive assembled")
	assert.Contains(t, out, "path=build/libs/HMS.jar")
	assert.Contains(t, out, "count=42")
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.With(interfaces.F(interfaces.FieldStage, "resolve")).
		Warn("download failed", interfaces.Err(errors.New("connection reset")))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "resolve", entry["stage"])
	assert.Equal(t, "connection reset", entry["error"])
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "error", Output: &buf})
	require.NoError(t, err)

	logger.Info("info")
	logger.Warn("warn")
	logger.Error("boom")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)

	_, err = New(Options{Format: "xml"})
	assert.Error(t, err)
}
