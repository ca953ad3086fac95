// internal/utils/logger_test.go
package utils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggerConfig{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.WithField("theater", "Film Forum").
		WithFields(map[string]interface{}{"movies": 3}).
		Infof("scraped %s", "ok")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "scraped ok", line["message"])
	assert.Equal(t, "Film Forum", line["theater"])
	assert.EqualValues(t, 3, line["movies"])
}

func TestNewLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggerConfig{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Debug("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "shown"))
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.WithField("k", "v").Errorf("nothing %d", 1)
	})
}
