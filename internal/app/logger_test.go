package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{AppEnv: "production", LogFormat: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("sale committed", "store_id", "s1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "sale committed", line["msg"])
	require.Equal(t, "ledgerpos", line["service"])
	require.Equal(t, "production", line["env"])
	require.Equal(t, "s1", line["store_id"])
}

func TestNewLoggerTextDebugOutsideProduction(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{}, &buf).Debug("visible")
	require.Contains(t, buf.String(), "visible")
}
