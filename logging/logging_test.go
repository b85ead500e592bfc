package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func Test_Setup(t *testing.T) {
	defaultLogger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(defaultLogger) })

	_, err := Setup(Options{Level: "verbose"})
	require.Error(t, err)
	_, err = Setup(Options{Format: "xml"})
	require.Error(t, err)

	buf := &bytes.Buffer{}
	logger, err := Setup(Options{Level: "warn", Format: "json", Output: buf})
	require.NoError(t, err)

	logger.Info("skipped")
	logger.Warn("written", "component", "Test")

	entry := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "written", entry["msg"])
	require.Equal(t, "Test", entry["component"])
}
