package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"crmhub/pkg/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONWithServiceField(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())

	l.WithField("user_id", 7).Info("Permission resolved")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Permission resolved", entry["msg"])
	assert.Equal(t, ServiceName, entry["service"])
	assert.EqualValues(t, 7, entry["user_id"])
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "crmhub.log")
	var console bytes.Buffer
	l, err := New(config.LogConfig{Level: "info", Format: "text", FilePath: path, MaxSize: 1}, &console)
	require.NoError(t, err)

	l.Warn("Cache unavailable")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Cache unavailable")
	assert.Contains(t, console.String(), "Cache unavailable")
}

func TestWithComponent(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	var buf bytes.Buffer
	l, err := New(config.LogConfig{Format: "json"}, &buf)
	require.NoError(t, err)
	Logger = l

	WithComponent("seed").Info("RBAC catalog seeded")
	assert.Contains(t, buf.String(), `"component":"seed"`)
}
