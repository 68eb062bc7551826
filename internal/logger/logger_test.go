package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/adventure-engine/internal/config"
)

func TestSetupWriter_Production(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	l := SetupWriter(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)
	WithClientID(l, "abc").Info("Session started")
	l.Debug("hidden")

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "{"), out)
	assert.Contains(t, out, `"client_id":"abc"`)
	assert.NotContains(t, out, "hidden")
}

func TestSetupWriter_Development(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	l := SetupWriter(&config.Config{Environment: "development", LogLevel: slog.LevelDebug}, &buf)
	WithError(l, errors.New("boom")).Debug("failed")

	assert.Contains(t, buf.String(), "error=boom")
	assert.Same(t, l, slog.Default())
}
