package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultWriter(t *testing.T) {
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON})
	assert.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
}

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{FormatJSON, `"msg":"opened session"`},
		{FormatText, `msg="opened session"`},
		{FormatPretty, "opened session"},
		{"", "opened session"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: slog.LevelInfo, Format: tt.format, Writer: &buf})
			logger.Info("opened session", "fd", 3)

			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "fd")
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: FormatPretty, Writer: &buf, NoColor: true})

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN shown")
}

func TestPrettyHandler_NoColor(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Format: FormatPretty, Writer: &buf, NoColor: true})

	logger.Debug("added watch", "path", "/tmp/a b", "wd", 1)

	line := strings.TrimSpace(buf.String())
	assert.NotContains(t, line, "\033[")
	// Drop the timestamp.
	_, rest, ok := strings.Cut(line, " ")
	require.True(t, ok)
	assert.Equal(t, `DBG added watch path="/tmp/a b" wd=1`, rest)
}

func TestPrettyHandler_Colors(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatPretty, Writer: &buf})

	logger.Error("boom")

	assert.Contains(t, buf.String(), colorRed+"ERR"+colorReset)
	assert.Contains(t, buf.String(), colorBold+"boom"+colorReset)
}

func TestPrettyHandler_WithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Format: FormatPretty, Writer: &buf, NoColor: true})

	child := base.With("session", "abc").WithGroup("watch").With("wd", 4)
	child.Info("updated", "mask", "CREATE")
	base.Info("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "session=abc watch.wd=4 watch.mask=CREATE")
	assert.NotContains(t, lines[1], "session=", "parent handler is unchanged")
}

func TestPrettyHandler_GroupValue(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatPretty, Writer: &buf, NoColor: true})

	logger.Info("caps", slog.Group("kernel", slog.String("release", "6.8.0"), slog.Bool("mask_create", true)))

	assert.Contains(t, buf.String(), "kernel.release=6.8.0 kernel.mask_create=true")
}

func TestPrettyHandler_AddSource(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatPretty, Writer: &buf, NoColor: true, AddSource: true})

	logger.Info("here")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Writer: &buf})

	logger.WithError(errors.New("no space")).WithField("path", "/x").Info("register failed")

	out := buf.String()
	assert.Contains(t, out, `"error":"no space"`)
	assert.Contains(t, out, `"path":"/x"`)
}
