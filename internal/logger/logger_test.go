package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesCategoryAndMessage(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.LogTicket("VOID", "t-1", "voided by organiser")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "[TICKET")
	assert.Contains(t, out, "[VOID] t-1 - voided by organiser")

	buf.Reset()
	l.Info("api", "direct call")
	assert.Contains(t, buf.String(), "logger_test.go")
}

func TestLoggerJSONOutputAndLevelFilter(t *testing.T) {
	color.NoColor = true
	var term, js bytes.Buffer
	l := NewWithWriter(&term)
	l.jsonOut = &js
	l.minLevel = WARN

	l.Info("EXPORT", "skipped")
	l.Warn("export", "slow archive")

	assert.NotContains(t, term.String(), "skipped")
	lines := strings.Split(strings.TrimSpace(js.String()), "\n")
	require.Len(t, lines, 1)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "EXPORT", entry.Category)
	assert.Equal(t, "slow archive", entry.Message)
}

func TestFatalCallsExit(t *testing.T) {
	l := Nop()
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("CONFIG", "missing dsn")
	assert.Equal(t, 1, code)
}
