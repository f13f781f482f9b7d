package logging

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewer_ParseLine(t *testing.T) {
	var buf strings.Builder
	v := NewViewer(ViewerConfig{}, &buf)

	t.Run("valid JSON", func(t *testing.T) {
		line := `{"time":"2026-01-15T10:30:00Z","level":"INFO","msg":"server_starting","transport":"stdio"}`
		entry := v.parseLine(line)

		require.True(t, entry.IsValid)
		assert.Equal(t, "INFO", entry.Level)
		assert.Equal(t, "server_starting", entry.Msg)
		assert.Equal(t, "stdio", entry.Attrs["transport"])
	})

	t.Run("invalid JSON keeps raw line", func(t *testing.T) {
		entry := v.parseLine("not valid json")

		assert.False(t, entry.IsValid)
		assert.Equal(t, "not valid json", entry.Raw)
	})
}

func TestViewer_LevelFilter(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		entryLevel  string
		shouldMatch bool
	}{
		{"info allows info", "info", "INFO", true},
		{"info allows error", "info", "ERROR", true},
		{"info blocks debug", "info", "DEBUG", false},
		{"warn blocks info", "warn", "INFO", false},
		{"error allows error", "error", "ERROR", true},
		{"empty filter allows all", "", "DEBUG", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf strings.Builder
			v := NewViewer(ViewerConfig{Level: tc.configLevel}, &buf)

			entry := LogEntry{IsValid: true, Level: tc.entryLevel}
			assert.Equal(t, tc.shouldMatch, v.matchesFilter(entry))
		})
	}
}

func TestViewer_PatternFilter(t *testing.T) {
	var buf strings.Builder
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile("search.*timeout")}, &buf)

	assert.True(t, v.matchesFilter(LogEntry{IsValid: true, Raw: "search request timeout"}))
	assert.False(t, v.matchesFilter(LogEntry{IsValid: true, Raw: "index build complete"}))
}

func TestViewer_FormatEntry(t *testing.T) {
	var buf strings.Builder
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)

	ts, err := time.Parse(time.RFC3339, "2026-01-15T10:30:00Z")
	require.NoError(t, err)

	entry := LogEntry{
		IsValid: true,
		Time:    ts,
		Level:   "INFO",
		Msg:     "query_complete",
		Attrs:   map[string]interface{}{"hits": float64(7)},
	}

	formatted := v.FormatEntry(entry)
	assert.Contains(t, formatted, "10:30:00")
	assert.Contains(t, formatted, "INFO")
	assert.Contains(t, formatted, "query_complete")
	assert.Contains(t, formatted, "hits=7")
}

func TestViewer_Tail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	lines := []string{
		`{"time":"2026-01-15T10:00:00Z","level":"DEBUG","msg":"first"}`,
		`{"time":"2026-01-15T10:00:01Z","level":"INFO","msg":"second"}`,
		`{"time":"2026-01-15T10:00:02Z","level":"ERROR","msg":"third"}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	t.Run("last n lines", func(t *testing.T) {
		var buf strings.Builder
		v := NewViewer(ViewerConfig{}, &buf)

		entries, err := v.Tail(path, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "second", entries[0].Msg)
		assert.Equal(t, "third", entries[1].Msg)
	})

	t.Run("level filter applies", func(t *testing.T) {
		var buf strings.Builder
		v := NewViewer(ViewerConfig{Level: "error"}, &buf)

		entries, err := v.Tail(path, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "third", entries[0].Msg)
	})

	t.Run("missing file errors", func(t *testing.T) {
		var buf strings.Builder
		v := NewViewer(ViewerConfig{}, &buf)

		_, err := v.Tail(filepath.Join(t.TempDir(), "absent.log"), 10)
		assert.Error(t, err)
	})
}
