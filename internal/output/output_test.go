package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status(t *testing.T) {
	t.Run("icon and message", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf).Status("📚", "Indexing corpus.jsonl")
		assert.Equal(t, "📚 Indexing corpus.jsonl\n", buf.String())
	})

	t.Run("blank icon indents for alignment", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf).Status("", "Chunks: 812")
		assert.Equal(t, "   Chunks: 812\n", buf.String())
	})
}

func TestWriter_Statusf(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Statusf("📂", "Data directory: %s", "/tmp/data")
	assert.Equal(t, "📂 Data directory: /tmp/data\n", buf.String())
}

func TestWriter_Success(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Successf("Indexed %d chunks", 812)
	assert.Contains(t, buf.String(), "✅")
	assert.Contains(t, buf.String(), "Indexed 812 chunks")
}

func TestWriter_Warning(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Warningf("Skipped %d malformed corpus lines", 3)
	assert.Contains(t, buf.String(), "⚠️")
	assert.Contains(t, buf.String(), "Skipped 3 malformed corpus lines")
}

func TestWriter_Block(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).Block("linha um\nlinha dois")

	out := buf.String()
	assert.Contains(t, out, "  linha um\n")
	assert.Contains(t, out, "  linha dois\n")
	assert.True(t, strings.HasPrefix(out, "\n"), "block starts with a blank line")
	assert.True(t, strings.HasSuffix(out, "\n\n"), "block ends with a blank line")
}

func TestWriter_Progress(t *testing.T) {
	t.Run("shows percentage and counts", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf).Progress(50, 100, "embedding chunks")

		out := buf.String()
		assert.Contains(t, out, "50%")
		assert.Contains(t, out, "embedding chunks")
		assert.Contains(t, out, "(50/100)")
		assert.True(t, strings.HasPrefix(out, "\r"), "progress rewrites in place")
		assert.False(t, strings.HasSuffix(out, "\n"))
	})

	t.Run("completion adds newline", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf).Progress(100, 100, "embedding chunks")
		assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	})

	t.Run("zero total prints nothing", func(t *testing.T) {
		var buf bytes.Buffer
		New(&buf).Progress(5, 0, "embedding chunks")
		assert.Empty(t, buf.String())
	})
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		filled  int
	}{
		{"empty", 0, 100, 0},
		{"half", 50, 100, 15},
		{"full", 100, 100, 30},
		{"overshoot clamps", 150, 100, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.current, tt.total, 30)
			assert.Equal(t, tt.filled, strings.Count(bar, "█"))
			assert.Equal(t, 30-tt.filled, strings.Count(bar, "░"))
		})
	}
}
