package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRender(t *testing.T) {
	withoutColor(t)

	table := NewTable("dma", "state", "retention_rate_pct").AlignRight(2)
	table.Append("Boston", "MA", "66.67")
	table.Append("Albany", "NY", "100.00")
	require.Equal(t, 2, table.Len())

	var buf bytes.Buffer
	table.Render(&buf)

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "retention_rate_pct")
	assert.Contains(t, lines[2], "Boston")
	assert.True(t, strings.HasSuffix(strings.TrimRight(lines[2], " "), "66.67"))
}

func TestStatusTextWithoutColor(t *testing.T) {
	withoutColor(t)
	assert.Equal(t, "failed", StatusText("failed"))
}
