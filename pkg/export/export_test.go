package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerDataset() Dataset {
	return Dataset{
		Headers: []string{"event", "conflicting_event", "date"},
		Rows: []map[string]string{
			{"event": "Board sync", "conflicting_event": "Budget, review", "date": "2026-03-02"},
			{"event": "Retro", "date": "2026-03-03"},
		},
	}
}

func TestCSVRenderQuotesAndFillsMissingCells(t *testing.T) {
	out, err := NewCSVExporter().Render(ledgerDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "event,conflicting_event,date", lines[0])
	assert.Equal(t, `Board sync,"Budget, review",2026-03-02`, lines[1])
	assert.Equal(t, "Retro,,2026-03-03", lines[2])
}

func TestRenderRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "x", "")
	assert.Error(t, err)
}

func TestPDFRender(t *testing.T) {
	out, err := NewPDFExporter().Render(ledgerDataset(), "Conflict ledger", "generated for test")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 40))
	long := strings.Repeat("a", 200)
	got := truncate(long, 20)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Less(t, len(got), len(long))
}
