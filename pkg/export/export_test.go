package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title:   "Roster",
		Headers: []string{"Day", "Shift", "Staff"},
		Rows: [][]string{
			{"monday", "opening", "Alice"},
			{"monday", "closing"},
		},
	}
}

func TestCSVExporterPadsShortRows(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "Day,Shift,Staff\nmonday,opening,Alice\nmonday,closing,\n", string(out))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Table{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Table{})
	assert.Error(t, err)
}

func TestPDFExporterRenders(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleTable())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRendererMetadata(t *testing.T) {
	var r Renderer = NewPDFExporter()
	assert.Equal(t, "pdf", r.Format())
	r = NewCSVExporter()
	assert.Equal(t, "text/csv", r.ContentType())
}
