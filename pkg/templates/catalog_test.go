package templates

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
templates:
  - name: Weekend
    shifts:
      - rrule: "FREQ=WEEKLY;BYDAY=SA,SU"
        shift_type: opening
        start: "08:00"
        end: "13:00"
        min_staff: 1
        max_staff: 2
        requires_keys: true
      - days: [friday]
        shift_type: closing
        start: "18:00"
        end: "25:30"
        role: games_master
        min_staff: 1
        max_staff: 1
`

func TestParseAndExpand(t *testing.T) {
	catalog, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)
	assert.Equal(t, []string{"Weekend"}, catalog.Names())

	tpl, ok := catalog.Find("weekend")
	require.True(t, ok)

	monday := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	reqs, err := tpl.Expand(monday)
	require.NoError(t, err)
	require.Len(t, reqs, 3)

	assert.Equal(t, 4, reqs[0].DayOfWeek)
	assert.Equal(t, "closing", reqs[0].ShiftType)
	assert.Equal(t, "25:30", reqs[0].ScheduledEnd)
	assert.Equal(t, "games_master", reqs[0].RoleRequired)

	assert.Equal(t, 5, reqs[1].DayOfWeek)
	assert.Equal(t, 6, reqs[2].DayOfWeek)
	assert.True(t, reqs[2].RequiresKeys)
	assert.Equal(t, 2, reqs[2].MaxStaff)
}

func TestExpandIsStableAcrossWeeks(t *testing.T) {
	catalog, err := Parse([]byte(sampleCatalog))
	require.NoError(t, err)
	tpl, _ := catalog.Find("Weekend")

	first, err := tpl.Expand(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	later, err := tpl.Expand(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, first, later)
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"bad rrule": `
templates:
  - name: x
    shifts:
      - rrule: "NOT_A_RULE"
        shift_type: opening
        start: "08:00"
        end: "12:00"
        max_staff: 1
`,
		"end before start": `
templates:
  - name: x
    shifts:
      - days: [monday]
        shift_type: opening
        start: "12:00"
        end: "08:00"
        max_staff: 1
`,
		"no recurrence": `
templates:
  - name: x
    shifts:
      - shift_type: opening
        start: "08:00"
        end: "12:00"
        max_staff: 1
`,
		"min above max": `
templates:
  - name: x
    shifts:
      - days: [monday]
        shift_type: opening
        start: "08:00"
        end: "12:00"
        min_staff: 3
        max_staff: 1
`,
		"duplicate": `
templates:
  - name: x
    shifts:
      - days: [monday]
        shift_type: a
        start: "08:00"
        end: "12:00"
        max_staff: 1
  - name: X
    shifts:
      - days: [monday]
        shift_type: a
        start: "08:00"
        end: "12:00"
        max_staff: 1
`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadShippedCatalog(t *testing.T) {
	path := filepath.Join("..", "..", "config", "roster_templates.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("templates file not present")
	}
	catalog, err := Load(path)
	require.NoError(t, err)

	tpl, ok := catalog.Find("standard")
	require.True(t, ok)
	reqs, err := tpl.Expand(time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, reqs, 21)
}
