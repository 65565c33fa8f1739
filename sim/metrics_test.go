package sim

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_LapStats(t *testing.T) {
	m := NewMetrics()
	m.RecordLap(0, "alpha", 62.0)
	m.RecordLap(0, "alpha", 60.0)
	m.RecordLap(0, "alpha", 64.0)
	m.RecordLap(1, "bravo", 70.0)

	stats := m.Stats()
	require.Len(t, stats, 2)

	alpha := stats[0]
	assert.Equal(t, "alpha", alpha.Name)
	assert.Equal(t, 3, alpha.Laps)
	assert.InDelta(t, 62.0, alpha.Mean, 1e-9)
	assert.Equal(t, 60.0, alpha.Best)
	assert.Greater(t, alpha.StdDev, 0.0)

	bravo := stats[1]
	assert.Equal(t, 1, bravo.Laps)
	assert.Equal(t, 0.0, bravo.StdDev, "single lap has no spread")
	assert.Equal(t, 70.0, bravo.Best)
}

func TestMetrics_Print(t *testing.T) {
	m := NewMetrics()
	m.RecordLap(0, "alpha", 61.5)
	m.Crashes = 1
	m.Overtakes = 4
	m.RaceTime = 120.0
	m.Ticks = 1200

	var buf bytes.Buffer
	m.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "1 crashes")
	assert.Contains(t, out, "4 overtakes")
}

func TestPrintStandings(t *testing.T) {
	standings := []Standing{
		{Position: 1, Name: "alpha", Laps: 10, BestLap: 61.2, Status: "running"},
		{Position: 2, Name: "bravo", Laps: 10, BestLap: 61.9, GapToLeader: 2.4, Status: "running"},
		{Position: 3, Name: "charlie", Laps: 6, Status: "crash"},
	}

	var buf bytes.Buffer
	PrintStandings(&buf, standings)
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4) // header plus three rows
	assert.Contains(t, lines[1], "alpha")
	assert.Contains(t, lines[2], "+")
	assert.Contains(t, lines[3], "crash")
}
