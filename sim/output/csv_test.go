package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siafu-sim/siafu/sim/flat"
	"github.com/siafu-sim/siafu/sim/world"
)

func testWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.Config{
		Name:  "csv",
		Start: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		Step:  time.Minute,
	})
	require.NoError(t, err)
	ann := world.NewAgent("ann", flat.Position{Lat: 1, Lon: 2}, 1)
	require.NoError(t, ann.SetInfo("Mood", flat.Text{Value: "calm"}))
	require.NoError(t, w.AddAgent(ann))
	require.NoError(t, w.AddAgent(world.NewAgent("bob", flat.Position{}, 1)))
	require.NoError(t, w.AddOverlay(&world.BinaryOverlay{Label: "Wifi", Field: func(p flat.Position) float64 { return p.Lat }, Threshold: 1}))
	return w
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVPrinter_HeaderAndFlatCells(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "agents.csv")
	p, err := NewCSVPrinter(CSVConfig{Path: path, Interval: time.Hour, KeepHistory: true})
	require.NoError(t, err)
	w := testWorld(t)

	require.NoError(t, p.IterationConcluded(w))
	require.NoError(t, p.Cleanup())

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"time", "entityID", "position", "atDestination", "Mood", "Wifi"}, records[0])
	assert.Equal(t, []string{"2026-01-01T08:00:00Z", "ann", "Position:1.0#2.0", "BooleanType:true", "Text:calm", "BooleanType:true"}, records[1])
	assert.Equal(t, []string{"2026-01-01T08:00:00Z", "bob", "Position:0.0#0.0", "BooleanType:true", "", "BooleanType:false"}, records[2])
}

func TestCSVPrinter_Interval_InSimulatedTime(t *testing.T) {
	// GIVEN a printer snapshotting every 5 simulated minutes
	path := filepath.Join(t.TempDir(), "agents.csv")
	p, err := NewCSVPrinter(CSVConfig{Path: path, Interval: 5 * time.Minute, KeepHistory: true})
	require.NoError(t, err)
	w := testWorld(t)

	// WHEN notified on each of 11 one-minute iterations
	for i := 0; i <= 10; i++ {
		require.NoError(t, p.IterationConcluded(w))
		w.Clock().Advance()
	}
	require.NoError(t, p.Cleanup())

	// THEN snapshots were taken at minutes 0, 5 and 10
	assert.Equal(t, int64(6), p.Rows())
	assert.Len(t, readCSV(t, path), 7)
}

func TestCSVPrinter_WithoutHistory_KeepsLatestOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.csv")
	p, err := NewCSVPrinter(CSVConfig{Path: path})
	require.NoError(t, err)
	w := testWorld(t)

	require.NoError(t, p.IterationConcluded(w))
	w.Clock().Advance()
	require.NoError(t, p.IterationConcluded(w))
	require.NoError(t, p.Cleanup())

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, "2026-01-01T08:01:00Z", records[1][0])
	assert.NoFileExists(t, path+".tmp")
}

func TestNewCSVPrinter_RequiresPath(t *testing.T) {
	_, err := NewCSVPrinter(CSVConfig{})
	assert.Error(t, err)
}
