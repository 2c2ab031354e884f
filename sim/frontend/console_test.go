package frontend

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siafu-sim/siafu/sim"
	"github.com/siafu-sim/siafu/sim/flat"
	"github.com/siafu-sim/siafu/sim/world"
)

func newWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.Config{
		Name:   "map",
		Start:  time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Step:   time.Minute,
		Bounds: world.Bounds{MaxLat: 10, MaxLon: 10},
	})
	require.NoError(t, err)
	return w
}

func TestRender_Glyphs(t *testing.T) {
	// GIVEN a bounded world with a place, a marked agent, a crowd and a
	// hidden agent
	w := newWorld(t)
	_, err := w.AddPlace("corner", "Work", flat.Position{Lat: 0, Lon: 0})
	require.NoError(t, err)
	marked := world.NewAgent("m", flat.Position{Lat: 10, Lon: 10}, 1)
	marked.Mark(world.Marker{Style: world.Balloon, Color: world.DefaultMarkerColor})
	hidden := world.NewAgent("h", flat.Position{Lat: 2, Lon: 8}, 1)
	hidden.SetVisible(false)
	for _, a := range []*world.Agent{
		marked,
		hidden,
		world.NewAgent("a", flat.Position{Lat: 5, Lon: 5}, 1),
		world.NewAgent("b", flat.Position{Lat: 5, Lon: 5}, 1),
	} {
		require.NoError(t, w.AddAgent(a))
	}
	c := NewConsole(w, sim.NewHandshake(), nil, Options{Width: 10, Height: 10})

	// WHEN rendered
	w.RLock()
	frame := c.render()
	w.RUnlock()

	// THEN each entity lands in its cell
	lines := strings.Split(strings.TrimSuffix(frame, "\n"), "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, "map 2026-03-01 09:30  iteration 0  agents 3/4  places 1", lines[0])
	grid := lines[1:]
	assert.Equal(t, byte('#'), grid[9][0], "place at the south-west corner")
	assert.Equal(t, byte('@'), grid[0][9], "marked agent at the north-east corner")
	assert.Equal(t, byte('*'), grid[4][5], "two agents share a cell")
	cells := strings.Join(grid, "")
	assert.Equal(t, 1, strings.Count(cells, "#"))
	assert.Zero(t, strings.Count(cells, "o"), "hidden agent not drawn")
}

func TestRender_UnboundedWorldUsesExtent(t *testing.T) {
	w, err := world.New(world.Config{Name: "open", Start: time.Now(), Step: time.Minute})
	require.NoError(t, err)
	require.NoError(t, w.AddAgent(world.NewAgent("a", flat.Position{Lat: -3, Lon: 100}, 1)))
	require.NoError(t, w.AddAgent(world.NewAgent("b", flat.Position{Lat: 7, Lon: 120}, 1)))
	c := NewConsole(w, sim.NewHandshake(), nil, Options{Width: 5, Height: 5})

	w.RLock()
	frame := c.render()
	w.RUnlock()

	grid := strings.Split(strings.TrimSuffix(frame, "\n"), "\n")[1:]
	assert.Equal(t, byte('o'), grid[4][0])
	assert.Equal(t, byte('o'), grid[0][4])
}

func TestConsole_DrawsOncePerTick(t *testing.T) {
	// GIVEN a console that wants every frame
	w := newWorld(t)
	require.NoError(t, w.AddAgent(world.NewAgent("a", flat.Position{Lat: 1, Lon: 1}, 1)))
	hs := sim.NewHandshake()
	var out bytes.Buffer
	c := NewConsole(w, hs, &out, Options{})
	s := sim.New(sim.Config{World: w, FrontEnd: c, Handshake: hs, MaxIterations: 5})

	consoleDone := make(chan error, 1)
	go func() { consoleDone <- c.Run(context.Background()) }()

	// WHEN the simulation runs five iterations
	require.NoError(t, s.Run(context.Background()))

	// THEN the console stops with the handshake, having drawn each tick once
	select {
	case err := <-consoleDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop")
	}
	assert.Equal(t, int64(5), c.Frames())
	assert.Equal(t, 5, strings.Count(out.String(), "map 2026-03-01"))
	assert.Contains(t, out.String(), "09:35  iteration 5")
}

func TestConsole_FPSLimitsRequests(t *testing.T) {
	w := newWorld(t)
	c := NewConsole(w, sim.NewHandshake(), &bytes.Buffer{}, Options{FPS: 1})
	assert.False(t, c.RequestPermissionToDraw(), "no slot before pacing starts")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	require.Eventually(t, c.RequestPermissionToDraw, time.Second, 5*time.Millisecond)
	assert.False(t, c.RequestPermissionToDraw(), "one slot per limiter tick")
}
