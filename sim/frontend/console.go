// Package frontend renders the world as text. It only reads the world
// inside frames granted by the simulation's draw handshake.
package frontend

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/siafu-sim/siafu/sim"
	"github.com/siafu-sim/siafu/sim/world"
)

// Glyphs used on the map.
const (
	glyphEmpty  = '.'
	glyphPlace  = '#'
	glyphAgent  = 'o'
	glyphMarked = '@'
	glyphCrowd  = '*'
)

type Options struct {
	// FPS caps frames per second. Zero asks for a frame after every tick.
	FPS    int
	Width  int // default 60
	Height int // default 20
}

// Console draws a character map of agents and places to an io.Writer.
type Console struct {
	w         *world.World
	handshake *sim.Handshake
	out       io.Writer
	fps       int
	width     int
	height    int

	want   atomic.Bool
	frames atomic.Int64
}

func NewConsole(w *world.World, hs *sim.Handshake, out io.Writer, opts Options) *Console {
	if opts.Width <= 0 {
		opts.Width = 60
	}
	if opts.Height <= 0 {
		opts.Height = 20
	}
	return &Console{
		w:         w,
		handshake: hs,
		out:       out,
		fps:       max(opts.FPS, 0),
		width:     opts.Width,
		height:    opts.Height,
	}
}

// RequestPermissionToDraw is polled by the tick loop. Without an FPS cap
// the console wants every frame; with one, at most one frame per limiter
// slot.
func (c *Console) RequestPermissionToDraw() bool {
	if c.fps == 0 {
		return true
	}
	return c.want.Swap(false)
}

// Frames counts the frames drawn so far.
func (c *Console) Frames() int64 { return c.frames.Load() }

// Run draws granted frames until ctx is done or the handshake closes.
func (c *Console) Run(ctx context.Context) error {
	if c.fps > 0 {
		go c.pace(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.handshake.Closed():
			return nil
		case <-c.handshake.Frames():
			err := c.draw()
			c.handshake.Concluded()
			if err != nil {
				return fmt.Errorf("frontend: %w", err)
			}
		}
	}
}

func (c *Console) pace(ctx context.Context) {
	rl := ratelimit.New(c.fps)
	for {
		rl.Take()
		select {
		case <-ctx.Done():
			return
		case <-c.handshake.Closed():
			return
		default:
			c.want.Store(true)
		}
	}
}

func (c *Console) draw() error {
	c.w.RLock()
	frame := c.render()
	c.w.RUnlock()
	n := c.frames.Add(1)
	logrus.Debugf("[frame %07d] drawn", n)
	_, err := io.WriteString(c.out, frame)
	return err
}

// render formats the current world. Callers hold the world read lock.
func (c *Console) render() string {
	agents, places := c.w.Agents(), c.w.Places()
	b := c.w.Bounds()
	if b.IsZero() {
		b = extent(agents, places)
	}

	grid := make([][]rune, c.height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(string(glyphEmpty), c.width))
	}
	cell := func(lat, lon float64) (int, int, bool) {
		if lat < b.MinLat || lat > b.MaxLat || lon < b.MinLon || lon > b.MaxLon {
			return 0, 0, false
		}
		col := scale(lon, b.MinLon, b.MaxLon, c.width)
		row := c.height - 1 - scale(lat, b.MinLat, b.MaxLat, c.height)
		return row, col, true
	}
	for _, pl := range places {
		if r, col, ok := cell(pl.Position().Lat, pl.Position().Lon); ok {
			grid[r][col] = glyphPlace
		}
	}
	visible := 0
	for _, a := range agents {
		if !a.Visible() {
			continue
		}
		visible++
		r, col, ok := cell(a.Position().Lat, a.Position().Lon)
		if !ok {
			continue
		}
		switch {
		case a.Marked():
			grid[r][col] = glyphMarked
		case grid[r][col] == glyphAgent || grid[r][col] == glyphMarked:
			grid[r][col] = glyphCrowd
		case grid[r][col] != glyphCrowd:
			grid[r][col] = glyphAgent
		}
	}

	var sb strings.Builder
	clk := c.w.Clock()
	fmt.Fprintf(&sb, "%s %s  iteration %d  agents %d/%d  places %d\n",
		c.w.Name(), clk.Now().Format("2006-01-02 15:04"), clk.Iterations(), visible, len(agents), len(places))
	for _, row := range grid {
		sb.WriteString(string(row))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// scale maps v in [lo, hi] onto [0, n).
func scale(v, lo, hi float64, n int) int {
	if hi <= lo {
		return 0
	}
	i := int(math.Floor((v - lo) / (hi - lo) * float64(n)))
	return min(max(i, 0), n-1)
}

// extent is the bounding box of everything on the map, used when the world
// itself is unbounded.
func extent(agents []*world.Agent, places []*world.Place) world.Bounds {
	b := world.Bounds{MinLat: math.Inf(1), MinLon: math.Inf(1), MaxLat: math.Inf(-1), MaxLon: math.Inf(-1)}
	grow := func(lat, lon float64) {
		b.MinLat, b.MaxLat = math.Min(b.MinLat, lat), math.Max(b.MaxLat, lat)
		b.MinLon, b.MaxLon = math.Min(b.MinLon, lon), math.Max(b.MaxLon, lon)
	}
	for _, a := range agents {
		grow(a.Position().Lat, a.Position().Lon)
	}
	for _, pl := range places {
		grow(pl.Position().Lat, pl.Position().Lon)
	}
	if math.IsInf(b.MinLat, 1) {
		return world.Bounds{MaxLat: 1, MaxLon: 1}
	}
	return b
}
