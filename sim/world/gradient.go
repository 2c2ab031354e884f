package world

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/siafu-sim/siafu/sim/flat"
)

// Reachability classifies a position before anything is built there.
type Reachability int

const (
	Reachable Reachability = iota
	OutOfBounds
	Blocked
)

func (r Reachability) String() string {
	switch r {
	case Reachable:
		return "reachable"
	case OutOfBounds:
		return "out of bounds"
	case Blocked:
		return "blocked"
	}
	return fmt.Sprintf("Reachability(%d)", int(r))
}

// ErrUnreachable is returned when a place or destination cannot be reached.
var ErrUnreachable = errors.New("world: destination unreachable")

// Gradient guides agents towards a target. It is expensive to produce in
// general, so the world keeps produced gradients in a persistent cache.
type Gradient struct {
	Target   flat.Position `cbor:"1,keyasint"`
	Producer string        `cbor:"2,keyasint"`
}

// Next returns the position reached after walking step units from 'from'
// towards the target, and whether the target was reached.
func (g *Gradient) Next(from flat.Position, step float64) (flat.Position, bool) {
	here, there := vec(from), vec(g.Target)
	d := r2.Sub(there, here)
	dist := r2.Norm(d)
	if dist <= step {
		return g.Target, true
	}
	return pos(r2.Add(here, r2.Scale(step/dist, d))), false
}

// GradientProducer computes a gradient towards target.
type GradientProducer interface {
	Name() string
	Produce(target flat.Position) (*Gradient, error)
}

// StraightLine produces gradients that walk the direct line to the target.
type StraightLine struct{}

func (StraightLine) Name() string { return "straight-line" }

func (StraightLine) Produce(target flat.Position) (*Gradient, error) {
	return &Gradient{Target: target, Producer: "straight-line"}, nil
}

// Bounds is the rectangle agents live in. The zero value is unbounded.
type Bounds struct {
	MinLat, MinLon float64
	MaxLat, MaxLon float64
}

func (b Bounds) IsZero() bool { return b == Bounds{} }

func (b Bounds) Contains(p flat.Position) bool {
	if b.IsZero() {
		return true
	}
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

func vec(p flat.Position) r2.Vec { return r2.Vec{X: p.Lon, Y: p.Lat} }
func pos(v r2.Vec) flat.Position { return flat.Position{Lat: v.Y, Lon: v.X} }

// Distance is the planar distance between two positions, in degrees.
func Distance(a, b flat.Position) float64 {
	return r2.Norm(r2.Sub(vec(a), vec(b)))
}

func gradientKey(p flat.Position) string {
	return flat.FormatDecimal(p.Lat) + "_" + flat.FormatDecimal(p.Lon)
}
