// Package world holds the simulated entities (agents, places and overlays),
// the simulation clock and the movement machinery that walks agents along
// cached gradients.
//
// World embeds a sync.RWMutex shared by every goroutine touching entity
// state: the tick loop and mutating commands take the write lock, renderers
// and queries the read lock. World methods do not lock on their own; callers
// hold the appropriate lock around a batch of calls.
package world

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/siafu-sim/siafu/sim/cache"
	"github.com/siafu-sim/siafu/sim/flat"
)

// Config describes a world to build.
type Config struct {
	Name     string
	Start    time.Time
	Step     time.Duration
	Bounds   Bounds
	StepSize float64 // distance covered per unit of agent speed
	// Blocked, if set, marks positions agents cannot reach.
	Blocked   func(flat.Position) bool
	Producer  GradientProducer
	Gradients *cache.Map[*Gradient] // optional
	Names     io.Reader             // optional agent name list
}

type World struct {
	sync.RWMutex

	name      string
	clock     *Clock
	bounds    Bounds
	stepSize  float64
	blocked   func(flat.Position) bool
	producer  GradientProducer
	gradients *cache.Map[*Gradient]
	namer     *Namer

	agents   []*Agent
	agentIdx map[string]*Agent
	places   []*Place
	placeIdx map[string]*Place
	overlays []Overlay
}

func New(cfg Config) (*World, error) {
	namer, err := NewNamer(cfg.Names)
	if err != nil {
		return nil, err
	}
	if cfg.Step <= 0 {
		return nil, fmt.Errorf("world %s: iteration step must be positive, got %s", cfg.Name, cfg.Step)
	}
	w := &World{
		name:      cfg.Name,
		clock:     NewClock(cfg.Start, cfg.Step),
		bounds:    cfg.Bounds,
		stepSize:  cfg.StepSize,
		blocked:   cfg.Blocked,
		producer:  cfg.Producer,
		gradients: cfg.Gradients,
		namer:     namer,
		agentIdx:  make(map[string]*Agent),
		placeIdx:  make(map[string]*Place),
	}
	if w.producer == nil {
		w.producer = StraightLine{}
	}
	if w.stepSize <= 0 {
		w.stepSize = 1e-4
	}
	return w, nil
}

func (w *World) Name() string   { return w.name }
func (w *World) Clock() *Clock  { return w.clock }
func (w *World) Bounds() Bounds { return w.bounds }

// Namer is the world's agent name generator.
func (w *World) Namer() *Namer { return w.namer }

// Reachable classifies p.
func (w *World) Reachable(p flat.Position) Reachability {
	if !w.bounds.Contains(p) {
		return OutOfBounds
	}
	if w.blocked != nil && w.blocked(p) {
		return Blocked
	}
	return Reachable
}

// === Agents ===

func (w *World) AddAgent(a *Agent) error {
	if _, dup := w.agentIdx[a.name]; dup {
		return fmt.Errorf("%w: agent %s", ErrDuplicate, a.name)
	}
	w.agents = append(w.agents, a)
	w.agentIdx[a.name] = a
	return nil
}

// Agents returns the live agent collection in creation order. Hooks may
// mutate the agents but must not retain the slice.
func (w *World) Agents() []*Agent { return w.agents }

func (w *World) Agent(name string) (*Agent, error) {
	a, ok := w.agentIdx[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return a, nil
}

// AgentsNear returns the agents within radius of p, nearest first.
func (w *World) AgentsNear(p flat.Position, radius float64) []*Agent {
	var near []*Agent
	for _, a := range w.agents {
		if Distance(a.pos, p) <= radius {
			near = append(near, a)
		}
	}
	sort.SliceStable(near, func(i, j int) bool {
		return Distance(near[i].pos, p) < Distance(near[j].pos, p)
	})
	return near
}

// === Places ===

// AddPlace creates a place at p. Unreachable positions are rejected with
// ErrUnreachable; names and types that cannot be flattened with
// flat.ErrFormat.
func (w *World) AddPlace(name, typ string, p flat.Position) (*Place, error) {
	if _, err := flat.NewPlaceRecord(name, typ, p); err != nil {
		return nil, fmt.Errorf("place %q: %w", name, err)
	}
	if r := w.Reachable(p); r != Reachable {
		return nil, fmt.Errorf("%w: place %s at %s is %s", ErrUnreachable, name, p, r)
	}
	if _, dup := w.placeIdx[name]; dup {
		return nil, fmt.Errorf("%w: place %s", ErrDuplicate, name)
	}
	pl := &Place{name: name, typ: typ, pos: p}
	w.places = append(w.places, pl)
	w.placeIdx[name] = pl
	return pl, nil
}

func (w *World) Places() []*Place { return w.places }

// TemporaryPlace returns an unregistered destination at p, for sending an
// agent to a bare coordinate.
func (w *World) TemporaryPlace(p flat.Position) (*Place, error) {
	if r := w.Reachable(p); r != Reachable {
		return nil, fmt.Errorf("%w: %s is %s", ErrUnreachable, p, r)
	}
	return &Place{name: TemporaryPlaceName, typ: TemporaryPlaceType, pos: p, temporary: true}, nil
}

func (w *World) Place(name string) (*Place, error) {
	pl, ok := w.placeIdx[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlace, name)
	}
	return pl, nil
}

func (w *World) PlacesOfType(typ string) []*Place {
	var out []*Place
	for _, pl := range w.places {
		if pl.typ == typ {
			out = append(out, pl)
		}
	}
	return out
}

// PlacesNear returns the places within radius of p, nearest first.
func (w *World) PlacesNear(p flat.Position, radius float64) []*Place {
	var near []*Place
	for _, pl := range w.places {
		if Distance(pl.pos, p) <= radius {
			near = append(near, pl)
		}
	}
	sort.SliceStable(near, func(i, j int) bool {
		return Distance(near[i].pos, p) < Distance(near[j].pos, p)
	})
	return near
}

// === Overlays ===

func (w *World) AddOverlay(o Overlay) error {
	if slices.ContainsFunc(w.overlays, func(x Overlay) bool { return x.Name() == o.Name() }) {
		return fmt.Errorf("%w: overlay %s", ErrDuplicate, o.Name())
	}
	w.overlays = append(w.overlays, o)
	return nil
}

func (w *World) Overlays() []Overlay { return w.overlays }

// OverlayNames lists the overlays in creation order.
func (w *World) OverlayNames() []string {
	names := make([]string, len(w.overlays))
	for i, o := range w.overlays {
		names[i] = o.Name()
	}
	return names
}

// === Context ===

// Context answers a context query for a: info fields first, then overlays
// sampled at the agent's position, then the built-in fields.
func (w *World) Context(a *Agent, field string) (flat.Datum, error) {
	if v, ok := a.info[field]; ok {
		return v, nil
	}
	for _, o := range w.overlays {
		if o.Name() == field {
			return o.ValueAt(a.pos), nil
		}
	}
	switch field {
	case ContextTime:
		return w.clock.TimeOfDay(), nil
	case ContextName:
		return flat.Text{Value: a.name}, nil
	case ContextPosition:
		return a.pos, nil
	case ContextAtDestination:
		return flat.BooleanType{Value: a.atDestination}, nil
	case ContextDestination:
		if a.destination == nil {
			return flat.Text{Value: ""}, nil
		}
		return a.destination.Record(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownContext, field)
}

// PlaceContext answers a context query for a place: info fields, then
// overlays sampled at its position, then Time, Name, Type and Position.
func (w *World) PlaceContext(pl *Place, field string) (flat.Datum, error) {
	if v, ok := pl.info[field]; ok {
		return v, nil
	}
	for _, o := range w.overlays {
		if o.Name() == field {
			return o.ValueAt(pl.pos), nil
		}
	}
	switch field {
	case ContextTime:
		return w.clock.TimeOfDay(), nil
	case ContextName:
		return flat.Text{Value: pl.name}, nil
	case ContextType:
		return flat.Text{Value: pl.typ}, nil
	case ContextPosition:
		return pl.pos, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownContext, field)
}

// === Movement ===

// Gradient returns the gradient towards target, consulting the gradient
// cache before asking the producer.
func (w *World) Gradient(target flat.Position) (*Gradient, error) {
	if w.gradients == nil {
		return w.producer.Produce(target)
	}
	key := gradientKey(target)
	g, ok, err := w.gradients.Get(key)
	if err != nil {
		logrus.Warnf("[world %s] recomputing gradient %s: %v", w.name, key, err)
	}
	if ok {
		return g, nil
	}
	g, err = w.producer.Produce(target)
	if err != nil {
		return nil, err
	}
	if err := w.gradients.Put(key, g); err != nil {
		logrus.Warnf("[world %s] gradient %s not cached: %v", w.name, key, err)
	}
	return g, nil
}

// MoveAgents steps every agent towards its destination. While paused, only
// agents under manual control move.
func (w *World) MoveAgents(paused bool) error {
	for _, a := range w.agents {
		if paused && a.onAuto {
			continue
		}
		if err := w.MoveTowardsDestination(a); err != nil {
			return err
		}
	}
	return nil
}

// MoveTowardsDestination advances a by up to Speed steps, stopping on
// arrival.
func (w *World) MoveTowardsDestination(a *Agent) error {
	if a.atDestination || a.destination == nil {
		return nil
	}
	var g *Gradient
	var err error
	if a.destination.temporary {
		g, err = w.producer.Produce(a.destination.pos)
	} else {
		g, err = w.Gradient(a.destination.pos)
	}
	if err != nil {
		return fmt.Errorf("moving %s: %w", a.name, err)
	}
	for i := 0; i < a.speed; i++ {
		next, arrived := g.Next(a.pos, w.stepSize)
		if !arrived && w.Reachable(next) != Reachable {
			return nil
		}
		a.pos = next
		if arrived {
			a.atDestination = true
			return nil
		}
	}
	return nil
}
