// Package scenario is the registry of runnable simulations. A scenario
// package registers a Factory from its init function; the platform looks it
// up by name.
package scenario

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/siafu-sim/siafu/sim"
	"github.com/siafu-sim/siafu/sim/cache"
	"github.com/siafu-sim/siafu/sim/flat"
	"github.com/siafu-sim/siafu/sim/world"
)

var ErrUnknownScenario = errors.New("scenario: unknown scenario")

// Params are the run settings a Factory builds from.
type Params struct {
	Agents int
	Seed   int64
	Start  time.Time
	Step   time.Duration
	// Gradients is the gradient cache shared with the world. May be nil.
	Gradients *cache.Map[*world.Gradient]
	// Names optionally lists agent names, one per line.
	Names io.Reader
}

// Scenario is a world ready to run, with the behavior that drives it.
type Scenario struct {
	World  *world.World
	Models sim.Models
	// Registry parses the scenario's datum types, built-ins included.
	Registry *flat.Registry
}

type Factory func(Params) (*Scenario, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a scenario available by name. Registering a name twice
// panics.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("scenario: %q registered twice", name))
	}
	factories[name] = f
}

func Lookup(name string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownScenario, name, namesLocked())
	}
	return f, nil
}

// Names lists the registered scenarios in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Build looks up name and runs its factory.
func Build(name string, p Params) (*Scenario, error) {
	f, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	s, err := f(p)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", name, err)
	}
	if s.Registry == nil {
		s.Registry = flat.Default
	}
	return s, nil
}
