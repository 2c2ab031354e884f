// sim/simulation.go
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/siafu-sim/siafu/sim/output"
	"github.com/siafu-sim/siafu/sim/world"
)

var (
	// ErrNotRunnable is returned by Run on a simulation that already ran.
	ErrNotRunnable = errors.New("sim: simulation already started")
	// ErrNotLive is returned when pausing a simulation that is not running.
	ErrNotLive = errors.New("sim: simulation not running")
)

// pausedIdle throttles the loop while paused and no frame was drawn.
const pausedIdle = 20 * time.Millisecond

// Config wires a Simulation. World is required; everything else is optional.
type Config struct {
	World     *world.World
	Models    Models
	Printer   Printer  // defaults to output.NullPrinter
	FrontEnd  FrontEnd // nil means headless: no draw handshake
	Handshake *Handshake
	Progress  Progress
	// Pacing is the minimum wall time per iteration. Zero runs flat out.
	Pacing time.Duration
	// MaxIterations ends the run after that many loop iterations. Zero is
	// unbounded.
	MaxIterations int64
}

// Simulation owns the tick loop. Entity mutation during a tick happens
// under the world's write lock, and the draw handshake runs after the lock
// is released, so a granted frame always sees a completed tick.
type Simulation struct {
	world         *world.World
	models        Models
	printer       Printer
	frontEnd      FrontEnd
	handshake     *Handshake
	progress      Progress
	pacing        time.Duration
	maxIterations int64

	mu         sync.Mutex
	state      State
	iterations int64
	stopped    chan struct{}
	stopOnce   sync.Once
}

func New(cfg Config) *Simulation {
	sim := &Simulation{
		world:         cfg.World,
		models:        cfg.Models,
		printer:       cfg.Printer,
		frontEnd:      cfg.FrontEnd,
		handshake:     cfg.Handshake,
		progress:      cfg.Progress,
		pacing:        cfg.Pacing,
		maxIterations: cfg.MaxIterations,
		stopped:       make(chan struct{}),
	}
	if sim.printer == nil {
		sim.printer = output.NullPrinter{}
	}
	if sim.handshake == nil {
		sim.handshake = NewHandshake()
	}
	if sim.progress == nil {
		sim.progress = NopProgress{}
	}
	return sim
}

func (sim *Simulation) World() *world.World      { return sim.world }
func (sim *Simulation) Handshake() *Handshake    { return sim.handshake }
func (sim *Simulation) Stopped() <-chan struct{} { return sim.stopped }

func (sim *Simulation) State() State {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.state
}

// Iterations counts completed loop iterations, paused ones included.
func (sim *Simulation) Iterations() int64 {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.iterations
}

func (sim *Simulation) IsPaused() bool { return sim.State() == Paused }

// SetPaused toggles between Running and Paused. Pausing stops the clock and
// the behavior hooks; manual agents keep moving and commands keep working.
func (sim *Simulation) SetPaused(paused bool) error {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	if !sim.state.Live() {
		return fmt.Errorf("%w: state is %s", ErrNotLive, sim.state)
	}
	if paused {
		sim.state = Paused
	} else {
		sim.state = Running
	}
	return nil
}

// Stop ends the simulation and releases anyone blocked in the handshake.
// It is safe to call from any goroutine, any number of times.
func (sim *Simulation) Stop() {
	sim.mu.Lock()
	sim.state = Ended
	sim.mu.Unlock()
	sim.handshake.Close()
	sim.stopOnce.Do(func() { close(sim.stopped) })
}

// Run executes the tick loop until Stop, ctx cancellation, MaxIterations or
// a hook failure. Cancellation is checked once per iteration. A hook error
// aborts the run and is returned.
func (sim *Simulation) Run(ctx context.Context) error {
	sim.mu.Lock()
	if sim.state != Created {
		sim.mu.Unlock()
		return ErrNotRunnable
	}
	sim.state = Running
	sim.mu.Unlock()

	name := sim.world.Name()
	sim.progress.SimulationStarted(name)
	logrus.Infof("[tick %07d] Simulation %s started at %s", 0, name, sim.world.Clock().Now().Format(time.RFC3339))

	var runErr error
	for sim.State().Live() && ctx.Err() == nil {
		start := time.Now()
		if err := sim.tick(); err != nil {
			runErr = err
			break
		}
		drew := sim.frontEnd != nil && sim.frontEnd.RequestPermissionToDraw()
		if !sim.handshake.Request(drew) {
			break
		}
		if err := sim.printer.IterationConcluded(sim.world); err != nil {
			logrus.Warnf("Output failed: %v", err)
		}

		sim.mu.Lock()
		sim.iterations++
		done := sim.maxIterations > 0 && sim.iterations >= sim.maxIterations
		sim.mu.Unlock()
		if done {
			break
		}
		sim.idle(ctx, time.Since(start), drew)
	}

	sim.Stop()
	if err := sim.printer.Cleanup(); err != nil {
		logrus.Warnf("Output cleanup failed: %v", err)
	}
	iterations := sim.Iterations()
	sim.progress.SimulationEnded(name, iterations)
	logrus.Infof("[tick %07d] Simulation %s ended", iterations, name)
	return runErr
}

// tick performs one iteration's mutations under the world write lock.
func (sim *Simulation) tick() error {
	w := sim.world
	w.Lock()
	defer w.Unlock()

	paused := sim.IsPaused()
	if !paused {
		w.Clock().Advance()
		if err := sim.runHooks(w); err != nil {
			return err
		}
	}
	if err := w.MoveAgents(paused); err != nil {
		return fmt.Errorf("moving agents: %w", err)
	}
	logrus.Debugf("[tick %07d] %s paused=%t", w.Clock().Iterations(), w.Clock().TimeOfDay(), paused)
	return nil
}

func (sim *Simulation) runHooks(w *world.World) error {
	if m := sim.models.World; m != nil {
		if err := m.DoIteration(w.Places()); err != nil {
			return fmt.Errorf("world model: %w", err)
		}
	}
	if m := sim.models.Agent; m != nil {
		if err := m.DoIteration(w.Agents()); err != nil {
			return fmt.Errorf("agent model: %w", err)
		}
	}
	if m := sim.models.Context; m != nil {
		if err := m.DoIteration(w.Overlays()); err != nil {
			return fmt.Errorf("context model: %w", err)
		}
	}
	return nil
}

// idle waits out the rest of the pacing interval. A paused iteration that
// drew no frame also waits briefly; a drawn frame is already paced by the
// front end.
func (sim *Simulation) idle(ctx context.Context, spent time.Duration, drew bool) {
	wait := sim.pacing - spent
	if wait <= 0 && sim.IsPaused() && !drew {
		wait = pausedIdle
	}
	if wait <= 0 {
		return
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-sim.stopped:
	}
}
