// Package platform assembles a runnable simulation from a Config: the
// scenario's world and models, the gradient cache, telemetry output, the
// console front end and the command listener. Run drives them together and
// tears them down together.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/siafu-sim/siafu/sim"
	"github.com/siafu-sim/siafu/sim/cache"
	"github.com/siafu-sim/siafu/sim/command"
	"github.com/siafu-sim/siafu/sim/frontend"
	"github.com/siafu-sim/siafu/sim/output"
	"github.com/siafu-sim/siafu/sim/scenario"
	"github.com/siafu-sim/siafu/sim/trace"
	"github.com/siafu-sim/siafu/sim/world"
)

// Platform is one assembled run. It is single use.
type Platform struct {
	cfg       Config
	scenario  *scenario.Scenario
	sim       *sim.Simulation
	gradients *cache.Map[*world.Gradient]
	console   *frontend.Console
	server    *command.Server
	trace     *trace.CommandTrace
}

// New builds everything Run needs. The command listener, if enabled, is
// bound here so port conflicts surface before the run starts. out receives
// console frames; nil means os.Stdout.
func New(cfg Config, out io.Writer) (*Platform, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stdout
	}
	sc := cfg.Simulation
	progress := &sim.LogProgress{LogObserver: cache.LogObserver{Name: sc.Scenario}}

	gradients, err := cache.Open[*world.Gradient](cfg.GradientCache.Path, sc.Scenario, cache.Options{
		Capacity: cfg.GradientCache.Size,
		Prefill:  cfg.GradientCache.Prefill,
		Observer: progress,
	})
	if err != nil {
		return nil, fmt.Errorf("gradient cache: %w", err)
	}

	params := scenario.Params{
		Agents:    sc.Agents,
		Seed:      sc.Seed,
		Start:     sc.Start,
		Step:      sc.IterationStep,
		Gradients: gradients,
	}
	if sc.Names != "" {
		f, err := os.Open(sc.Names)
		if err != nil {
			return nil, fmt.Errorf("agent names: %w", err)
		}
		defer f.Close()
		params.Names = f
	}
	progress.WorldCreation(sc.Scenario)
	built, err := scenario.Build(sc.Scenario, params)
	if err != nil {
		return nil, err
	}

	var printer sim.Printer = output.NullPrinter{}
	if cfg.Output.Type == OutputCSV {
		printer, err = output.NewCSVPrinter(output.CSVConfig{
			Path:        cfg.Output.CSV.Path,
			Interval:    cfg.Output.CSV.Interval,
			KeepHistory: cfg.Output.CSV.KeepHistory,
		})
		if err != nil {
			return nil, err
		}
	}

	p := &Platform{cfg: cfg, scenario: built, gradients: gradients}
	hs := sim.NewHandshake()
	var fe sim.FrontEnd
	if cfg.UI.Enable {
		p.console = frontend.NewConsole(built.World, hs, out, frontend.Options{FPS: cfg.UI.FPS})
		fe = p.console
	}
	p.sim = sim.New(sim.Config{
		World:         built.World,
		Models:        built.Models,
		Printer:       printer,
		FrontEnd:      fe,
		Handshake:     hs,
		Progress:      progress,
		Pacing:        sc.Pacing,
		MaxIterations: sc.MaxIterations,
	})

	if cfg.CommandListener.Enable {
		p.trace = trace.NewCommandTrace(trace.TraceConfig{
			Level: trace.TraceLevel(cfg.Trace.Level),
			Limit: cfg.Trace.Limit,
		})
		proc := command.NewProcessor(p.sim, built.Registry, p.trace)
		p.server = command.NewServer(net.JoinHostPort("", strconv.Itoa(cfg.CommandListener.Port)), proc)
		if err := p.server.Listen(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Platform) Simulation() *sim.Simulation            { return p.sim }
func (p *Platform) World() *world.World                    { return p.scenario.World }
func (p *Platform) Gradients() *cache.Map[*world.Gradient] { return p.gradients }
func (p *Platform) Trace() *trace.CommandTrace             { return p.trace }
func (p *Platform) Console() *frontend.Console             { return p.console }
func (p *Platform) Scenario() *scenario.Scenario           { return p.scenario }

// CommandAddr is the bound command listener address, or nil when the
// listener is disabled.
func (p *Platform) CommandAddr() net.Addr {
	if p.server == nil {
		return nil
	}
	return p.server.Addr()
}

// Run executes the simulation until it ends or ctx is cancelled. When the
// simulation ends the front end and the listener are shut down; when ctx is
// cancelled the simulation is stopped. Run returns the simulation's error,
// if any, after everything has exited.
func (p *Platform) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		err := p.sim.Run(gctx)
		if errors.Is(err, sim.ErrNotRunnable) && gctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		p.sim.Stop()
		return nil
	})
	if p.console != nil {
		g.Go(func() error { return p.console.Run(gctx) })
	}
	if p.server != nil {
		g.Go(func() error { return p.server.ListenAndServe(gctx) })
	}

	err := g.Wait()
	p.logSummary()
	return err
}

func (p *Platform) logSummary() {
	st := p.gradients.Stats()
	logrus.Infof("Gradient cache %s: %d entries, %d resident", st.Dir, st.Entries, st.Resident)
	if p.trace == nil {
		return
	}
	sum := trace.Summarize(p.trace)
	logrus.Infof("Commands: %d executed, %d succeeded, %d failed, %d dropped, from %d clients",
		sum.TotalCommands, sum.SucceededCount, sum.FailedCount, sum.DroppedCount, sum.UniqueRemotes)
	verbs := make([]string, 0, len(sum.VerbDistribution))
	for v := range sum.VerbDistribution {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)
	for _, v := range verbs {
		logrus.Debugf("  %-16s %d", v, sum.VerbDistribution[v])
	}
}
