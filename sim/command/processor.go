// Package command serves the line-oriented command channel through which
// external processes read and steer a running simulation.
//
// Each request is one line: a verb followed by space-separated arguments.
// Every request gets exactly one reply line: "OK - Command succeeded" for a
// mutation, the requested data for a query, or "ERR - <reason>".
package command

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/siafu-sim/siafu/sim"
	"github.com/siafu-sim/siafu/sim/flat"
	"github.com/siafu-sim/siafu/sim/trace"
	"github.com/siafu-sim/siafu/sim/world"
)

const (
	// ErrorMarker starts every failure reply.
	ErrorMarker = "ERR - "
	// OK is the reply to a successful mutation.
	OK = "OK - Command succeeded"

	all = "all"
)

var (
	errUsage            = errors.New("bad arguments")
	errUnknownTrackable = errors.New("no agent or place named")
)

// Controller is the live simulation as seen by the command channel.
// *sim.Simulation implements it.
type Controller interface {
	World() *world.World
	State() sim.State
	SetPaused(bool) error
}

type handler struct {
	usage   string
	mutates bool
	run     func(p *Processor, w *world.World, args []string) (string, error)
}

var handlers = map[string]handler{
	"mark":             {"mark <agent|place|all> [Balloon|Spot|Stick] [#RRGGBB]", true, mark},
	"unmark":           {"unmark <agent|place|all>", true, unmark},
	"hide":             {"hide <agent|all>", true, showAgents(false)},
	"unhide":           {"unhide <agent|all>", true, showAgents(true)},
	"auto":             {"auto <agent|all> [true|false]", true, autoAgents},
	"move":             {"move <agent> <lat> <lon> | move <agent> <place>", true, moveAgent},
	"image":            {"image <agent> <sprite>", true, setImage},
	"setpreviousimage": {"setpreviousimage <agent>", true, previousImage},
	"setcontext":       {"setcontext <agent|place> <field> <flatdatum>", true, setContext},
	"getcontext":       {"getcontext <name>... / <field>... | getcontext <agent,...> <field,...>", false, getContext},
	"findnearagent":    {"findnearagent <agent> <radius>", false, findNearAgents},
	"findnearplace":    {"findnearplace <agent> <radius>", false, findNearPlaces},
	"time":             {"time", false, currentTime},
}

// Processor interprets command lines against a live simulation.
type Processor struct {
	ctl      Controller
	registry *flat.Registry
	trace    *trace.CommandTrace
}

// NewProcessor binds commands to ctl. The registry parses setcontext
// values; nil means flat.Default. tr may be nil.
func NewProcessor(ctl Controller, registry *flat.Registry, tr *trace.CommandTrace) *Processor {
	if registry == nil {
		registry = flat.Default
	}
	return &Processor{ctl: ctl, registry: registry, trace: tr}
}

// Execute runs one command line and returns the reply line, without the
// trailing newline.
func (p *Processor) Execute(line string) string {
	return p.ExecuteFrom("", line)
}

// ExecuteFrom is Execute with the caller's address recorded in the trace.
func (p *Processor) ExecuteFrom(remote, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ErrorMarker + "empty command"
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	reply, err := p.dispatch(verb, args)

	rec := trace.CommandRecord{Remote: remote, Verb: verb, Args: args, Succeeded: err == nil}
	if err != nil {
		rec.Reason = err.Error()
		reply = ErrorMarker + err.Error()
	}
	if w := p.ctl.World(); w != nil {
		w.RLock()
		rec.Iteration = w.Clock().Iterations()
		w.RUnlock()
	}
	p.trace.Record(rec)
	return reply
}

func (p *Processor) dispatch(verb string, args []string) (string, error) {
	if st := p.ctl.State(); !st.Live() {
		return "", errors.New("Siafu can't receive commands right now, the simulation is " + st.String())
	}
	switch verb {
	case "pause", "resume":
		if err := p.ctl.SetPaused(verb == "pause"); err != nil {
			return "", err
		}
		return OK, nil
	}
	h, ok := handlers[verb]
	if !ok {
		return "", fmt.Errorf("unknown command %q", verb)
	}
	w := p.ctl.World()
	if h.mutates {
		w.Lock()
		defer w.Unlock()
	} else {
		w.RLock()
		defer w.RUnlock()
	}
	reply, err := h.run(p, w, args)
	if errors.Is(err, errUsage) {
		return "", fmt.Errorf("usage: %s", h.usage)
	}
	return reply, err
}

// agents resolves "all" or a single agent name.
func agents(w *world.World, name string) ([]*world.Agent, error) {
	if strings.EqualFold(name, all) {
		return w.Agents(), nil
	}
	a, err := w.Agent(name)
	if err != nil {
		return nil, err
	}
	return []*world.Agent{a}, nil
}

// trackable resolves name to an agent or, failing that, a place.
func trackable(w *world.World, name string) (*world.Agent, *world.Place, error) {
	if a, err := w.Agent(name); err == nil {
		return a, nil, nil
	}
	if pl, err := w.Place(name); err == nil {
		return nil, pl, nil
	}
	return nil, nil, fmt.Errorf("%w %q", errUnknownTrackable, name)
}

// mark highlights an agent or a place. The style defaults to Balloon and
// the color to world.DefaultMarkerColor; "all" marks every agent.
func mark(_ *Processor, w *world.World, args []string) (string, error) {
	if len(args) < 1 || len(args) > 3 {
		return "", errUsage
	}
	style, color := string(world.Balloon), ""
	if len(args) > 1 {
		style = args[1]
	}
	if len(args) > 2 {
		color = args[2]
	}
	m, err := world.NewMarker(style, color)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(args[0], all) {
		for _, a := range w.Agents() {
			a.Mark(m)
		}
		return OK, nil
	}
	a, pl, err := trackable(w, args[0])
	if err != nil {
		return "", err
	}
	if a != nil {
		a.Mark(m)
	} else {
		pl.Mark(m)
	}
	return OK, nil
}

func unmark(_ *Processor, w *world.World, args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage
	}
	if strings.EqualFold(args[0], all) {
		for _, a := range w.Agents() {
			a.Unmark()
		}
		for _, pl := range w.Places() {
			pl.Unmark()
		}
		return OK, nil
	}
	a, pl, err := trackable(w, args[0])
	if err != nil {
		return "", err
	}
	if a != nil {
		a.Unmark()
	} else {
		pl.Unmark()
	}
	return OK, nil
}

func showAgents(visible bool) func(*Processor, *world.World, []string) (string, error) {
	return eachAgent(func(a *world.Agent) { a.SetVisible(visible) })
}

// autoAgents hands agents back to the agent model, or with "false" takes
// them under manual control. The setting defaults to true.
func autoAgents(_ *Processor, w *world.World, args []string) (string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", errUsage
	}
	auto := true
	if len(args) == 2 {
		switch strings.ToLower(args[1]) {
		case "true":
		case "false":
			auto = false
		default:
			return "", errUsage
		}
	}
	targets, err := agents(w, args[0])
	if err != nil {
		return "", err
	}
	for _, a := range targets {
		if auto {
			a.ReturnControl()
		} else {
			a.TakeControl()
		}
	}
	return OK, nil
}

func eachAgent(apply func(*world.Agent)) func(*Processor, *world.World, []string) (string, error) {
	return func(_ *Processor, w *world.World, args []string) (string, error) {
		if len(args) != 1 {
			return "", errUsage
		}
		targets, err := agents(w, args[0])
		if err != nil {
			return "", err
		}
		for _, a := range targets {
			apply(a)
		}
		return OK, nil
	}
}

// moveAgent sends an agent to a coordinate, through a temporary place, or
// to a named place.
func moveAgent(_ *Processor, w *world.World, args []string) (string, error) {
	if len(args) != 2 && len(args) != 3 {
		return "", errUsage
	}
	a, err := w.Agent(args[0])
	if err != nil {
		return "", err
	}
	var pl *world.Place
	if len(args) == 3 {
		lat, err1 := strconv.ParseFloat(args[1], 64)
		lon, err2 := strconv.ParseFloat(args[2], 64)
		if err1 != nil || err2 != nil {
			return "", errUsage
		}
		pl, err = w.TemporaryPlace(flat.Position{Lat: lat, Lon: lon})
	} else {
		pl, err = w.Place(args[1])
	}
	if err != nil {
		return "", err
	}
	a.TakeControl()
	a.SetDestination(pl)
	return OK, nil
}

func setImage(_ *Processor, w *world.World, args []string) (string, error) {
	if len(args) != 2 {
		return "", errUsage
	}
	a, err := w.Agent(args[0])
	if err != nil {
		return "", err
	}
	a.SetImage(args[1])
	return OK, nil
}

func previousImage(_ *Processor, w *world.World, args []string) (string, error) {
	if len(args) != 1 {
		return "", errUsage
	}
	a, err := w.Agent(args[0])
	if err != nil {
		return "", err
	}
	a.RestorePreviousImage()
	return OK, nil
}

// setContext sets an info field of an agent or a place.
func setContext(p *Processor, w *world.World, args []string) (string, error) {
	if len(args) < 3 {
		return "", errUsage
	}
	a, pl, err := trackable(w, args[0])
	if err != nil {
		return "", err
	}
	v, err := p.registry.Rebuild(strings.Join(args[2:], " "))
	if err != nil {
		return "", err
	}
	if pl != nil {
		pl.SetInfo(args[1], v)
		return OK, nil
	}
	if err := a.SetInfo(args[1], v); err != nil {
		return "", err
	}
	return OK, nil
}

// getContext answers one value per (name, field) pair, name major,
// separated by spaces. The slash form "n1 n2 / f1 f2" replies name/value
// pairs; the comma form "n1,n2 f1,f2" replies bare values.
func getContext(_ *Processor, w *world.World, args []string) (string, error) {
	var names, fields []string
	labelled := false
	if i := slices.Index(args, "/"); i >= 0 {
		names, fields, labelled = args[:i], args[i+1:], true
	} else if len(args) == 2 {
		names, fields = strings.Split(args[0], ","), strings.Split(args[1], ",")
	}
	if len(names) == 0 || len(fields) == 0 {
		return "", errUsage
	}
	var out []string
	for _, name := range names {
		a, pl, err := trackable(w, name)
		if err != nil {
			return "", err
		}
		for _, field := range fields {
			var v flat.Datum
			if a != nil {
				v, err = w.Context(a, field)
			} else {
				v, err = w.PlaceContext(pl, field)
			}
			if err != nil {
				return "", err
			}
			if labelled {
				out = append(out, name+"/"+v.Flatten())
			} else {
				out = append(out, v.Flatten())
			}
		}
	}
	return strings.Join(out, " "), nil
}

func nearArgs(w *world.World, args []string) (*world.Agent, float64, error) {
	if len(args) != 2 {
		return nil, 0, errUsage
	}
	a, err := w.Agent(args[0])
	if err != nil {
		return nil, 0, err
	}
	radius, err := strconv.ParseFloat(args[1], 64)
	if err != nil || radius < 0 {
		return nil, 0, errUsage
	}
	return a, radius, nil
}

func findNearAgents(_ *Processor, w *world.World, args []string) (string, error) {
	a, radius, err := nearArgs(w, args)
	if err != nil {
		return "", err
	}
	var names []string
	for _, b := range w.AgentsNear(a.Position(), radius) {
		if b != a {
			names = append(names, b.Name())
		}
	}
	return strings.Join(names, " "), nil
}

func findNearPlaces(_ *Processor, w *world.World, args []string) (string, error) {
	a, radius, err := nearArgs(w, args)
	if err != nil {
		return "", err
	}
	var names []string
	for _, pl := range w.PlacesNear(a.Position(), radius) {
		names = append(names, pl.Name())
	}
	return strings.Join(names, " "), nil
}

func currentTime(_ *Processor, w *world.World, args []string) (string, error) {
	if len(args) != 0 {
		return "", errUsage
	}
	return w.Clock().TimeOfDay().Flatten(), nil
}
