package sim

import "github.com/siafu-sim/siafu/sim/world"

// WorldModel evolves places once per unpaused tick.
type WorldModel interface {
	DoIteration(places []*world.Place) error
}

// AgentModel drives agents on auto once per unpaused tick.
type AgentModel interface {
	DoIteration(agents []*world.Agent) error
}

// ContextModel evolves overlays once per unpaused tick.
type ContextModel interface {
	DoIteration(overlays []world.Overlay) error
}

// Models bundles the behavior hooks of a scenario. Nil hooks are skipped.
type Models struct {
	World   WorldModel
	Agent   AgentModel
	Context ContextModel
}

// FrontEnd is asked after every tick whether it wants to draw a frame.
type FrontEnd interface {
	RequestPermissionToDraw() bool
}

// Printer receives every concluded iteration, for telemetry export.
type Printer interface {
	IterationConcluded(w *world.World) error
	Cleanup() error
}
