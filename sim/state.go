package sim

import "fmt"

// State is the lifecycle of a Simulation:
//
//	Created → Running ⇄ Paused → Ended
//
// Ended is terminal; a new run needs a new Simulation.
type State int

const (
	Created State = iota
	Running
	Paused
	Ended
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Live reports whether the simulation accepts commands in state s.
func (s State) Live() bool { return s == Running || s == Paused }
