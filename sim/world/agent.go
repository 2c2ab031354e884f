package world

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/siafu-sim/siafu/sim/flat"
)

var (
	ErrUnknownAgent     = errors.New("world: unknown agent")
	ErrUnknownPlace     = errors.New("world: unknown place")
	ErrUnknownContext   = errors.New("world: unknown context")
	ErrInfoFieldsLocked = errors.New("world: info fields locked")
	ErrDuplicate        = errors.New("world: duplicate name")
)

// Names of the built-in context fields every agent answers.
const (
	ContextTime          = "Time"
	ContextName          = "Name"
	ContextPosition      = "Position"
	ContextAtDestination = "AtDestination"
	ContextDestination   = "Destination"
	// ContextType is answered by places only.
	ContextType = "Type"
)

// Name and type given to places made by TemporaryPlace.
const (
	TemporaryPlaceName = "Unknown"
	TemporaryPlaceType = "Temporary"
)

// Agent is a simulated person. An agent is either on auto, driven by the
// agent model, or under manual control from the command channel.
type Agent struct {
	name          string
	pos           flat.Position
	destination   *Place
	speed         int
	image         string
	previousImage string
	visible       bool
	onAuto        bool
	atDestination bool
	marker        Marker
	info          map[string]flat.Datum
	infoLocked    bool
}

// NewAgent returns a visible agent on auto, standing at pos with no
// destination.
func NewAgent(name string, pos flat.Position, speed int) *Agent {
	return &Agent{
		name:          name,
		pos:           pos,
		speed:         max(speed, 1),
		image:         "default",
		visible:       true,
		onAuto:        true,
		atDestination: true,
		info:          make(map[string]flat.Datum),
	}
}

func (a *Agent) Name() string            { return a.name }
func (a *Agent) Position() flat.Position { return a.pos }
func (a *Agent) Destination() *Place     { return a.destination }
func (a *Agent) Speed() int              { return a.speed }
func (a *Agent) Image() string           { return a.image }
func (a *Agent) Visible() bool           { return a.visible }
func (a *Agent) OnAuto() bool            { return a.onAuto }
func (a *Agent) AtDestination() bool     { return a.atDestination }
func (a *Agent) Marked() bool            { return !a.marker.IsZero() }
func (a *Agent) Marker() Marker          { return a.marker }

// SetPosition teleports the agent. It works in any simulation state.
func (a *Agent) SetPosition(p flat.Position) { a.pos = p }

func (a *Agent) SetSpeed(s int)    { a.speed = max(s, 1) }
func (a *Agent) SetVisible(v bool) { a.visible = v }
func (a *Agent) Mark(m Marker)     { a.marker = m }
func (a *Agent) Unmark()           { a.marker = Marker{} }

// SetDestination points the agent at p. Arriving is left to movement.
func (a *Agent) SetDestination(p *Place) {
	a.destination = p
	a.atDestination = p == nil || p.pos == a.pos
}

// SetImage changes the sprite, remembering the current one.
func (a *Agent) SetImage(img string) {
	a.previousImage, a.image = a.image, img
}

// RestorePreviousImage swaps back to the sprite used before the last
// SetImage. It is a no-op if there is none.
func (a *Agent) RestorePreviousImage() {
	if a.previousImage == "" {
		return
	}
	a.image, a.previousImage = a.previousImage, a.image
}

// TakeControl puts the agent under manual control, making it visible and
// stopping it where it stands.
func (a *Agent) TakeControl() {
	a.visible = true
	a.atDestination = true
	a.onAuto = false
}

// ReturnControl hands the agent back to the agent model.
func (a *Agent) ReturnControl() { a.onAuto = true }

// SetInfo sets an info field. Once the fields are locked only existing keys
// may change.
func (a *Agent) SetInfo(key string, v flat.Datum) error {
	if _, ok := a.info[key]; !ok && a.infoLocked {
		return fmt.Errorf("%w: %s has no field %q", ErrInfoFieldsLocked, a.name, key)
	}
	a.info[key] = v
	return nil
}

func (a *Agent) Info(key string) (flat.Datum, bool) {
	v, ok := a.info[key]
	return v, ok
}

// InfoKeys lists the info field names in sorted order.
func (a *Agent) InfoKeys() []string {
	return slices.Sorted(maps.Keys(a.info))
}

// LockInfoFields freezes the set of info field names.
func (a *Agent) LockInfoFields() { a.infoLocked = true }
