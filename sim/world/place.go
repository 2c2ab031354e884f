package world

import (
	"maps"

	"github.com/siafu-sim/siafu/sim/flat"
)

// Place is a named, typed location agents can head for.
type Place struct {
	name      string
	typ       string
	pos       flat.Position
	info      map[string]flat.Datum
	marker    Marker
	temporary bool
}

func (p *Place) Name() string            { return p.name }
func (p *Place) Type() string            { return p.typ }
func (p *Place) Position() flat.Position { return p.pos }
func (p *Place) Marked() bool            { return !p.marker.IsZero() }
func (p *Place) Marker() Marker          { return p.marker }
func (p *Place) Mark(m Marker)           { p.marker = m }
func (p *Place) Unmark()                 { p.marker = Marker{} }

// Temporary reports whether the place is an ad hoc destination that
// belongs to no world and whose gradient is never cached.
func (p *Place) Temporary() bool { return p.temporary }

// Info returns a copy of the place's info fields.
func (p *Place) Info() map[string]flat.Datum { return maps.Clone(p.info) }

func (p *Place) SetInfo(key string, v flat.Datum) {
	if p.info == nil {
		p.info = make(map[string]flat.Datum)
	}
	p.info[key] = v
}

func (p *Place) InfoValue(key string) (flat.Datum, bool) {
	v, ok := p.info[key]
	return v, ok
}

func (p *Place) Record() flat.PlaceRecord {
	return flat.PlaceRecord{Name: p.name, Type: p.typ, Position: p.pos}
}

func (p *Place) Flatten() string { return p.Record().Flatten() }
