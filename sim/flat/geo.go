package flat

import (
	"fmt"
	"strings"
)

// Position is a latitude/longitude pair.
type Position struct {
	Lat float64
	Lon float64
}

func (p Position) Flatten() string {
	return Join("Position", p.fields()...)
}

func (p Position) fields() []string {
	return []string{FormatDecimal(p.Lat), FormatDecimal(p.Lon)}
}

func (p Position) String() string {
	return fmt.Sprintf("(%s, %s)", FormatDecimal(p.Lat), FormatDecimal(p.Lon))
}

func ParsePosition(s string) (Position, error) {
	f, err := fields(s, "Position", 2)
	if err != nil {
		return Position{}, err
	}
	return positionFromFields(f)
}

func positionFromFields(f []string) (Position, error) {
	lat, err := ParseDecimal(f[0])
	if err != nil {
		return Position{}, err
	}
	lon, err := ParseDecimal(f[1])
	if err != nil {
		return Position{}, err
	}
	return Position{Lat: lat, Lon: lon}, nil
}

// PlaceRecord is the exported view of a place: its identity and location.
// Name and Type must be non-empty and free of FieldSeparator to survive a
// round trip; NewPlaceRecord checks both.
type PlaceRecord struct {
	Name     string
	Type     string
	Position Position
}

func NewPlaceRecord(name, typ string, pos Position) (PlaceRecord, error) {
	for _, f := range []string{name, typ} {
		if f == "" || strings.Contains(f, FieldSeparator) {
			return PlaceRecord{}, fmt.Errorf("%w: place field %q not encodable", ErrFormat, f)
		}
	}
	return PlaceRecord{Name: name, Type: typ, Position: pos}, nil
}

func (r PlaceRecord) Flatten() string {
	return Join("Place", append([]string{r.Name, r.Type}, r.Position.fields()...)...)
}

func ParsePlaceRecord(s string) (PlaceRecord, error) {
	f, err := fields(s, "Place", 4)
	if err != nil {
		return PlaceRecord{}, err
	}
	pos, err := positionFromFields(f[2:])
	if err != nil {
		return PlaceRecord{}, err
	}
	return PlaceRecord{Name: f[0], Type: f[1], Position: pos}, nil
}
