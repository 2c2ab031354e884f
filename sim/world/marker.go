package world

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MarkerStyle is how a highlighted agent or place is drawn.
type MarkerStyle string

const (
	Balloon MarkerStyle = "Balloon"
	Spot    MarkerStyle = "Spot"
	Stick   MarkerStyle = "Stick"
)

// DefaultMarkerColor is used when a mark names no color.
const DefaultMarkerColor = "#FFFF00"

var (
	ErrMarkerStyle = errors.New("world: unknown marker style")
	ErrMarkerColor = errors.New("world: unparseable marker color, use #RRGGBB")
)

// Marker highlights an agent or a place. The zero Marker means unmarked.
type Marker struct {
	Style MarkerStyle
	Color string
}

// NewMarker matches style case-insensitively and checks color is #RRGGBB.
// An empty color means DefaultMarkerColor.
func NewMarker(style, color string) (Marker, error) {
	var m Marker
	for _, s := range []MarkerStyle{Balloon, Spot, Stick} {
		if strings.EqualFold(style, string(s)) {
			m.Style = s
		}
	}
	if m.Style == "" {
		return Marker{}, fmt.Errorf("%w: %s", ErrMarkerStyle, style)
	}
	if color == "" {
		color = DefaultMarkerColor
	}
	if len(color) != 7 || color[0] != '#' {
		return Marker{}, fmt.Errorf("%w: %s", ErrMarkerColor, color)
	}
	if _, err := strconv.ParseUint(color[1:], 16, 32); err != nil {
		return Marker{}, fmt.Errorf("%w: %s", ErrMarkerColor, color)
	}
	m.Color = strings.ToUpper(color)
	return m, nil
}

func (m Marker) IsZero() bool { return m == Marker{} }
