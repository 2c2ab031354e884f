package testland

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/siafu-sim/siafu/sim/flat"
)

// ActivityTag is the flat tag of every Activity.
const ActivityTag = "Activity"

// Activity is what an agent on auto is doing. The variants are Resting,
// Working and Wandering.
type Activity interface {
	flat.Datum
	activity()
}

// Resting agents stay at home.
type Resting struct{}

// Working agents head for, or sit at, Place.
type Working struct {
	Place string
}

// Wandering agents visit Steps more random places before going home.
type Wandering struct {
	Steps int
}

func (Resting) activity()   {}
func (Working) activity()   {}
func (Wandering) activity() {}

func (Resting) Flatten() string     { return flat.Join(ActivityTag, "Resting") }
func (w Working) Flatten() string   { return flat.Join(ActivityTag, "Working", w.Place) }
func (w Wandering) Flatten() string { return flat.Join(ActivityTag, "Wandering", strconv.Itoa(w.Steps)) }

// ParseActivity reads any Activity variant.
func ParseActivity(s string) (Activity, error) {
	tag, err := flat.Tag(s)
	if err != nil {
		return nil, err
	}
	if tag != ActivityTag {
		return nil, fmt.Errorf("%w: want %s, got %s", flat.ErrFormat, ActivityTag, tag)
	}
	_, rest, _ := strings.Cut(s, flat.TagSeparator)
	f := flat.Split(rest)
	switch {
	case len(f) == 0:
	case f[0] == "Resting" && len(f) == 1:
		return Resting{}, nil
	case f[0] == "Working" && len(f) == 2:
		return Working{Place: f[1]}, nil
	case f[0] == "Wandering" && len(f) == 2:
		n, err := strconv.Atoi(f[1])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad wandering steps %q", flat.ErrFormat, f[1])
		}
		return Wandering{Steps: n}, nil
	}
	return nil, fmt.Errorf("%w: bad activity %q", flat.ErrFormat, rest)
}
