// Package testland is a small demo scenario: a square town of homes,
// offices and cafes whose inhabitants commute, wander and rest, plus a
// postman running errands between the two far corners.
//
// Importing the package registers it as "testland".
package testland

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/siafu-sim/siafu/sim"
	"github.com/siafu-sim/siafu/sim/flat"
	"github.com/siafu-sim/siafu/sim/scenario"
	"github.com/siafu-sim/siafu/sim/world"
)

const Name = "testland"

// Info fields every agent carries. The set is locked after creation.
const (
	FieldActivity = "Activity"
	FieldHome     = "Home"
	FieldLanguage = "Language"
)

// Overlay names.
const (
	OverlayTemperature = "Temperature"
	OverlayCoverage    = "Coverage"
	OverlayZone        = "Zone"
)

// Place types.
const (
	TypeHouse   = "House"
	TypeOffice  = "Office"
	TypeCafe    = "Cafe"
	TypeNowhere = "Nowhere"
)

const (
	topSpeed    = 10
	postmanPeak = 12
	stepSize    = 0.002
)

var (
	workHours = flat.TimePeriod{Start: flat.NewEasyTime(9, 0), End: flat.NewEasyTime(17, 0)}
	languages = []string{"Spanish", "Catalan", "French", "Italian", "Swahili"}
	center    = flat.Position{Lat: 0.5, Lon: 0.5}
)

func init() {
	scenario.Register(Name, New)
}

// New builds the town. With three or more agents the first three are
// Teresa and Pietro, both under manual control, and the Postman.
func New(p scenario.Params) (*scenario.Scenario, error) {
	if p.Agents < 0 {
		return nil, fmt.Errorf("agent count must not be negative, got %d", p.Agents)
	}
	w, err := world.New(world.Config{
		Name:      Name,
		Start:     p.Start,
		Step:      p.Step,
		Bounds:    world.Bounds{MaxLat: 1, MaxLon: 1},
		StepSize:  stepSize,
		Gradients: p.Gradients,
		Names:     p.Names,
	})
	if err != nil {
		return nil, err
	}
	rng := scenario.NewRNG(p.Seed)

	if err := addPlaces(w); err != nil {
		return nil, err
	}
	if err := addOverlays(w); err != nil {
		return nil, err
	}
	postman, err := addAgents(w, p.Agents, rng)
	if err != nil {
		return nil, err
	}

	reg := flat.NewBuiltinRegistry()
	reg.Register(ActivityTag, flat.As(ParseActivity))

	ends := w.PlacesOfType(TypeNowhere)
	return &scenario.Scenario{
		World: w,
		Models: sim.Models{
			World: &worldModel{w: w},
			Agent: &agentModel{
				w:       w,
				rng:     rng.For(scenario.SubsystemBehavior),
				postman: postman,
				ends:    [2]*world.Place{ends[0], ends[1]},
				offices: w.PlacesOfType(TypeOffice),
				haunts:  append(w.PlacesOfType(TypeCafe), w.PlacesOfType(TypeOffice)...),
			},
			Context: &contextModel{w: w, rng: rng.For(scenario.SubsystemContext)},
		},
		Registry: reg,
	}, nil
}

// addPlaces lays a 3x3 grid cycling house, office and cafe, plus the two
// Nowhere corners the postman runs between.
func addPlaces(w *world.World) error {
	types := []string{TypeHouse, TypeOffice, TypeCafe}
	coords := []float64{0.2, 0.5, 0.8}
	n := 0
	for _, lat := range coords {
		for _, lon := range coords {
			typ := types[n%len(types)]
			n++
			if _, err := w.AddPlace(fmt.Sprintf("%s-%d", typ, n), typ, flat.Position{Lat: lat, Lon: lon}); err != nil {
				return err
			}
		}
	}
	if _, err := w.AddPlace("Nowhere-1", TypeNowhere, flat.Position{Lat: 0.05, Lon: 0.05}); err != nil {
		return err
	}
	_, err := w.AddPlace("Nowhere-2", TypeNowhere, flat.Position{Lat: 0.95, Lon: 0.95})
	return err
}

func addOverlays(w *world.World) error {
	overlays := []world.Overlay{
		&world.RealOverlay{
			Label: OverlayTemperature,
			// warmer to the south
			Field: func(p flat.Position) float64 { return 18 - 4*p.Lat },
		},
		&world.BinaryOverlay{
			Label:     OverlayCoverage,
			Field:     func(p flat.Position) float64 { return 1 - world.Distance(p, center) },
			Threshold: 0.6,
		},
		&world.DiscreteOverlay{
			Label:      OverlayZone,
			Field:      func(p flat.Position) float64 { return p.Lon },
			Thresholds: []float64{1.0 / 3, 2.0 / 3},
			Tags:       []string{"West", "Center", "East"},
		},
	}
	for _, o := range overlays {
		if err := w.AddOverlay(o); err != nil {
			return err
		}
	}
	return nil
}

func addAgents(w *world.World, n int, rng *scenario.RNG) (*world.Agent, error) {
	pop := rng.For(scenario.SubsystemPopulation)
	houses := w.PlacesOfType(TypeHouse)
	ends := w.PlacesOfType(TypeNowhere)

	var postman *world.Agent
	for i := 0; i < n; i++ {
		home := houses[pop.Intn(len(houses))]
		name, pos, speed := "", home.Position(), 1+pop.Intn(topSpeed)
		lang := languages[pop.Intn(len(languages))]
		if n >= 3 && i < 3 {
			name, lang = [3]string{"Teresa", "Pietro", "Postman"}[i], [3]string{"German", "English", "Russian"}[i]
			pos = ends[min(i, 1)].Position()
			speed = [3]int{topSpeed, 2, 2}[i]
		} else {
			name = w.Namer().Next()
		}

		a := world.NewAgent(name, pos, speed)
		for k, v := range map[string]flat.Datum{
			FieldActivity: Resting{},
			FieldHome:     flat.Text{Value: home.Name()},
			FieldLanguage: flat.Text{Value: lang},
		} {
			if err := a.SetInfo(k, v); err != nil {
				return nil, err
			}
		}
		a.LockInfoFields()

		if n >= 3 {
			switch i {
			case 0:
				a.SetImage("HumanMagenta")
				a.TakeControl()
			case 1:
				a.SetImage("HumanBlue")
				a.TakeControl()
			case 2:
				a.SetImage("HumanGreen")
				postman = a
			}
		}
		if err := w.AddAgent(a); err != nil {
			return nil, err
		}
	}
	return postman, nil
}

// === Models ===

// worldModel counts, for every place, the agents standing at it.
type worldModel struct {
	w *world.World
}

func (m *worldModel) DoIteration(places []*world.Place) error {
	for _, pl := range places {
		n := len(m.w.AgentsNear(pl.Position(), stepSize))
		pl.SetInfo("Occupancy", flat.IntegerNumber{Value: n})
	}
	return nil
}

type agentModel struct {
	w       *world.World
	rng     *rand.Rand
	postman *world.Agent
	ends    [2]*world.Place
	offices []*world.Place
	haunts  []*world.Place
}

func (m *agentModel) DoIteration(agents []*world.Agent) error {
	now := m.w.Clock().TimeOfDay()
	if m.postman != nil && m.postman.OnAuto() {
		m.runErrands(now)
	}
	for _, a := range agents {
		if !a.OnAuto() || a == m.postman {
			continue
		}
		if err := m.live(a, now); err != nil {
			return err
		}
	}
	return nil
}

// runErrands bounces the postman between the Nowhere corners, fastest at
// noon.
func (m *agentModel) runErrands(now flat.EasyTime) {
	p := m.postman
	p.SetSpeed(postmanPeak - int(math.Abs(float64(postmanPeak-now.Hour))))
	if !p.AtDestination() {
		return
	}
	if p.Position() == m.ends[0].Position() {
		p.SetDestination(m.ends[1])
	} else {
		p.SetDestination(m.ends[0])
	}
}

func (m *agentModel) live(a *world.Agent, now flat.EasyTime) error {
	v, _ := a.Info(FieldActivity)
	act, ok := v.(Activity)
	if !ok {
		return fmt.Errorf("agent %s: activity is %v", a.Name(), v)
	}
	working := workHours.Contains(now)

	var next Activity
	switch act := act.(type) {
	case Resting:
		if !working {
			return nil
		}
		office := m.offices[m.rng.Intn(len(m.offices))]
		a.SetDestination(office)
		next = Working{Place: office.Name()}
	case Working:
		if working {
			return nil
		}
		next = Wandering{Steps: 1 + m.rng.Intn(4)}
	case Wandering:
		if !a.AtDestination() {
			return nil
		}
		if act.Steps == 0 {
			home, err := m.home(a)
			if err != nil {
				return err
			}
			a.SetDestination(home)
			next = Resting{}
		} else {
			a.SetDestination(m.haunts[m.rng.Intn(len(m.haunts))])
			next = Wandering{Steps: act.Steps - 1}
		}
	default:
		return fmt.Errorf("agent %s: unhandled activity %T", a.Name(), act)
	}
	return a.SetInfo(FieldActivity, next)
}

func (m *agentModel) home(a *world.Agent) (*world.Place, error) {
	v, _ := a.Info(FieldHome)
	t, ok := v.(flat.Text)
	if !ok {
		return nil, fmt.Errorf("agent %s: home is %v", a.Name(), v)
	}
	return m.w.Place(t.Value)
}

// contextModel moves the temperature through a daily cycle, peaking mid
// afternoon, with a little noise.
type contextModel struct {
	w   *world.World
	rng *rand.Rand
}

func (m *contextModel) DoIteration(overlays []world.Overlay) error {
	now := m.w.Clock().TimeOfDay()
	hours := float64(now.Minutes()) / 60
	for _, o := range overlays {
		if t, ok := o.(*world.RealOverlay); ok && t.Label == OverlayTemperature {
			t.Offset = 6*math.Sin((hours-9)/24*2*math.Pi) + 0.2*m.rng.NormFloat64()
		}
	}
	return nil
}
