package world

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siafu-sim/siafu/sim/cache"
	"github.com/siafu-sim/siafu/sim/flat"
)

var testStart = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	if cfg.Step == 0 {
		cfg.Step = time.Minute
	}
	if cfg.Start.IsZero() {
		cfg.Start = testStart
	}
	w, err := New(cfg)
	require.NoError(t, err)
	return w
}

func TestNew_NonPositiveStep_Rejected(t *testing.T) {
	_, err := New(Config{Name: "w", Step: 0})
	assert.Error(t, err)
}

func TestClock_Advance_FixedStep(t *testing.T) {
	c := NewClock(testStart, 15*time.Minute)
	c.Advance()
	c.Advance()
	assert.Equal(t, testStart.Add(30*time.Minute), c.Now())
	assert.Equal(t, int64(2), c.Iterations())
	assert.Equal(t, flat.NewEasyTime(8, 30), c.TimeOfDay())
}

func TestAddPlace_Unreachable_ReturnsError(t *testing.T) {
	w := newTestWorld(t, Config{
		Bounds:  Bounds{MinLat: 0, MinLon: 0, MaxLat: 1, MaxLon: 1},
		Blocked: func(p flat.Position) bool { return p.Lat > 0.5 && p.Lon > 0.5 },
	})

	_, err := w.AddPlace("outside", "Void", flat.Position{Lat: 2, Lon: 0})
	assert.ErrorIs(t, err, ErrUnreachable)
	_, err = w.AddPlace("wall", "Void", flat.Position{Lat: 0.9, Lon: 0.9})
	assert.ErrorIs(t, err, ErrUnreachable)

	pl, err := w.AddPlace("home", "House", flat.Position{Lat: 0.1, Lon: 0.1})
	require.NoError(t, err)
	assert.Equal(t, "Place:home#House#0.1#0.1", pl.Flatten())

	_, err = w.AddPlace("home", "House", flat.Position{Lat: 0.2, Lon: 0.2})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestAddPlace_UnencodableNameOrType_Rejected(t *testing.T) {
	w := newTestWorld(t, Config{})

	for _, tt := range []struct{ name, typ string }{{"", "House"}, {"home", ""}, {"a#b", "House"}} {
		_, err := w.AddPlace(tt.name, tt.typ, flat.Position{})
		assert.ErrorIs(t, err, flat.ErrFormat, "%q/%q", tt.name, tt.typ)
	}
	assert.Empty(t, w.Places())
}

func TestTemporaryPlace_UnregisteredAndNeverCached(t *testing.T) {
	// GIVEN a bounded world with a gradient cache
	gradients, err := cache.Open[*Gradient](t.TempDir(), "test", cache.Options{Capacity: 4})
	require.NoError(t, err)
	w := newTestWorld(t, Config{
		Bounds:    Bounds{MinLat: 0, MinLon: 0, MaxLat: 10, MaxLon: 10},
		StepSize:  1,
		Gradients: gradients,
	})
	a := NewAgent("ann", flat.Position{}, 1)
	require.NoError(t, w.AddAgent(a))

	// WHEN the agent is sent to a bare coordinate
	_, err = w.TemporaryPlace(flat.Position{Lat: 20, Lon: 0})
	assert.ErrorIs(t, err, ErrUnreachable)
	tmp, err := w.TemporaryPlace(flat.Position{Lat: 0, Lon: 3})
	require.NoError(t, err)
	a.SetDestination(tmp)
	require.NoError(t, w.MoveTowardsDestination(a))

	// THEN it moves without the place joining the world or the cache
	assert.True(t, tmp.Temporary())
	assert.Equal(t, TemporaryPlaceName, tmp.Name())
	assert.InDelta(t, 1.0, a.Position().Lon, 1e-9)
	assert.Empty(t, w.Places())
	assert.Zero(t, gradients.Size())
}

func TestPlaceContext_LookupOrder(t *testing.T) {
	w := newTestWorld(t, Config{})
	require.NoError(t, w.AddOverlay(&RealOverlay{Label: "Temperature", Field: func(p flat.Position) float64 { return p.Lat }, Offset: 20}))
	pl, err := w.AddPlace("office", "Work", flat.Position{Lat: 1, Lon: 2})
	require.NoError(t, err)
	pl.SetInfo("Occupancy", flat.IntegerNumber{Value: 3})

	tests := []struct {
		field string
		want  string
	}{
		{"Occupancy", "IntegerNumber:3"},
		{"Temperature", "FloatNumber:21.0"},
		{ContextName, "Text:office"},
		{ContextType, "Text:Work"},
		{ContextPosition, "Position:1.0#2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			d, err := w.PlaceContext(pl, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Flatten())
		})
	}
	_, err = w.PlaceContext(pl, ContextAtDestination)
	assert.ErrorIs(t, err, ErrUnknownContext)
}

func TestNewMarker_StyleAndColor(t *testing.T) {
	m, err := NewMarker("balloon", "")
	require.NoError(t, err)
	assert.Equal(t, Marker{Style: Balloon, Color: DefaultMarkerColor}, m)

	m, err = NewMarker("SPOT", "#aa0000")
	require.NoError(t, err)
	assert.Equal(t, Marker{Style: Spot, Color: "#AA0000"}, m)

	_, err = NewMarker("flag", "")
	assert.ErrorIs(t, err, ErrMarkerStyle)
	for _, c := range []string{"red", "#12345", "#GG0000"} {
		_, err = NewMarker("Stick", c)
		assert.ErrorIs(t, err, ErrMarkerColor, c)
	}
	assert.True(t, Marker{}.IsZero())
}

func TestMoveTowardsDestination_StepsAndArrives(t *testing.T) {
	// GIVEN an agent with speed 2 and a destination 5 steps away
	w := newTestWorld(t, Config{StepSize: 1})
	dest, err := w.AddPlace("office", "Work", flat.Position{Lat: 0, Lon: 5})
	require.NoError(t, err)
	a := NewAgent("ann", flat.Position{}, 2)
	require.NoError(t, w.AddAgent(a))
	a.SetDestination(dest)
	require.False(t, a.AtDestination())

	// WHEN moved once
	require.NoError(t, w.MoveTowardsDestination(a))

	// THEN it covered two steps
	assert.InDelta(t, 2.0, a.Position().Lon, 1e-9)
	assert.False(t, a.AtDestination())

	// AND arrives exactly on the destination after enough moves
	require.NoError(t, w.MoveTowardsDestination(a))
	require.NoError(t, w.MoveTowardsDestination(a))
	assert.Equal(t, dest.Position(), a.Position())
	assert.True(t, a.AtDestination())
}

func TestMoveAgents_Paused_OnlyManualAgentsMove(t *testing.T) {
	w := newTestWorld(t, Config{StepSize: 1})
	dest, err := w.AddPlace("p", "Any", flat.Position{Lat: 10, Lon: 0})
	require.NoError(t, err)
	auto := NewAgent("auto", flat.Position{}, 1)
	manual := NewAgent("manual", flat.Position{}, 1)
	require.NoError(t, w.AddAgent(auto))
	require.NoError(t, w.AddAgent(manual))
	manual.TakeControl()
	auto.SetDestination(dest)
	manual.SetDestination(dest)

	require.NoError(t, w.MoveAgents(true))

	assert.Equal(t, flat.Position{}, auto.Position())
	assert.InDelta(t, 1.0, manual.Position().Lat, 1e-9)
}

func TestGradient_CachedAcrossWorlds(t *testing.T) {
	// GIVEN a gradient cache shared by two worlds
	gradients, err := cache.Open[*Gradient](t.TempDir(), "test", cache.Options{Capacity: 4})
	require.NoError(t, err)
	producer := &countingProducer{}
	target := flat.Position{Lat: 1, Lon: 2}

	// WHEN both ask for the same target
	w1 := newTestWorld(t, Config{Producer: producer, Gradients: gradients})
	_, err = w1.Gradient(target)
	require.NoError(t, err)
	w2 := newTestWorld(t, Config{Producer: producer, Gradients: gradients})
	g, err := w2.Gradient(target)

	// THEN the producer ran once and the stored gradient is reused
	require.NoError(t, err)
	assert.Equal(t, 1, producer.calls)
	assert.Equal(t, target, g.Target)
	assert.True(t, gradients.ContainsKey("1.0_2.0"))
}

type countingProducer struct{ calls int }

func (p *countingProducer) Name() string { return "counting" }

func (p *countingProducer) Produce(target flat.Position) (*Gradient, error) {
	p.calls++
	return &Gradient{Target: target, Producer: p.Name()}, nil
}

func TestContext_LookupOrder(t *testing.T) {
	w := newTestWorld(t, Config{})
	require.NoError(t, w.AddOverlay(&RealOverlay{Label: "Temperature", Field: func(p flat.Position) float64 { return p.Lat }, Offset: 20}))
	a := NewAgent("bob", flat.Position{Lat: 1.5, Lon: 0}, 1)
	require.NoError(t, w.AddAgent(a))

	tests := []struct {
		field string
		want  string
	}{
		{"Temperature", "FloatNumber:21.5"},
		{ContextTime, "EasyTime:8#0"},
		{ContextName, "Text:bob"},
		{ContextPosition, "Position:1.5#0.0"},
		{ContextAtDestination, "BooleanType:true"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			d, err := w.Context(a, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Flatten())
		})
	}

	// an info field shadows an overlay of the same name
	require.NoError(t, a.SetInfo("Temperature", flat.Text{Value: "hot"}))
	d, err := w.Context(a, "Temperature")
	require.NoError(t, err)
	assert.Equal(t, "Text:hot", d.Flatten())

	_, err = w.Context(a, "Mood")
	assert.ErrorIs(t, err, ErrUnknownContext)
}

func TestNearQueries_SortedByDistance(t *testing.T) {
	w := newTestWorld(t, Config{})
	for i, name := range []string{"far", "near", "mid"} {
		d := []float64{3, 1, 2}[i]
		require.NoError(t, w.AddAgent(NewAgent(name, flat.Position{Lat: d}, 1)))
		_, err := w.AddPlace("p-"+name, "Any", flat.Position{Lon: d})
		require.NoError(t, err)
	}

	var agents []string
	for _, a := range w.AgentsNear(flat.Position{}, 2.5) {
		agents = append(agents, a.Name())
	}
	var places []string
	for _, p := range w.PlacesNear(flat.Position{}, 10) {
		places = append(places, p.Name())
	}

	assert.Equal(t, []string{"near", "mid"}, agents)
	assert.Equal(t, []string{"p-near", "p-mid", "p-far"}, places)
}

func TestOverlays_DiscreteAndBinary(t *testing.T) {
	field := func(p flat.Position) float64 { return p.Lat }
	d := &DiscreteOverlay{Label: "Noise", Field: field, Thresholds: []float64{1, 2}, Tags: []string{"quiet", "normal", "loud"}}
	b := &BinaryOverlay{Label: "Wifi", Field: field, Threshold: 1}

	assert.Equal(t, "Text:quiet", d.ValueAt(flat.Position{Lat: 0.5}).Flatten())
	assert.Equal(t, "Text:normal", d.ValueAt(flat.Position{Lat: 1}).Flatten())
	assert.Equal(t, "Text:loud", d.ValueAt(flat.Position{Lat: 5}).Flatten())
	assert.Equal(t, "BooleanType:false", b.ValueAt(flat.Position{Lat: 0.5}).Flatten())
	assert.Equal(t, "BooleanType:true", b.ValueAt(flat.Position{Lat: 1}).Flatten())

	w := newTestWorld(t, Config{})
	require.NoError(t, w.AddOverlay(d))
	assert.ErrorIs(t, w.AddOverlay(&RealOverlay{Label: "Noise", Field: field}), ErrDuplicate)
	assert.Equal(t, []string{"Noise"}, w.OverlayNames())
}

func TestNamer_ListThenGenerated(t *testing.T) {
	n, err := NewNamer(strings.NewReader("# staff\nAlice\n\n  Bob \n"))
	require.NoError(t, err)

	got := []string{n.Next(), n.Next(), n.Next(), n.Next()}

	assert.Equal(t, []string{"Alice", "Bob", "Person1", "Person2"}, got)
}

func TestNamer_IndependentPerWorld(t *testing.T) {
	w1 := newTestWorld(t, Config{})
	w2 := newTestWorld(t, Config{})
	assert.Equal(t, "Person1", w1.Namer().Next())
	assert.Equal(t, "Person1", w2.Namer().Next())
}
