package flat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roundTrips = 50

// cycle flattens and rebuilds s repeatedly through the default registry and
// returns the final string.
func cycle(t *testing.T, s string) string {
	t.Helper()
	for i := 0; i < roundTrips; i++ {
		d, err := Rebuild(s)
		require.NoError(t, err, "cycle %d of %q", i, s)
		s = d.Flatten()
	}
	return s
}

func TestRoundTrip_SeedLiterals(t *testing.T) {
	for _, seed := range []string{
		"EasyTime:14#15",
		"BooleanType:true",
		"BooleanType:false",
		"Text:helloworld",
		"TimePeriod:10#30#20#50",
		"IntegerNumber:-17",
		"FloatNumber:2.5",
		"TextList:a#b#c",
		"Position:49.0079#8.4044",
		"Place:home#House#1.0#2.0",
	} {
		t.Run(seed, func(t *testing.T) {
			assert.Equal(t, seed, cycle(t, seed))
		})
	}
}

func TestRoundTrip_Values(t *testing.T) {
	list, err := NewTextList("alpha", "beta")
	require.NoError(t, err)
	values := []Datum{
		NewEasyTime(7, 5),
		BooleanType{Value: true},
		Text{Value: "with:colon#and hash"},
		TimePeriod{Start: NewEasyTime(22, 0), End: NewEasyTime(6, 30)},
		IntegerNumber{Value: 42},
		FloatNumber{Value: 1e-9},
		list,
		TextList{},
		Position{Lat: -33.8688, Lon: 151.2093},
		PlaceRecord{Name: "office", Type: "Work", Position: Position{Lat: 1e8, Lon: 0.25}},
	}
	for _, v := range values {
		t.Run(v.Flatten(), func(t *testing.T) {
			// GIVEN a value and its flat form
			first := v.Flatten()

			// WHEN rebuilt once and after many cycles
			d, err := Rebuild(first)
			require.NoError(t, err)

			// THEN the value is structurally equal and the string is stable
			if l, ok := v.(TextList); ok {
				assert.True(t, l.Equal(d.(TextList)))
			} else {
				assert.Equal(t, v, d)
			}
			assert.Equal(t, first, cycle(t, first))
		})
	}
}

func TestRoundTrip_StructuralEquality(t *testing.T) {
	a, err := ParseEasyTime("EasyTime:14#15")
	require.NoError(t, err)
	b, err := ParseEasyTime("EasyTime:14#15")
	require.NoError(t, err)
	assert.True(t, a == b)

	seen := map[Position]bool{{Lat: 1, Lon: 2}: true}
	p, err := ParsePosition("Position:1.0#2.0")
	require.NoError(t, err)
	assert.True(t, seen[p])
}

func TestRoundTrip_EasyTimeLiteralOutOfRange_Normalized(t *testing.T) {
	// GIVEN literals outside the clock face
	for _, v := range []EasyTime{{Hour: 25}, {Hour: 14, Minute: 75}, {Hour: -1}} {
		t.Run(v.String(), func(t *testing.T) {
			// WHEN flattened and parsed back
			s := v.Flatten()
			got, err := ParseEasyTime(s)
			require.NoError(t, err)

			// THEN the string is the normalized form and the values agree
			assert.Equal(t, got.Flatten(), s)
			assert.True(t, got.Equal(v))
			assert.Equal(t, s, cycle(t, s))
		})
	}
	assert.Equal(t, "EasyTime:1#0", EasyTime{Hour: 25}.Flatten())
	assert.Equal(t, "TimePeriod:23#0#1#0", TimePeriod{Start: EasyTime{Hour: -1}, End: EasyTime{Hour: 25}}.Flatten())
}

func TestNewPlaceRecord_RejectsUnencodableFields(t *testing.T) {
	tests := []struct {
		name, typ string
	}{
		{"", "House"},
		{"home", ""},
		{"ho#me", "House"},
		{"home", "Ho#use"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.typ, func(t *testing.T) {
			_, err := NewPlaceRecord(tt.name, tt.typ, Position{})
			assert.ErrorIs(t, err, ErrFormat)
		})
	}

	r, err := NewPlaceRecord("home", "House", Position{Lat: 1, Lon: 2})
	require.NoError(t, err)
	got, err := ParsePlaceRecord(r.Flatten())
	require.NoError(t, err)
	assert.Equal(t, r, got)
}
