package flat

import (
	"fmt"
	"strconv"
	"time"
)

const minutesPerDay = 24 * 60

// EasyTime is a time of day with minute resolution. Constructors normalize
// to 0..23 hours and 0..59 minutes; a literal outside that range flattens
// in normalized form and compares Equal to its normalized value.
type EasyTime struct {
	Hour   int
	Minute int
}

// NewEasyTime normalizes h:m onto a 24h clock face, wrapping negatives.
func NewEasyTime(h, m int) EasyTime {
	total := ((h*60+m)%minutesPerDay + minutesPerDay) % minutesPerDay
	return EasyTime{Hour: total / 60, Minute: total % 60}
}

// EasyTimeOf returns the time of day of t.
func EasyTimeOf(t time.Time) EasyTime {
	return EasyTime{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes returns the minutes since midnight.
func (e EasyTime) Minutes() int { return e.Hour*60 + e.Minute }

// Add returns e shifted by d, wrapping around midnight.
func (e EasyTime) Add(d time.Duration) EasyTime {
	return NewEasyTime(0, e.Minutes()+int(d/time.Minute))
}

func (e EasyTime) Before(o EasyTime) bool { return e.Minutes() < o.Minutes() }

func (e EasyTime) Equal(o EasyTime) bool {
	return NewEasyTime(e.Hour, e.Minute) == NewEasyTime(o.Hour, o.Minute)
}

func (e EasyTime) String() string { return fmt.Sprintf("%02d:%02d", e.Hour, e.Minute) }

func (e EasyTime) Flatten() string {
	return Join("EasyTime", e.fields()...)
}

func (e EasyTime) fields() []string {
	n := NewEasyTime(e.Hour, e.Minute)
	return []string{strconv.Itoa(n.Hour), strconv.Itoa(n.Minute)}
}

func ParseEasyTime(s string) (EasyTime, error) {
	f, err := fields(s, "EasyTime", 2)
	if err != nil {
		return EasyTime{}, err
	}
	return easyTimeFromFields(f)
}

func easyTimeFromFields(f []string) (EasyTime, error) {
	h, err := strconv.Atoi(f[0])
	if err != nil {
		return EasyTime{}, fmt.Errorf("%w: bad hour %q", ErrFormat, f[0])
	}
	m, err := strconv.Atoi(f[1])
	if err != nil {
		return EasyTime{}, fmt.Errorf("%w: bad minute %q", ErrFormat, f[1])
	}
	return NewEasyTime(h, m), nil
}

// TimePeriod is a daily window. When End is before Start the window spans
// midnight.
type TimePeriod struct {
	Start EasyTime
	End   EasyTime
}

// Contains reports whether t falls in [Start, End).
func (p TimePeriod) Contains(t EasyTime) bool {
	if p.Start.Before(p.End) {
		return !t.Before(p.Start) && t.Before(p.End)
	}
	return !t.Before(p.Start) || t.Before(p.End)
}

func (p TimePeriod) Equal(o TimePeriod) bool {
	return p.Start.Equal(o.Start) && p.End.Equal(o.End)
}

func (p TimePeriod) Flatten() string {
	return Join("TimePeriod", append(p.Start.fields(), p.End.fields()...)...)
}

func ParseTimePeriod(s string) (TimePeriod, error) {
	f, err := fields(s, "TimePeriod", 4)
	if err != nil {
		return TimePeriod{}, err
	}
	start, err := easyTimeFromFields(f[:2])
	if err != nil {
		return TimePeriod{}, err
	}
	end, err := easyTimeFromFields(f[2:])
	if err != nil {
		return TimePeriod{}, err
	}
	return TimePeriod{Start: start, End: end}, nil
}
