package flat

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatDecimal renders v the way the JVM's Double.toString does, so flat
// strings produced by other platform components compare byte for byte:
// plain notation with at least one fractional digit for 1e-3 <= |v| < 1e7,
// and d.dddE±n otherwise.
func FormatDecimal(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	abs := math.Abs(v)
	if abs == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(v, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(v, 'E', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "E")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	e, _ := strconv.Atoi(exp)
	return mantissa + "E" + strconv.Itoa(e)
}

// ParseDecimal accepts anything FormatDecimal produces.
func ParseDecimal(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad decimal %q", ErrFormat, s)
	}
	return v, nil
}

// IntegerNumber is a flat-encoded int.
type IntegerNumber struct {
	Value int
}

func (n IntegerNumber) Flatten() string {
	return Join("IntegerNumber", strconv.Itoa(n.Value))
}

func ParseIntegerNumber(s string) (IntegerNumber, error) {
	f, err := fields(s, "IntegerNumber", 1)
	if err != nil {
		return IntegerNumber{}, err
	}
	v, err := strconv.Atoi(f[0])
	if err != nil {
		return IntegerNumber{}, fmt.Errorf("%w: bad integer %q", ErrFormat, f[0])
	}
	return IntegerNumber{Value: v}, nil
}

// FloatNumber is a flat-encoded float64.
type FloatNumber struct {
	Value float64
}

func (n FloatNumber) Flatten() string {
	return Join("FloatNumber", FormatDecimal(n.Value))
}

func ParseFloatNumber(s string) (FloatNumber, error) {
	f, err := fields(s, "FloatNumber", 1)
	if err != nil {
		return FloatNumber{}, err
	}
	v, err := ParseDecimal(f[0])
	if err != nil {
		return FloatNumber{}, err
	}
	return FloatNumber{Value: v}, nil
}
