package world

import (
	"github.com/siafu-sim/siafu/sim/flat"
)

// Overlay is a named value defined over space, such as temperature or
// network coverage. Context models may change overlay parameters between
// iterations.
type Overlay interface {
	Name() string
	ValueAt(p flat.Position) flat.Datum
}

// Field maps a position to a raw value.
type Field func(p flat.Position) float64

// RealOverlay exposes the raw field value plus an offset.
type RealOverlay struct {
	Label  string
	Field  Field
	Offset float64
}

func (o *RealOverlay) Name() string { return o.Label }

func (o *RealOverlay) ValueAt(p flat.Position) flat.Datum {
	return flat.FloatNumber{Value: o.Field(p) + o.Offset}
}

// BinaryOverlay is true where the field reaches Threshold.
type BinaryOverlay struct {
	Label     string
	Field     Field
	Threshold float64
}

func (o *BinaryOverlay) Name() string { return o.Label }

func (o *BinaryOverlay) ValueAt(p flat.Position) flat.Datum {
	return flat.BooleanType{Value: o.Field(p) >= o.Threshold}
}

// DiscreteOverlay maps field intervals to tags: values below Thresholds[i]
// get Tags[i]; values above every threshold get the last tag. Tags must have
// one more element than Thresholds, which must be ascending.
type DiscreteOverlay struct {
	Label      string
	Field      Field
	Thresholds []float64
	Tags       []string
}

func (o *DiscreteOverlay) Name() string { return o.Label }

func (o *DiscreteOverlay) ValueAt(p flat.Position) flat.Datum {
	v := o.Field(p)
	for i, th := range o.Thresholds {
		if v < th {
			return flat.Text{Value: o.Tags[i]}
		}
	}
	return flat.Text{Value: o.Tags[len(o.Tags)-1]}
}
