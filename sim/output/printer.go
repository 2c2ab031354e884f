// Package output exports simulation state as telemetry. Printers are
// notified after every iteration and decide themselves when to write.
package output

import "github.com/siafu-sim/siafu/sim/world"

// NullPrinter discards everything.
type NullPrinter struct{}

func (NullPrinter) IterationConcluded(*world.World) error { return nil }
func (NullPrinter) Cleanup() error                        { return nil }
