package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/siafu-sim/siafu/sim/cache"
)

// Progress receives lifecycle milestones of a run. A Progress is owned by
// the run that reports to it; nothing in the platform holds one globally.
type Progress interface {
	cache.Observer
	WorldCreation(name string)
	SimulationStarted(name string)
	SimulationEnded(name string, iterations int64)
}

// NopProgress discards everything.
type NopProgress struct{ cache.NopObserver }

func (NopProgress) WorldCreation(string)          {}
func (NopProgress) SimulationStarted(string)      {}
func (NopProgress) SimulationEnded(string, int64) {}

// LogProgress reports milestones through logrus. Use it by pointer.
type LogProgress struct {
	cache.LogObserver
}

func (p *LogProgress) WorldCreation(name string) {
	logrus.Infof("Creating world %s", name)
}

func (p *LogProgress) SimulationStarted(name string) {
	logrus.Infof("Simulation %s started", name)
}

func (p *LogProgress) SimulationEnded(name string, iterations int64) {
	logrus.Infof("Simulation %s ended after %d iterations", name, iterations)
}
