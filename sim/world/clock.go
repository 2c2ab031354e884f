package world

import (
	"time"

	"github.com/siafu-sim/siafu/sim/flat"
)

// Clock is the simulation's logical time. It advances by a fixed step and
// only when the simulation goroutine calls Advance.
type Clock struct {
	start      time.Time
	now        time.Time
	step       time.Duration
	iterations int64
}

func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{start: start, now: start, step: step}
}

func (c *Clock) Now() time.Time           { return c.now }
func (c *Clock) Start() time.Time         { return c.start }
func (c *Clock) Step() time.Duration      { return c.step }
func (c *Clock) Iterations() int64        { return c.iterations }
func (c *Clock) TimeOfDay() flat.EasyTime { return flat.EasyTimeOf(c.now) }

// Advance moves the clock forward one step.
func (c *Clock) Advance() {
	c.now = c.now.Add(c.step)
	c.iterations++
}
