package cache

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Observer receives prefill progress. It is for presentation only; the
// cache behaves identically whatever the observer does.
type Observer interface {
	PrefillStarted(total int)
	ElementLoaded(key string)
	PrefillEnded()
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) PrefillStarted(int)   {}
func (NopObserver) ElementLoaded(string) {}
func (NopObserver) PrefillEnded()        {}

// LogObserver reports prefill progress through logrus.
type LogObserver struct {
	Name   string
	Logger logrus.FieldLogger

	total  int
	loaded int
	start  time.Time
}

func (o *LogObserver) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}

func (o *LogObserver) PrefillStarted(total int) {
	o.total, o.loaded, o.start = total, 0, time.Now()
	o.logger().Infof("[cache %s] prefilling %s entries", o.Name, humanize.Comma(int64(total)))
}

func (o *LogObserver) ElementLoaded(key string) {
	o.loaded++
	o.logger().Debugf("[cache %s] loaded %q (%d/%d)", o.Name, key, o.loaded, o.total)
}

func (o *LogObserver) PrefillEnded() {
	o.logger().Infof("[cache %s] prefill done: %d entries in %s", o.Name, o.loaded, time.Since(o.start).Round(time.Millisecond))
}
