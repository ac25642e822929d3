package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock supplies the current time. The register year is always derived from
// it at call time, never passed in by callers.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewSystemClock() Clock {
	return systemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
