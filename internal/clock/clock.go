package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock supplies the current time. Invoice transitions that depend on time
// (overdue detection, reminder due-ness) read it instead of time.Now.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewSystemClock() Clock {
	return SystemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
