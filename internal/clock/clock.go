// Package clock provides an injectable time source.
//
// Everything in the agent that depends on "now" (event status, urgency,
// relative-date resolution, cache TTLs) takes a Clock so tests and demo
// mode can pin an arbitrary instant.
package clock

import "time"

// Clock is the time source capability.
type Clock interface {
	Now() time.Time
}

// System returns a Clock backed by the wall clock.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock {
	return fixedClock{t: t}
}

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time {
	return c.t
}
