// Package score implements a lower-is-better criterion value that remembers
// whether it got smaller with its last change.
package score

import "strconv"

// Tracker holds the current and the previous value of an information
// criterion.
type Tracker struct {
	current  float64
	previous float64
}

// New creates a tracker whose first Improved check reports true.
func New(value float64) *Tracker {
	return &Tracker{
		current:  value,
		previous: value + 1.0,
	}
}

// ChangesTo shifts the current value into previous and stores value as current.
func (t *Tracker) ChangesTo(value float64) {
	t.previous = t.current
	t.current = value
}

// Improved reports whether the last change strictly lowered the value.
func (t *Tracker) Improved() bool {
	return t.current < t.previous
}

// AtLeast reports whether the current value is greater than or equal to v,
// i.e. whether v is at least as good as what is tracked.
func (t *Tracker) AtLeast(v float64) bool {
	return t.current >= v
}

// Value returns the current value.
func (t *Tracker) Value() float64 {
	return t.current
}

// Previous returns the value before the last change.
func (t *Tracker) Previous() float64 {
	return t.previous
}

// Copy returns an independent tracker with the same state.
func (t *Tracker) Copy() *Tracker {
	c := *t
	return &c
}

func (t *Tracker) String() string {
	return strconv.FormatFloat(t.current, 'g', -1, 64)
}
