// Package gesture turns the continuous paddle-angle stream into discrete,
// debounced stroke events.
package gesture

import (
	"time"

	"github.com/noorbagus/asdp-boat-sub002/wire"
)

// State is the hysteresis state of the paddle.
type State int

const (
	StateNeutral State = iota
	StateLeft
	StateRight
)

func (s State) String() string {
	switch s {
	case StateLeft:
		return "left"
	case StateRight:
		return "right"
	}
	return "neutral"
}

// Params are the detection tunables. Angles in degrees.
type Params struct {
	LeftThreshold    float64       // stroke when angle drops below this (negative)
	RightThreshold   float64       // stroke when angle rises above this (positive)
	NeutralThreshold float64       // |angle| below this returns the state to neutral
	Debounce         time.Duration // per-side minimum gap between strokes
}

// DefaultParams returns the tuning used with the reference paddle.
func DefaultParams() Params {
	return Params{
		LeftThreshold:    -30,
		RightThreshold:   30,
		NeutralThreshold: 15,
		Debounce:         300 * time.Millisecond,
	}
}

// StrokeEvent is one detected paddle stroke.
type StrokeEvent struct {
	Side  wire.Side
	Angle float64 // angle that triggered the stroke; 0 for legacy triggers
	At    time.Time
}

// Detector is the stroke state machine. It is driven synchronously by the
// host pump, one reading at a time, in arrival order; it is not safe for
// concurrent use.
//
// Triggering and hysteresis are deliberately decoupled: each side re-arms on
// its own expiring cooldown, independent of the Neutral/Left/Right state, so
// holding the paddle past a threshold keeps stroking at the debounce rate and
// one side can fire while the other is mid-stroke. The state tracks the
// neutral band only for the reset signal consumed by animation collaborators.
type Detector struct {
	params Params
	state  State

	leftLockedUntil  time.Time
	rightLockedUntil time.Time

	onNeutral func()
}

// NewDetector creates a Detector in the neutral state.
func NewDetector(params Params) *Detector {
	return &Detector{params: params}
}

// SetNeutralHandler registers the callback fired when the angle settles back
// inside the neutral band after a stroke.
func (d *Detector) SetNeutralHandler(fn func()) {
	d.onNeutral = fn
}

// State returns the current hysteresis state.
func (d *Detector) State() State {
	return d.state
}

// Update feeds one angle sample at wall-clock time t. It returns the stroke
// event and true when this sample triggered a stroke.
func (d *Detector) Update(angle float64, t time.Time) (StrokeEvent, bool) {
	switch {
	case angle < d.params.LeftThreshold && !t.Before(d.leftLockedUntil):
		d.leftLockedUntil = t.Add(d.params.Debounce)
		d.state = StateLeft
		return StrokeEvent{Side: wire.SideLeft, Angle: angle, At: t}, true

	case angle > d.params.RightThreshold && !t.Before(d.rightLockedUntil):
		d.rightLockedUntil = t.Add(d.params.Debounce)
		d.state = StateRight
		return StrokeEvent{Side: wire.SideRight, Angle: angle, At: t}, true
	}

	if d.state != StateNeutral && angle < d.params.NeutralThreshold && angle > -d.params.NeutralThreshold {
		d.state = StateNeutral
		if d.onNeutral != nil {
			d.onNeutral()
		}
	}

	return StrokeEvent{}, false
}

// InjectDiscrete feeds a legacy L:1/R:1 trigger as if the corresponding
// threshold had been crossed at time t. The same per-side cooldown applies,
// but the hysteresis state is left alone: legacy firmware has no continuous
// angle to settle back to neutral.
func (d *Detector) InjectDiscrete(side wire.Side, t time.Time) (StrokeEvent, bool) {
	switch side {
	case wire.SideLeft:
		if t.Before(d.leftLockedUntil) {
			return StrokeEvent{}, false
		}
		d.leftLockedUntil = t.Add(d.params.Debounce)
		return StrokeEvent{Side: wire.SideLeft, At: t}, true

	case wire.SideRight:
		if t.Before(d.rightLockedUntil) {
			return StrokeEvent{}, false
		}
		d.rightLockedUntil = t.Add(d.params.Debounce)
		return StrokeEvent{Side: wire.SideRight, At: t}, true
	}
	return StrokeEvent{}, false
}

// Reset returns the detector to neutral and clears both cooldowns. Called on
// link loss so a reconnect starts from a clean slate.
func (d *Detector) Reset() {
	d.state = StateNeutral
	d.leftLockedUntil = time.Time{}
	d.rightLockedUntil = time.Time{}
}
