package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noorbagus/asdp-boat-sub002/wire"
)

func at(ms int) time.Time {
	return time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)
}

func TestDebounceHolds(t *testing.T) {
	d := NewDetector(DefaultParams())

	ev, ok := d.Update(-40, at(0))
	require.True(t, ok)
	require.Equal(t, wire.SideLeft, ev.Side)
	require.Equal(t, StateLeft, d.State())

	// Second reading inside the 300ms lockout: no event.
	_, ok = d.Update(-40, at(200))
	require.False(t, ok)

	// Lockout expired: second stroke.
	ev, ok = d.Update(-40, at(310))
	require.True(t, ok)
	require.Equal(t, wire.SideLeft, ev.Side)
}

func TestRightStroke(t *testing.T) {
	d := NewDetector(DefaultParams())

	ev, ok := d.Update(35, at(0))
	require.True(t, ok)
	require.Equal(t, wire.SideRight, ev.Side)
	require.InDelta(t, 35.0, ev.Angle, 1e-9)
	require.Equal(t, StateRight, d.State())
}

func TestIdempotentNeutralReturn(t *testing.T) {
	d := NewDetector(DefaultParams())

	neutralSignals := 0
	d.SetNeutralHandler(func() { neutralSignals++ })

	_, ok := d.Update(-40, at(0))
	require.True(t, ok)

	// Inside the hysteresis band (15..30): no state change, no trigger.
	_, ok = d.Update(-20, at(50))
	require.False(t, ok)
	require.Equal(t, StateLeft, d.State())

	// Settles inside the neutral band: back to neutral, reset signal once.
	_, ok = d.Update(5, at(100))
	require.False(t, ok)
	require.Equal(t, StateNeutral, d.State())
	require.Equal(t, 1, neutralSignals)

	// Staying neutral does not re-fire the signal.
	d.Update(2, at(150))
	require.Equal(t, 1, neutralSignals)
}

func TestSidesDebounceIndependently(t *testing.T) {
	d := NewDetector(DefaultParams())

	_, ok := d.Update(-40, at(0))
	require.True(t, ok)

	// Opposite side is not locked out by the left stroke.
	ev, ok := d.Update(40, at(100))
	require.True(t, ok)
	require.Equal(t, wire.SideRight, ev.Side)

	// Left re-arms on its own timer even though state is now Right.
	ev, ok = d.Update(-40, at(320))
	require.True(t, ok)
	require.Equal(t, wire.SideLeft, ev.Side)
}

func TestInjectDiscrete(t *testing.T) {
	d := NewDetector(DefaultParams())

	ev, ok := d.InjectDiscrete(wire.SideLeft, at(0))
	require.True(t, ok)
	require.Equal(t, wire.SideLeft, ev.Side)
	// Legacy triggers do not touch the hysteresis state.
	require.Equal(t, StateNeutral, d.State())

	// Same lockout as threshold-triggered strokes.
	_, ok = d.InjectDiscrete(wire.SideLeft, at(200))
	require.False(t, ok)
	_, ok = d.InjectDiscrete(wire.SideLeft, at(310))
	require.True(t, ok)
}

func TestDiscreteSharesLockoutWithThreshold(t *testing.T) {
	d := NewDetector(DefaultParams())

	_, ok := d.Update(-40, at(0))
	require.True(t, ok)

	// A legacy trigger inside the lockout set by the angle stroke is dropped.
	_, ok = d.InjectDiscrete(wire.SideLeft, at(150))
	require.False(t, ok)

	// And vice versa once re-armed.
	_, ok = d.InjectDiscrete(wire.SideLeft, at(350))
	require.True(t, ok)
	_, ok = d.Update(-40, at(400))
	require.False(t, ok)
}

func TestCustomParams(t *testing.T) {
	d := NewDetector(Params{
		LeftThreshold:    -10,
		RightThreshold:   10,
		NeutralThreshold: 5,
		Debounce:         100 * time.Millisecond,
	})

	_, ok := d.Update(-12, at(0))
	require.True(t, ok)
	_, ok = d.Update(-12, at(90))
	require.False(t, ok)
	_, ok = d.Update(-12, at(110))
	require.True(t, ok)
}

func TestReset(t *testing.T) {
	d := NewDetector(DefaultParams())

	_, ok := d.Update(-40, at(0))
	require.True(t, ok)
	require.Equal(t, StateLeft, d.State())

	d.Reset()
	require.Equal(t, StateNeutral, d.State())

	// Cooldowns cleared: an immediate stroke is allowed after reconnect.
	_, ok = d.Update(-40, at(10))
	require.True(t, ok)
}
