package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noorbagus/asdp-boat-sub002/gesture"
	"github.com/noorbagus/asdp-boat-sub002/link"
	"github.com/noorbagus/asdp-boat-sub002/wire"
)

// fakeTransport hands out queued lines one TryReceive at a time.
type fakeTransport struct {
	lines [][]byte
}

func (f *fakeTransport) push(lines ...string) {
	for _, l := range lines {
		f.lines = append(f.lines, []byte(l))
	}
}

func (f *fakeTransport) TryReceive() ([]byte, bool) {
	if len(f.lines) == 0 {
		return nil, false
	}
	head := f.lines[0]
	f.lines = f.lines[1:]
	return head, true
}

func at(ms int) time.Time {
	return time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)
}

func newTestPump(t *fakeTransport) (*Pump, *gesture.Detector, *link.Monitor) {
	d := gesture.NewDetector(gesture.DefaultParams())
	m := link.NewMonitor()
	p := NewPump(t, d, m, Options{
		Axes:         wire.DefaultAxisMap(),
		PollInterval: 2 * time.Second,
	})
	return p, d, m
}

func TestOnePacketPerTick(t *testing.T) {
	ft := &fakeTransport{}
	ft.push("A:0.0", "A:1.0")
	p, _, m := newTestPump(ft)

	p.Tick(at(0))
	require.Len(t, ft.lines, 1)
	require.Equal(t, link.StateConnected, m.State())

	p.Tick(at(20))
	require.Empty(t, ft.lines)
}

func TestStrokesFromBothFormats(t *testing.T) {
	ft := &fakeTransport{}
	p, d, _ := newTestPump(ft)

	var strokes []gesture.StrokeEvent
	p.SetStrokeHandler(func(ev gesture.StrokeEvent) { strokes = append(strokes, ev) })

	// Direct-angle format drives the detector left...
	ft.push("A:-45.0")
	p.Tick(at(0))
	require.Len(t, strokes, 1)
	require.Equal(t, wire.SideLeft, strokes[0].Side)
	require.Equal(t, gesture.StateLeft, d.State())

	// ...return to neutral...
	ft.push("A:0.0")
	p.Tick(at(100))
	require.Equal(t, gesture.StateNeutral, d.State())

	// ...and the raw-triple format does too, on the same stream.
	ft.push("0.00,-6.94,6.94,")
	p.Tick(at(400))
	require.Len(t, strokes, 2)
	require.Equal(t, wire.SideLeft, strokes[1].Side)
	require.Equal(t, gesture.StateLeft, d.State())
}

func TestLegacyTokensAreDebounced(t *testing.T) {
	ft := &fakeTransport{}
	p, d, _ := newTestPump(ft)

	var strokes []gesture.StrokeEvent
	p.SetStrokeHandler(func(ev gesture.StrokeEvent) { strokes = append(strokes, ev) })

	ft.push("R:1")
	p.Tick(at(0))
	ft.push("R:1")
	p.Tick(at(100)) // inside the 300ms lockout
	ft.push("R:1")
	p.Tick(at(400))

	require.Len(t, strokes, 2)
	require.Equal(t, wire.SideRight, strokes[0].Side)
	// Discrete triggers leave the hysteresis state alone.
	require.Equal(t, gesture.StateNeutral, d.State())
}

func TestMalformedInputIsInert(t *testing.T) {
	ft := &fakeTransport{}
	p, d, m := newTestPump(ft)

	ft.push("A:-45.0")
	p.Tick(at(0))
	require.Equal(t, gesture.StateLeft, d.State())

	ft.push("A:abc", "1,2", "garbage")
	p.Tick(at(20))
	p.Tick(at(40))
	p.Tick(at(60))

	snap := p.Snapshot(at(60))
	require.Equal(t, 3, snap.ParseErrors)
	// Neither gesture nor connection state moved.
	require.Equal(t, gesture.StateLeft, d.State())
	require.Equal(t, link.StateConnected, m.State())
	require.Equal(t, at(0), m.LastData())
}

func TestStalenessPausesSessionAndResetsDetector(t *testing.T) {
	ft := &fakeTransport{}
	p, d, m := newTestPump(ft)

	p.StartSession(at(0))

	ft.push("A:-45.0")
	p.Tick(at(0))
	require.Equal(t, link.StateConnected, m.State())

	// Silence across two poll cycles.
	p.Tick(at(2000))
	p.Tick(at(4000))
	require.Equal(t, link.StateDisconnected, m.State())

	snap := p.Snapshot(at(4000))
	require.True(t, snap.Paused)
	require.Equal(t, "disconnected", snap.Link)
	require.Equal(t, gesture.StateNeutral, d.State())

	// Data resumes: connected again, session unpauses.
	ft.push("A:0.0")
	p.Tick(at(4100))
	snap = p.Snapshot(at(4100))
	require.False(t, snap.Paused)
	require.Equal(t, "connected", snap.Link)
}

func TestSessionStats(t *testing.T) {
	ft := &fakeTransport{}
	p, _, _ := newTestPump(ft)

	p.StartSession(at(0))

	ft.push("A:-45.0")
	p.Tick(at(0))
	ft.push("A:40.0")
	p.Tick(at(100))
	ft.push("A:-45.0")
	p.Tick(at(400))

	snap := p.Snapshot(at(1000))
	require.Equal(t, 2, snap.LeftStrokes)
	require.Equal(t, 1, snap.RightStrokes)
	require.Len(t, snap.RecentStrokes, 3)
	require.Equal(t, "left", snap.RecentStrokes[0].Side)
	require.Equal(t, 3, snap.RecentStrokes[2].Count)
	require.InDelta(t, 1.0, snap.ElapsedSec, 1e-9)
	require.True(t, snap.Active)
}

func TestResetSession(t *testing.T) {
	ft := &fakeTransport{}
	p, _, _ := newTestPump(ft)

	p.StartSession(at(0))
	ft.push("A:-45.0")
	p.Tick(at(0))

	p.ResetSession()
	snap := p.Snapshot(at(100))
	require.False(t, snap.Active)
	require.Zero(t, snap.LeftStrokes)
	require.Empty(t, snap.RecentStrokes)
}

func TestStrokesIgnoredWhenNoSession(t *testing.T) {
	ft := &fakeTransport{}
	p, _, _ := newTestPump(ft)

	ft.push("A:-45.0")
	p.Tick(at(0))

	snap := p.Snapshot(at(100))
	require.Zero(t, snap.LeftStrokes)
	require.False(t, snap.Active)
}
