// Package bridge drives the host pipeline: one non-blocking receive per
// tick, parse, gesture detection, and link liveness, in arrival order.
package bridge

import (
	"log"
	"sync"
	"time"

	"github.com/noorbagus/asdp-boat-sub002/gesture"
	"github.com/noorbagus/asdp-boat-sub002/link"
	"github.com/noorbagus/asdp-boat-sub002/wire"
)

// Transport is the receive side of the radio adapter consumed by the pump.
type Transport interface {
	TryReceive() ([]byte, bool)
}

// StrokeHandler receives detected strokes.
type StrokeHandler func(gesture.StrokeEvent)

// StateHandler receives session snapshots after every change.
type StateHandler func(*Session)

// Options tune the pump.
type Options struct {
	Axes         wire.AxisMap
	PollInterval time.Duration // link staleness cadence, default 2s
}

// Pump consumes at most one packet per tick, preserving arrival order, and
// feeds the detector and the link monitor. All pipeline work happens on the
// caller's tick goroutine; handlers registered here must not block it.
type Pump struct {
	mu        sync.Mutex
	transport Transport
	detector  *gesture.Detector
	monitor   *link.Monitor

	axes         wire.AxisMap
	pollInterval time.Duration
	lastPoll     time.Time

	session   Session
	startedAt time.Time

	onStroke StrokeHandler
	onState  StateHandler
}

// NewPump wires the pipeline together. The monitor's status handler is owned
// by the pump: link loss resets the detector and pauses the session.
func NewPump(t Transport, d *gesture.Detector, m *link.Monitor, opts Options) *Pump {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	p := &Pump{
		transport:    t,
		detector:     d,
		monitor:      m,
		axes:         opts.Axes,
		pollInterval: opts.PollInterval,
		session:      Session{RecentStrokes: []StrokeRecord{}, Link: m.State().String()},
	}
	m.SetStatusHandler(p.onLinkChange)
	return p
}

// SetStrokeHandler registers the stroke callback.
func (p *Pump) SetStrokeHandler(fn StrokeHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStroke = fn
}

// SetStateHandler registers the session snapshot callback.
func (p *Pump) SetStateHandler(fn StateHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

// StartSession begins counting strokes.
func (p *Pump) StartSession(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.session = Session{
		Active:        true,
		Link:          p.monitor.State().String(),
		RecentStrokes: []StrokeRecord{},
	}
	p.startedAt = now
	log.Println("Pump: Session started")
	p.broadcastLocked()
}

// ResetSession clears all stats and deactivates the session.
func (p *Pump) ResetSession() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.session = Session{
		Link:          p.monitor.State().String(),
		RecentStrokes: []StrokeRecord{},
	}
	log.Println("Pump: Session reset")
	p.broadcastLocked()
}

// Snapshot returns a copy of the current session state.
func (p *Pump) Snapshot(now time.Time) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked(now)
}

// Tick runs one scheduling step: at most one packet is consumed, then the
// staleness poll fires if its cadence is due. Call from a single goroutine.
func (p *Pump) Tick(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if raw, ok := p.transport.TryReceive(); ok {
		p.consumeLocked(raw, now)
	}

	if p.lastPoll.IsZero() {
		p.lastPoll = now
	} else if now.Sub(p.lastPoll) >= p.pollInterval {
		p.monitor.Poll(now)
		p.lastPoll = now
	}
}

// consumeLocked parses one packet and advances the pipeline. Malformed data
// is logged and dropped; detector and link state stay untouched beyond the
// staleness heuristic.
func (p *Pump) consumeLocked(raw []byte, now time.Time) {
	msg, err := wire.ParseLine(raw, p.axes, now)
	if err != nil {
		p.session.ParseErrors++
		log.Printf("Pump: drop packet: %v", err)
		return
	}

	p.monitor.Touch(now)

	var ev gesture.StrokeEvent
	var stroked bool
	switch msg.Kind {
	case wire.KindReading:
		p.session.CurrentAngle = msg.Reading.Angle
		ev, stroked = p.detector.Update(msg.Reading.Angle, now)
	case wire.KindDiscrete:
		ev, stroked = p.detector.InjectDiscrete(msg.Side, now)
	}

	p.session.GestureState = p.detector.State().String()

	if !stroked {
		return
	}

	if p.session.Active && !p.session.Paused {
		p.session.record(ev, p.startedAt)
	}
	if p.onStroke != nil {
		p.onStroke(ev)
	}
	p.broadcastLocked()
}

// NoteScanning feeds a transport scan-started event to the monitor.
func (p *Pump) NoteScanning() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.monitor.BeginScan()
}

// NoteConnectionFailed feeds a transport connect failure to the monitor.
func (p *Pump) NoteConnectionFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.monitor.NoteConnectionFailed()
}

// onLinkChange is the monitor's status handler.
func (p *Pump) onLinkChange(s link.State) {
	// Re-entrant from Touch/Poll inside Tick, which already holds the lock.
	p.session.Link = s.String()

	switch s {
	case link.StateDisconnected, link.StateScanning:
		p.detector.Reset()
		p.session.GestureState = p.detector.State().String()
		if p.session.Active {
			p.session.Paused = true
		}
	case link.StateConnected:
		p.session.Paused = false
	}

	log.Printf("Pump: Link %s", s)
	p.broadcastLocked()
}

func (p *Pump) snapshotLocked(now time.Time) *Session {
	out := p.session.clone()
	if p.session.Active {
		out.ElapsedSec = now.Sub(p.startedAt).Seconds()
	}
	return out
}

// broadcastLocked sends a snapshot to the state handler. Must be called with
// p.mu held; the handler runs on its own goroutine to keep the tick cheap.
func (p *Pump) broadcastLocked() {
	if p.onState == nil {
		return
	}
	snap := p.snapshotLocked(time.Now())
	go p.onState(snap)
}
