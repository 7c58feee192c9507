// Package link tracks liveness of the paddle radio link. The paddle only
// pushes notifications; there is no acknowledgment protocol, so silence is
// the sole disconnect signal.
package link

import "time"

// State of the radio link as seen by the host.
type State int

const (
	StateScanning State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "scanning"
}

// StatusHandler is called once per state transition.
type StatusHandler func(State)

// Monitor declares the link down when no packet has been accepted for a full
// poll interval. Driven synchronously by the host loop: Touch on every
// accepted packet, Poll on a fixed cadence (2s by default). Not safe for
// concurrent use; the pump serializes access.
type Monitor struct {
	state    State
	lastData time.Time
	fresh    bool // packet accepted since the previous Poll
	onStatus StatusHandler
}

// NewMonitor creates a Monitor in the scanning state.
func NewMonitor() *Monitor {
	return &Monitor{state: StateScanning}
}

// SetStatusHandler registers the transition callback.
func (m *Monitor) SetStatusHandler(fn StatusHandler) {
	m.onStatus = fn
}

// State returns the current link state.
func (m *Monitor) State() State {
	return m.state
}

// LastData returns the arrival time of the most recent accepted packet.
func (m *Monitor) LastData() time.Time {
	return m.lastData
}

// Touch records an accepted packet. Any state other than connected
// transitions to connected and fires the status handler.
func (m *Monitor) Touch(now time.Time) {
	m.lastData = now
	m.fresh = true
	if m.state != StateConnected {
		m.transition(StateConnected)
	}
}

// Poll re-arms the staleness window. If the link was connected and nothing
// arrived since the previous poll, it transitions to disconnected exactly
// once; further empty polls are no-ops.
func (m *Monitor) Poll(now time.Time) {
	if m.state == StateConnected && !m.fresh {
		m.transition(StateDisconnected)
	}
	m.fresh = false
}

// BeginScan marks the link as scanning, e.g. when the reconnect supervisor
// restarts discovery after a drop.
func (m *Monitor) BeginScan() {
	if m.state != StateConnected {
		m.transition(StateScanning)
	}
}

// NoteConnectionFailed records an adapter-level connect failure.
func (m *Monitor) NoteConnectionFailed() {
	if m.state == StateConnected {
		m.transition(StateDisconnected)
	}
}

func (m *Monitor) transition(next State) {
	if m.state == next {
		return
	}
	m.state = next
	if m.onStatus != nil {
		m.onStatus(next)
	}
}
