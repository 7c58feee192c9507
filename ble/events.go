package ble

// EventKind classifies transport events surfaced to the application.
type EventKind int

const (
	// EventConnected fires after the notify stream is established.
	EventConnected EventKind = iota
	// EventConnectionFailed fires when a connect attempt is abandoned.
	EventConnectionFailed
	// EventScanEnded fires when a scan pass stops, with the device count.
	EventScanEnded
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventConnectionFailed:
		return "connection-failed"
	case EventScanEnded:
		return "scan-ended"
	}
	return "unknown"
}

// Event is one transport lifecycle notification.
type Event struct {
	Kind        EventKind
	DeviceCount int   // devices seen during the scan pass, EventScanEnded only
	Err         error // cause, EventConnectionFailed only
}

// Subscribe registers fn for transport events and returns its cancel
// function. Handlers run on transport goroutines and must not block.
func (c *Central) Subscribe(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// emit delivers an event to all subscribers.
func (c *Central) emit(ev Event) {
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
