package sim

import "sync"

// Handshake is the per-tick rendezvous between the simulation goroutine and
// the front end. The simulation grants a frame and waits; the front end
// renders and reports the frame concluded. Each direction is a one-slot
// channel, so neither side can run ahead of the other by more than one
// frame, and Close releases whoever is waiting.
type Handshake struct {
	grant  chan struct{}
	done   chan struct{}
	closed chan struct{}
	once   sync.Once
}

func NewHandshake() *Handshake {
	return &Handshake{
		grant:  make(chan struct{}, 1),
		done:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Request is called by the simulation goroutine after each tick. If wants
// is false it returns at once. Otherwise it grants a frame and blocks until
// the front end concludes it. It returns false if the handshake was closed
// before the frame completed.
func (h *Handshake) Request(wants bool) bool {
	if !wants {
		return true
	}
	select {
	case h.grant <- struct{}{}:
	case <-h.closed:
		return false
	}
	select {
	case <-h.done:
		return true
	case <-h.closed:
		return false
	}
}

// Frames delivers one value per granted frame. State may be read from the
// moment a value is received until Concluded is called.
func (h *Handshake) Frames() <-chan struct{} { return h.grant }

// Concluded releases the simulation goroutine after a frame.
func (h *Handshake) Concluded() {
	select {
	case h.done <- struct{}{}:
	case <-h.closed:
	}
}

// Closed is closed once the handshake shuts down.
func (h *Handshake) Closed() <-chan struct{} { return h.closed }

// Close unblocks every party waiting on the handshake. It is idempotent.
func (h *Handshake) Close() {
	h.once.Do(func() { close(h.closed) })
}
