// Package calibration provides the command cell used to request a pose reset.
package calibration

// Trigger is a single-slot mailbox. Requests made before the next Consume
// collapse into one.
type Trigger struct {
	ch chan struct{}
}

// NewTrigger creates an empty Trigger.
func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan struct{}, 1)}
}

// Request asks for a reset on the next tick. It never blocks.
func (t *Trigger) Request() {
	select {
	case t.ch <- struct{}{}:
	default:
	}
}

// Consume reports whether a reset was requested and clears the request.
func (t *Trigger) Consume() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Pending reports whether a request is waiting, without clearing it.
func (t *Trigger) Pending() bool {
	return len(t.ch) > 0
}
