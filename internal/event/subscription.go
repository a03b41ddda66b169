package event

import "sync/atomic"

// Subscription is an active registration on the bus. Cancelling a
// subscription stops delivery and removes it from the bus.
type Subscription struct {
	id      uint64
	topic   Topic
	handler HandlerFunc

	cancelled atomic.Bool
	bus       *Bus
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() uint64 { return s.id }

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic { return s.topic }

// IsActive returns true while the subscription can receive messages.
func (s *Subscription) IsActive() bool { return !s.cancelled.Load() }

// Cancel permanently stops delivery to this subscription and removes it
// from the bus. Cancelling twice is a no-op.
func (s *Subscription) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	s.bus.remove(s)
}

// deliver invokes the handler if the subscription is still active.
func (s *Subscription) deliver(msg Message) {
	if s.cancelled.Load() {
		return
	}
	s.handler(msg)
}
