package event

import "errors"

// Sentinel errors for the event bus.
var (
	// ErrBusClosed is returned by every operation on a closed bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrNilMessage is returned when Publish is called with a nil message.
	ErrNilMessage = errors.New("message cannot be nil")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrInvalidTopic is returned when a topic is empty.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrInvalidSubscription is returned when a nil subscription is passed
	// to Unsubscribe.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrSubscriptionNotFound is returned when trying to unsubscribe a
	// subscription the bus no longer tracks.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
