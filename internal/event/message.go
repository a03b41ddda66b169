package event

// Topic identifies a message type on the bus. Each message type declares
// exactly one topic constant; there is no pattern or hierarchy matching.
type Topic string

// Message is any record that can be published on the bus.
type Message interface {
	// MessageTopic returns the topic this message is delivered under.
	MessageTopic() Topic
}

// HandlerFunc receives published messages for one subscription.
type HandlerFunc func(msg Message)
