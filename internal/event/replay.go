package event

import "sync"

// DefaultReplaySize is the replay buffer capacity used when a caller
// passes a size of zero or less.
const DefaultReplaySize = 1

// replayBuffer retains the last capacity messages published under one
// topic. Buffers are created lazily, once per topic, and live until
// ClearReplay drops them.
type replayBuffer struct {
	mu       sync.Mutex
	capacity int
	msgs     []Message
}

func newReplayBuffer(capacity int) *replayBuffer {
	if capacity <= 0 {
		capacity = DefaultReplaySize
	}
	return &replayBuffer{
		capacity: capacity,
		msgs:     make([]Message, 0, capacity),
	}
}

// record appends a message, evicting the oldest once over capacity.
func (b *replayBuffer) record(msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.msgs = append(b.msgs, msg)
	if len(b.msgs) > b.capacity {
		b.msgs = b.msgs[len(b.msgs)-b.capacity:]
	}
}

// snapshot returns the buffered messages oldest-first.
func (b *replayBuffer) snapshot() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}
