package event

import (
	"sync"
	"sync/atomic"
)

// Bus is a synchronous typed publish/subscribe channel shared across the
// process. Publish is safe from multiple goroutines; subscribers of one
// topic are invoked in subscription order.
type Bus struct {
	// mu guards the subscriber lists. The plain publish/subscribe path
	// takes only this lock.
	mu     sync.RWMutex
	subs   map[Topic][]*Subscription
	nextID atomic.Uint64
	closed atomic.Bool

	// replayMu guards replay buffer creation and lookup, kept separate so
	// ordinary publishes do not contend with it. replayCount lets Publish
	// skip the replay path entirely while no buffer exists.
	replayMu    sync.Mutex
	replays     map[Topic]*replayBuffer
	replayCount atomic.Int32
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs:    make(map[Topic][]*Subscription),
		replays: make(map[Topic]*replayBuffer),
	}
}

// Publish delivers msg synchronously to every active subscriber of its
// topic, in subscription order. Messages with no subscribers are dropped
// unless a replay buffer exists for the topic.
func (b *Bus) Publish(msg Message) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if msg == nil {
		return ErrNilMessage
	}

	msgTopic := msg.MessageTopic()
	if msgTopic == "" {
		return ErrInvalidTopic
	}

	if b.replayCount.Load() > 0 {
		b.recordReplay(msgTopic, msg)
	}

	b.mu.RLock()
	subs := make([]*Subscription, len(b.subs[msgTopic]))
	copy(subs, b.subs[msgTopic])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(msg)
	}
	return nil
}

// Subscribe registers a handler for all future messages of the topic.
func (b *Bus) Subscribe(topic Topic, handler HandlerFunc) (*Subscription, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	if topic == "" {
		return nil, ErrInvalidTopic
	}

	sub := &Subscription{
		id:      b.nextID.Add(1),
		topic:   topic,
		handler: handler,
		bus:     b,
	}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return sub, nil
}

// SubscribeLatest registers a handler like Subscribe, then synchronously
// delivers initial before returning, so late subscribers start from a
// known current value without any permanent buffering.
func (b *Bus) SubscribeLatest(topic Topic, initial Message, handler HandlerFunc) (*Subscription, error) {
	sub, err := b.Subscribe(topic, handler)
	if err != nil {
		return nil, err
	}

	if initial != nil {
		sub.deliver(initial)
	}
	return sub, nil
}

// SubscribeReplay registers a handler and replays the last bufferSize
// messages of the topic before live delivery begins. The replay buffer
// for a topic is created lazily on the first SubscribeReplay call and
// shared by all later replay subscribers; messages published between
// buffer creation and subscription are therefore not missed, up to the
// buffer size. A bufferSize of zero or less uses DefaultReplaySize.
func (b *Bus) SubscribeReplay(topic Topic, bufferSize int, handler HandlerFunc) (*Subscription, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	if handler == nil {
		return nil, ErrNilHandler
	}
	if topic == "" {
		return nil, ErrInvalidTopic
	}

	b.replayMu.Lock()
	buf, ok := b.replays[topic]
	if !ok {
		buf = newReplayBuffer(bufferSize)
		b.replays[topic] = buf
		b.replayCount.Add(1)
	}
	b.replayMu.Unlock()

	sub, err := b.Subscribe(topic, handler)
	if err != nil {
		return nil, err
	}

	for _, msg := range buf.snapshot() {
		sub.deliver(msg)
	}
	return sub, nil
}

// ClearReplay disposes the replay buffer for a topic. The next
// SubscribeReplay call for the topic starts a fresh, empty buffer.
func (b *Bus) ClearReplay(topic Topic) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	b.replayMu.Lock()
	defer b.replayMu.Unlock()
	if _, ok := b.replays[topic]; ok {
		delete(b.replays, topic)
		b.replayCount.Add(-1)
	}
	return nil
}

// Unsubscribe cancels and removes a subscription.
func (b *Bus) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}
	if b.closed.Load() {
		return ErrBusClosed
	}
	if sub.cancelled.Swap(true) {
		return ErrSubscriptionNotFound
	}
	if !b.remove(sub) {
		return ErrSubscriptionNotFound
	}
	return nil
}

// Close tears the bus down. All subsequent operations fail with
// ErrBusClosed; callers must not publish or subscribe after teardown.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return ErrBusClosed
	}

	b.mu.Lock()
	b.subs = make(map[Topic][]*Subscription)
	b.mu.Unlock()

	b.replayMu.Lock()
	b.replays = make(map[Topic]*replayBuffer)
	b.replayCount.Store(0)
	b.replayMu.Unlock()

	return nil
}

// IsClosed reports whether the bus has been closed.
func (b *Bus) IsClosed() bool { return b.closed.Load() }

// SubscriberCount returns the number of active subscriptions for a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// recordReplay appends msg to the topic's replay buffer, if one exists.
func (b *Bus) recordReplay(topic Topic, msg Message) {
	b.replayMu.Lock()
	buf := b.replays[topic]
	b.replayMu.Unlock()

	if buf != nil {
		buf.record(msg)
	}
}

// remove deletes a subscription from the topic list.
func (b *Bus) remove(sub *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sub.topic]
	for i, s := range subs {
		if s.id == sub.id {
			b.subs[sub.topic] = append(subs[:i], subs[i+1:]...)
			if len(b.subs[sub.topic]) == 0 {
				delete(b.subs, sub.topic)
			}
			return true
		}
	}
	return false
}
