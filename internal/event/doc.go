// Package event implements a process-wide typed publish/subscribe bus.
//
// Messages are plain records that declare their topic via MessageTopic;
// a subscription receives only messages of exactly that topic. Publish
// is synchronous: every active subscriber is invoked in subscription
// order before Publish returns.
//
// Three subscription flavors exist:
//
//   - Subscribe: live messages only, nothing buffered.
//   - SubscribeLatest: like Subscribe, but the handler is invoked with a
//     caller-supplied initial value synchronously at subscription time,
//     giving late subscribers current-value semantics without buffering.
//   - SubscribeReplay: lazily creates one bounded replay buffer per topic;
//     new subscribers first receive the buffered history in publish
//     order, then live messages.
//
// A closed bus fails fast: every operation after Close returns
// ErrBusClosed rather than silently doing nothing, so lifecycle misuse
// surfaces immediately.
package event
