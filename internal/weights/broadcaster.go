// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package weights

import "sync"

// subscriberQueueSize bounds each subscriber's buffered channel; a slow
// subscriber whose queue is full misses that event (it stays subscribed)
// rather than being allowed to block publication, per spec
// §9's "broadcast channel with subscriber list, per-subscriber bounded
// queue, drop-on-slow-subscriber policy" design note. Grounded on the
// register/unregister/broadcast hub shape in internal/server/websocket.go.
const subscriberQueueSize = 64

// broadcaster fans a stream of ProgressEvents out to any number of
// subscribers.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan ProgressEvent]bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan ProgressEvent]bool)}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function.
func (b *broadcaster) Subscribe() (<-chan ProgressEvent, func()) {
	ch := make(chan ProgressEvent, subscriberQueueSize)
	b.mu.Lock()
	b.subs[ch] = true
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Publish sends ev to every current subscriber, dropping it for any
// subscriber whose queue is full rather than blocking.
func (b *broadcaster) Publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
