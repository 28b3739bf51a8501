// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import "sync"

// Poster is the producer side of a notification. Post must not block.
type Poster interface {
	Post()
}

// Broadcaster fans a notification out to subscribers. The zero value
// is ready to use. Safe for concurrent use.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	posted      uint64
}

// Subscription receives a struct{} on C after every Post, coalesced.
type Subscription struct {
	C <-chan struct{}

	channel     chan struct{}
	broadcaster *Broadcaster
}

// Subscribe registers a new subscriber. Call Close when done.
func (b *Broadcaster) Subscribe() *Subscription {
	channel := make(chan struct{}, 1)
	subscription := &Subscription{
		C:           channel,
		channel:     channel,
		broadcaster: b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers == nil {
		b.subscribers = make(map[*Subscription]struct{})
	}
	b.subscribers[subscription] = struct{}{}
	return subscription
}

// Close unregisters the subscription. C is not closed.
func (s *Subscription) Close() {
	s.broadcaster.mu.Lock()
	defer s.broadcaster.mu.Unlock()
	delete(s.broadcaster.subscribers, s)
}

// Post signals every current subscriber.
func (b *Broadcaster) Post() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posted++
	for subscription := range b.subscribers {
		select {
		case subscription.channel <- struct{}{}:
		default:
		}
	}
}

// Posted returns the number of Post calls so far.
func (b *Broadcaster) Posted() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.posted
}
