// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package vara

import "sync"

// broadcaster fans out Updates to any number of subscribers. Each
// subscriber has its own bounded queue; a slow subscriber drops
// updates rather than blocking the control loop (per-observable, the
// most recent value wins — subscribers see monotonic progress, not
// every intermediate one).
type broadcaster struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*subscription]struct{})}
}

type subscription struct {
	b  *broadcaster
	ch chan Update
}

func (s *subscription) Updates() <-chan Update { return s.ch }

func (s *subscription) Close() {
	s.b.mu.Lock()
	delete(s.b.subs, s)
	s.b.mu.Unlock()
}

func (b *broadcaster) Subscribe() *subscription {
	s := &subscription{b: b, ch: make(chan Update, 16)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

func (b *broadcaster) Send(u Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		select {
		case s.ch <- u:
		default:
			// Drop the oldest pending update for this subscriber to make
			// room, so it eventually observes the most recent value.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- u:
			default:
			}
		}
	}
}

func (b *broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}
