// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
)

type Topic string
type Event = any

// Bus implements an in-memory pub/sub where the most recent event
// is the only one kept per subscriber. Publish never blocks, so the
// control loop can emit diagnostics without waiting on slow consumers.
type Bus struct {
	mu        sync.RWMutex
	subs      map[Topic]map[uint64]chan Event
	last      map[Topic]Event
	idCounter atomic.Uint64
	closed    atomic.Bool

	eventCount   atomic.Int64
	sendCount    atomic.Int64
	dropCount    atomic.Int64
	replaceCount atomic.Int64
}

// Stats is a snapshot of the bus counters.
type Stats struct {
	Events   int64 `json:"events"`
	Sent     int64 `json:"sent"`
	Replaced int64 `json:"replaced"`
	Dropped  int64 `json:"dropped"`
}

// New returns an initialized Bus.
func New() *Bus {
	return &Bus{
		subs: make(map[Topic]map[uint64]chan Event),
		last: make(map[Topic]Event),
	}
}

func (b *Bus) Stats() Stats {
	return Stats{
		Events:   b.eventCount.Load(),
		Sent:     b.sendCount.Load(),
		Replaced: b.replaceCount.Load(),
		Dropped:  b.dropCount.Load(),
	}
}

// Publish stores ev as the last event for topic and hands it to every
// subscriber, replacing any value the subscriber has not consumed yet.
func (b *Bus) Publish(topic Topic, ev Event) {
	if b.closed.Load() {
		return
	}
	b.eventCount.Add(1)

	b.mu.Lock()
	if b.last == nil {
		b.mu.Unlock()
		return
	}
	b.last[topic] = ev
	var chans []chan Event
	if m, ok := b.subs[topic]; ok {
		chans = make([]chan Event, 0, len(m))
		for _, ch := range m {
			chans = append(chans, ch)
		}
	}
	b.mu.Unlock()

	for _, ch := range chans {
		b.publishReplace(ch, ev)
	}
}

// publishReplace delivers ev to a size-1 channel, evicting the stale value.
func (b *Bus) publishReplace(ch chan Event, ev Event) {
	defer func() {
		// channel closed by a concurrent unsubscribe
		if recover() != nil {
			b.dropCount.Add(1)
		}
	}()

	select {
	case ch <- ev:
		b.sendCount.Add(1)
		return
	default:
	}

	select {
	case <-ch:
		b.replaceCount.Add(1)
	default:
	}
	select {
	case ch <- ev:
		b.sendCount.Add(1)
	default:
		b.dropCount.Add(1)
	}
}

// Subscribe subscribes to a topic and returns a receive-only channel and an unsubscribe func.
// If withLast is true the last stored event is delivered immediately.
// The channel is closed when ctx is canceled or unsubscribe is called.
func (b *Bus) Subscribe(ctx context.Context, topic Topic, withLast bool) (<-chan Event, func()) {
	if b.closed.Load() {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan Event, 1)
	id := b.idCounter.Add(1)

	b.mu.Lock()
	if b.subs == nil {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]chan Event)
	}
	b.subs[topic][id] = ch
	last, hasLast := b.last[topic]
	b.mu.Unlock()

	if withLast && hasLast {
		b.publishReplace(ch, last)
	}

	done := make(chan struct{})
	var once sync.Once
	unsub := func() { once.Do(func() { close(done) }) }

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		b.mu.Lock()
		if m, ok := b.subs[topic]; ok {
			if _, mine := m[id]; mine {
				delete(m, id)
				close(ch)
			}
			if len(m) == 0 {
				delete(b.subs, topic)
			}
		}
		b.mu.Unlock()
	}()

	return ch, unsub
}

// GetLast returns the last published event for a topic (if any).
func (b *Bus) GetLast(topic Topic) (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.last[topic]
	return v, ok
}

// Close closes the bus and all subscriber channels. After Close, Publish is a no-op and Subscribe
// returns a closed channel.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.mu.Lock()
	for _, m := range b.subs {
		for _, ch := range m {
			close(ch)
		}
	}
	b.subs = nil
	b.last = nil
	b.mu.Unlock()
}
