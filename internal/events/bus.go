// Package events implements the engine's single multi-producer,
// multi-subscriber broadcast bus. Every subscriber has a bounded delivery
// buffer; a slow subscriber never blocks the dispatch loop. On overflow the
// buffer behaves as a sliding window over the most recent events — the
// oldest queued event is evicted to make room for the new one — and the
// subscriber is told what it missed via an events-dropped notice.
package events

import "sync"

const defaultBufSize = 256

// subscriber wraps a delivery channel with its own drop counter, so an
// events-dropped notice can be synthesized and delivered to exactly the
// subscriber that fell behind.
type subscriber struct {
	ch      chan Event
	dropped int
}

// Bus is a channel-based pub-sub broadcaster. Publish never blocks: a full
// subscriber channel has its oldest event evicted to make room, incrementing
// that subscriber's drop counter, surfaced as a KindEventsDropped event once
// there is room to deliver it.
type Bus struct {
	mu     sync.Mutex
	subs   []*subscriber
	closed bool
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe returns a read-only channel receiving every event published
// after this call. bufSize defaults to 256 when <= 0.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan Event, bufSize)}
	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

// Publish broadcasts an event to every subscriber. Lock-free on the sender
// side except for the brief scan of the subscriber list; no subscriber's
// delivery buffer is ever waited on.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		b.deliver(sub, evt)
	}
}

// deliver sends evt to sub, first flushing a pending events-dropped notice
// if room allows, then evicting the oldest queued event to make room for evt
// if the buffer is full — the window slides forward rather than refusing the
// newest event. Caller holds b.mu.
func (b *Bus) deliver(sub *subscriber, evt Event) {
	if sub.dropped > 0 {
		notice := Event{Kind: KindEventsDropped, Timestamp: evt.Timestamp, Dropped: sub.dropped}
		select {
		case sub.ch <- notice:
			sub.dropped = 0
		default:
		}
	}

	for {
		select {
		case sub.ch <- evt:
			return
		default:
			select {
			case <-sub.ch:
				sub.dropped++
			default:
				// The subscriber goroutine drained a slot between our failed
				// send and this receive; retry the send.
			}
		}
	}
}

// Close shuts the bus down, closing every subscriber channel. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.ch)
	}
}
