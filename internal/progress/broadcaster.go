// Package progress fans job progress events out to HTTP subscribers. State
// is in-memory and per-job; the engine prunes it when the job is reaped.
package progress

import (
	"sync"

	"github.com/nmoreras/trackfetch/internal/domain"
)

// DefaultBufferSize bounds each subscriber channel. A subscriber that falls
// further behind loses its oldest events, never the publisher's time.
const DefaultBufferSize = 64

type subscriber struct {
	ch chan domain.ProgressEvent
}

type jobStream struct {
	last   *domain.ProgressEvent
	subs   map[*subscriber]struct{}
	closed bool
}

// Broadcaster is a per-job publish/subscribe hub. Publish never blocks;
// late subscribers get the last known event replayed first.
type Broadcaster struct {
	mu      sync.Mutex
	jobs    map[string]*jobStream
	bufSize int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		jobs:    make(map[string]*jobStream),
		bufSize: DefaultBufferSize,
	}
}

// Publish delivers the event to every subscriber of its job. When the
// event is terminal all subscriber channels are closed after delivery; the
// stream keeps the terminal event for replay until the job is pruned.
func (b *Broadcaster) Publish(ev domain.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream := b.jobs[ev.JobID]
	if stream == nil {
		stream = &jobStream{subs: make(map[*subscriber]struct{})}
		b.jobs[ev.JobID] = stream
	}
	if stream.closed {
		return
	}

	evCopy := ev
	stream.last = &evCopy

	for sub := range stream.subs {
		b.send(sub, ev)
	}

	if ev.Terminal {
		stream.closed = true
		for sub := range stream.subs {
			close(sub.ch)
		}
		stream.subs = make(map[*subscriber]struct{})
	}
}

// send enqueues without blocking, dropping the subscriber's oldest buffered
// event when the channel is full.
func (b *Broadcaster) send(sub *subscriber, ev domain.ProgressEvent) {
	for {
		select {
		case sub.ch <- ev:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

// Subscribe attaches to the job's event stream. The last known event is
// replayed as the first receive. The returned cancel func detaches the
// subscriber; the channel is closed on cancel or on the terminal event.
func (b *Broadcaster) Subscribe(jobID string) (<-chan domain.ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{ch: make(chan domain.ProgressEvent, b.bufSize)}

	stream := b.jobs[jobID]
	if stream == nil {
		stream = &jobStream{subs: make(map[*subscriber]struct{})}
		b.jobs[jobID] = stream
	}

	if stream.last != nil {
		sub.ch <- *stream.last
	}

	if stream.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}

	stream.subs[sub] = struct{}{}
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := stream.subs[sub]; ok {
			delete(stream.subs, sub)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}

// Last returns the most recent event published for the job, if any.
func (b *Broadcaster) Last(jobID string) (domain.ProgressEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream := b.jobs[jobID]
	if stream == nil || stream.last == nil {
		return domain.ProgressEvent{}, false
	}
	return *stream.last, true
}

// Prune drops all state for the job. Live subscribers are closed.
func (b *Broadcaster) Prune(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream := b.jobs[jobID]
	if stream == nil {
		return
	}
	for sub := range stream.subs {
		close(sub.ch)
	}
	delete(b.jobs, jobID)
}
