// Package stream contains the long-lived streaming engine: the reconnect
// loop that owns a connection, the broadcast hub fanning events out to
// subscribers and the bar retention buffer.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"

	"github.com/tvstream/tvstream-go/metrics"
	"github.com/tvstream/tvstream-go/protocol"
)

// Hub broadcasts decoded events to any number of subscribers. Each
// subscriber owns an independent queue so a slow consumer cannot block fast
// ones. Publish never blocks: with a bounded queue the event is dropped for
// that subscriber only, with an unbounded queue (capacity 0) it is always
// enqueued.
type Hub struct {
	capacity int
	logger   zerolog.Logger
	metrics  *metrics.WSCollector

	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

// NewHub creates a hub. capacity bounds each subscriber queue; 0 means
// unbounded.
func NewHub(capacity int, logger zerolog.Logger, collector *metrics.WSCollector) *Hub {
	return &Hub{
		capacity: capacity,
		logger:   logger,
		metrics:  collector,
		subs:     make(map[*Subscriber]struct{}),
	}
}

// Subscriber is one registered consumer of the hub.
type Subscriber struct {
	hub *Hub
	out chan protocol.Event

	mu     sync.Mutex
	cond   *sync.Cond
	queue  *queue.Queue
	closed bool

	done     chan struct{}
	doneOnce sync.Once

	dropped atomic.Int64
}

// Subscribe registers a new consumer. The returned subscriber delivers
// events in publish order on Events(); Cancel releases it.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		hub:   h,
		out:   make(chan protocol.Event),
		queue: queue.New(),
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	h.mu.Lock()
	if h.closed {
		s.closed = true
	} else {
		h.subs[s] = struct{}{}
	}
	h.mu.Unlock()

	go s.pump()
	return s
}

// Publish enqueues an event for every subscriber. The hub lock is only held
// to snapshot the subscriber set; enqueueing happens per subscriber and
// never blocks.
func (h *Hub) Publish(ev protocol.Event) {
	h.mu.Lock()
	snapshot := make([]*Subscriber, 0, len(h.subs))
	for s := range h.subs {
		snapshot = append(snapshot, s)
	}
	h.mu.Unlock()

	for _, s := range snapshot {
		s.offer(ev, h.capacity)
	}
}

// Close closes all subscriber queues. Subscribers drain whatever was already
// queued, then their channels close. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	snapshot := make([]*Subscriber, 0, len(h.subs))
	for s := range h.subs {
		snapshot = append(snapshot, s)
	}
	h.subs = make(map[*Subscriber]struct{})
	h.mu.Unlock()

	for _, s := range snapshot {
		s.markClosed()
	}
}

func (h *Hub) remove(s *Subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Events returns the subscriber's delivery channel. It closes after Cancel,
// or after the hub closes and the backlog is drained.
func (s *Subscriber) Events() <-chan protocol.Event {
	return s.out
}

// Dropped returns how many events were discarded for this subscriber because
// its queue was full.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

// Cancel unregisters the subscriber and closes its channel. Queued events
// still undelivered are discarded. Idempotent.
func (s *Subscriber) Cancel() {
	s.hub.remove(s)
	s.markClosed()
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Subscriber) offer(ev protocol.Event, capacity int) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if capacity > 0 && s.queue.Length() >= capacity {
		s.mu.Unlock()
		s.dropped.Add(1)
		if s.hub.metrics != nil {
			s.hub.metrics.RecordDrop()
		}
		s.hub.logger.Warn().Msg("dropping event: subscriber queue full")
		return
	}
	s.queue.Add(ev)
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *Subscriber) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
}

// pump moves events from the queue to the delivery channel, preserving
// enqueue order.
func (s *Subscriber) pump() {
	for {
		s.mu.Lock()
		for s.queue.Length() == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.queue.Length() == 0 {
			s.mu.Unlock()
			close(s.out)
			return
		}
		ev := s.queue.Remove().(protocol.Event)
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			close(s.out)
			return
		}
	}
}
