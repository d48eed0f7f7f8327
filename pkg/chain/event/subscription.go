package event

import (
	"context"
	"sync"
	"sync/atomic"
)

// Subscription represents an active subscription.
type Subscription interface {
	// ID identifies the subscription in OnDrop and OnError callbacks.
	ID() string

	// Unsubscribe removes the subscription. Queued events are discarded.
	Unsubscribe()

	// Pause temporarily stops delivery. Events published while paused are
	// discarded.
	Pause()

	// Resume continues delivery after pause.
	Resume()

	// IsPaused returns true if the subscription is paused.
	IsPaused() bool

	// Stats reports delivery counters.
	Stats() Stats
}

// Stats counts what happened to the events matched by a subscription.
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

type subscription struct {
	id      string
	filter  Filter
	handler Handler
	bus     *LocalBus

	events chan Event
	done   chan struct{}
	stop   sync.Once
	paused atomic.Bool

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// run delivers queued events until the subscription or the bus closes.
func (s *subscription) run(ctx context.Context) {
	for {
		select {
		case evt := <-s.events:
			if s.paused.Load() {
				continue
			}
			s.deliver(ctx, evt)
		case <-s.done:
			return
		}
	}
}

func (s *subscription) deliver(ctx context.Context, evt Event) {
	if err := s.handler.Handle(ctx, evt); err != nil {
		s.failed.Add(1)
		if s.bus.config.OnError != nil {
			s.bus.config.OnError(evt, s.id, err)
		}
		return
	}
	s.delivered.Add(1)
}

func (s *subscription) drop(evt Event) {
	s.dropped.Add(1)
	if s.bus.config.OnDrop != nil {
		s.bus.config.OnDrop(evt, s.id)
	}
}

func (s *subscription) close() {
	s.stop.Do(func() { close(s.done) })
}

func (s *subscription) ID() string { return s.id }

func (s *subscription) Unsubscribe() {
	s.bus.remove(s.id)
	s.close()
}

func (s *subscription) Pause() { s.paused.Store(true) }

func (s *subscription) Resume() { s.paused.Store(false) }

func (s *subscription) IsPaused() bool { return s.paused.Load() }

func (s *subscription) Stats() Stats {
	return Stats{
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
		Dropped:   s.dropped.Load(),
	}
}
