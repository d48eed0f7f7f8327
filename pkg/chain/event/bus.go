package event

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Bus distributes chain events to subscribers.
type Bus interface {
	// Publish queues evt for every subscription whose filter matches it.
	Publish(ctx context.Context, evt Event) error

	// Subscribe registers handler for the events filter selects.
	Subscribe(filter Filter, handler Handler) (Subscription, error)

	// SubscribeAll registers handler for every event.
	SubscribeAll(handler Handler) (Subscription, error)

	// Close stops delivery and removes all subscriptions.
	Close() error
}

// BusConfig configures a LocalBus.
type BusConfig struct {
	// BufferSize is the queue length per subscription. Default: 256
	BufferSize int

	// MaxSubscribers limits live subscriptions. Default: 0 (unlimited)
	MaxSubscribers int

	// NonBlocking makes Publish drop events for subscriptions whose queue
	// is full instead of waiting. Default: false
	NonBlocking bool

	// DeduplicateTTL drops events whose ID was published within the TTL.
	// Default: 0 (disabled)
	DeduplicateTTL time.Duration

	// OnDrop is called for each event a full queue rejects.
	OnDrop func(evt Event, subscriptionID string)

	// OnError is called when a handler returns an error.
	OnError func(evt Event, subscriptionID string, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// LocalBus is an in-process Bus. Each subscription has its own queue and
// delivery goroutine, so a slow handler only delays its own events.
type LocalBus struct {
	config BusConfig

	mu   sync.RWMutex
	subs map[string]*subscription

	seenMu sync.Mutex
	seen   map[string]time.Time

	nextID atomic.Int64
	closed atomic.Bool

	// ctx is passed to handlers and canceled by Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBus creates a LocalBus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &LocalBus{
		config: config,
		subs:   make(map[string]*subscription),
		ctx:    ctx,
		cancel: cancel,
	}

	if config.DeduplicateTTL > 0 {
		b.seen = make(map[string]time.Time)
		go b.expireSeen()
	}
	return b
}

// Publish queues evt for matching subscriptions. In blocking mode it waits
// for queue space until ctx is done or the bus closes.
func (b *LocalBus) Publish(ctx context.Context, evt Event) error {
	if b.closed.Load() {
		return &PublishError{EventID: evt.ID, Type: evt.Type, Err: ErrBusClosed}
	}
	if b.seen != nil && !b.firstSeen(evt.ID) {
		return nil
	}

	for _, sub := range b.matching(evt) {
		if sub.paused.Load() {
			continue
		}

		if b.config.NonBlocking {
			select {
			case sub.events <- evt:
			default:
				sub.drop(evt)
			}
			continue
		}

		select {
		case sub.events <- evt:
		case <-sub.done:
		case <-ctx.Done():
			return &PublishError{EventID: evt.ID, Type: evt.Type, Err: ctx.Err()}
		case <-b.ctx.Done():
			return &PublishError{EventID: evt.ID, Type: evt.Type, Err: ErrBusClosed}
		}
	}
	return nil
}

func (b *LocalBus) matching(evt Event) []*subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter.Matches(evt) {
			out = append(out, sub)
		}
	}
	return out
}

// Subscribe registers handler for the events filter selects.
func (b *LocalBus) Subscribe(filter Filter, handler Handler) (Subscription, error) {
	if b.closed.Load() {
		return nil, ErrBusClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.config.MaxSubscribers > 0 && len(b.subs) >= b.config.MaxSubscribers {
		return nil, ErrTooManySubscribers
	}

	sub := &subscription{
		id:      strconv.FormatInt(b.nextID.Add(1), 10),
		filter:  filter,
		handler: handler,
		bus:     b,
		events:  make(chan Event, b.config.BufferSize),
		done:    make(chan struct{}),
	}
	b.subs[sub.id] = sub

	go sub.run(b.ctx)
	return sub, nil
}

// SubscribeAll registers handler for every event.
func (b *LocalBus) SubscribeAll(handler Handler) (Subscription, error) {
	return b.Subscribe(Filter{}, handler)
}

// Close shuts down the bus. Events still queued are discarded. Close is
// idempotent.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		sub.close()
		delete(b.subs, id)
	}
	return nil
}

func (b *LocalBus) remove(id string) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// firstSeen records id and reports whether it is new.
func (b *LocalBus) firstSeen(id string) bool {
	b.seenMu.Lock()
	defer b.seenMu.Unlock()

	if _, ok := b.seen[id]; ok {
		return false
	}
	b.seen[id] = time.Now()
	return true
}

func (b *LocalBus) expireSeen() {
	ticker := time.NewTicker(b.config.DeduplicateTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-b.config.DeduplicateTTL)
			b.seenMu.Lock()
			for id, ts := range b.seen {
				if ts.Before(cutoff) {
					delete(b.seen, id)
				}
			}
			b.seenMu.Unlock()
		case <-b.ctx.Done():
			return
		}
	}
}
