package chain

import (
	"strings"
	"time"
)

// EventType names a lifecycle event. Types form a dotted hierarchy: a
// listener registered for "node" receives "node.start", "node.end", and
// "node.error". The empty type matches everything.
type EventType string

const (
	EventAll EventType = ""

	EventChain        EventType = "chain"
	EventChainStart   EventType = "chain.start"
	EventChainEnd     EventType = "chain.end"
	EventChainStatus  EventType = "chain.status"
	EventChainSuspend EventType = "chain.suspend"
	EventChainError   EventType = "chain.error"

	EventNode      EventType = "node"
	EventNodeStart EventType = "node.start"
	EventNodeEnd   EventType = "node.end"
	EventNodeError EventType = "node.error"

	// EventOutput carries intermediate values a node publishes while running.
	EventOutput EventType = "output"
)

// Matches reports whether a listener registered for t receives events of
// type other.
func (t EventType) Matches(other EventType) bool {
	if t == EventAll || t == other {
		return true
	}
	return strings.HasPrefix(string(other), string(t)+".")
}

// Event describes something that happened in a chain.
type Event struct {
	Type EventType
	// ChainID is the chain where the event originated. Events re-fired on a
	// parent keep the child's ID.
	ChainID string
	// NodeID is set for node events, suspensions, and outputs.
	NodeID string
	// Status is the new status for chain.status and chain.end.
	Status Status
	// Before is the previous status for chain.status.
	Before Status
	// Outputs are the node outputs for node.end.
	Outputs map[string]any
	// Value is the payload of an output event.
	Value any
	// Suspension is set for chain.suspend.
	Suspension *Suspension
	// Err is set for node.error and chain.error.
	Err  error
	Time time.Time
}

// Listener receives events. c is the chain the listener was registered on.
type Listener interface {
	OnEvent(evt Event, c *Chain)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(evt Event, c *Chain)

// OnEvent implements Listener.
func (f ListenerFunc) OnEvent(evt Event, c *Chain) { f(evt, c) }

type subscription struct {
	id       int
	typ      EventType
	listener Listener
}

// On registers l for events matching t and returns a function that removes
// the registration.
func (c *Chain) On(t EventType, l Listener) (unsubscribe func()) {
	c.lmu.Lock()
	defer c.lmu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscription{id: id, typ: t, listener: l})
	return func() {
		c.lmu.Lock()
		defer c.lmu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// OnFunc is On for a plain function.
func (c *Chain) OnFunc(t EventType, fn func(evt Event, c *Chain)) (unsubscribe func()) {
	return c.On(t, ListenerFunc(fn))
}

// emit delivers evt to matching listeners of c and then of every ancestor.
// Listeners run synchronously on the emitting goroutine.
func (c *Chain) emit(evt Event) {
	if evt.ChainID == "" {
		evt.ChainID = c.ID()
	}
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	for cur := c; cur != nil; cur = cur.Parent() {
		cur.lmu.RLock()
		subs := append([]subscription(nil), cur.subs...)
		cur.lmu.RUnlock()
		for _, s := range subs {
			if s.typ.Matches(evt.Type) {
				s.listener.OnEvent(evt, cur)
			}
		}
	}
}
