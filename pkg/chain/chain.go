package chain

import (
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/randalmurphal/flowchain/pkg/chain/memory"
	"github.com/randalmurphal/flowchain/pkg/chain/registry"
)

// Chain is a directed graph of nodes sharing one variable store.
//
// Building (AddNode, AddEdge, Connect) is not safe to interleave with a run.
// Everything else is safe for concurrent use, and listeners may be added or
// removed at any time.
//
// A Chain is itself a Node, so chains nest: a child chain runs as one node of
// its parent, its events re-fire on the parent, and a suspension inside the
// child suspends the parent too.
type Chain struct {
	BaseNode

	nodes     []Node
	nodeIndex map[string]Node
	edges     []*Edge
	inward    map[string][]*Edge
	outward   map[string][]*Edge
	parent    *Chain

	store    *memory.Store
	contexts *registry.Registry[string, *NodeContext]
	results  *registry.Registry[string, map[string]any]

	// smu guards the run state below.
	smu      sync.Mutex
	status   Status
	message  string
	failure  error
	pending  []string
	awaiting []*Parameter
	outKeys  map[string]struct{}
	cost     float64

	lmu     sync.RWMutex
	subs    []subscription
	nextSub int

	cfg config
}

// New creates an empty chain.
func New(opts ...Option) *Chain {
	c := &Chain{
		nodeIndex: make(map[string]Node),
		inward:    make(map[string][]*Edge),
		outward:   make(map[string][]*Edge),
		store:     memory.New(),
		contexts:  registry.New[string, *NodeContext](),
		results:   registry.New[string, map[string]any](),
		status:    StatusReady,
		outKeys:   make(map[string]struct{}),
		cfg:       defaultConfig(),
	}
	c.NodeID = uuid.NewString()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddNode appends nodes to the chain. A nested chain gets c as its parent.
func (c *Chain) AddNode(nodes ...Node) error {
	for _, n := range nodes {
		id := n.ID()
		if id == "" {
			return ErrEmptyID
		}
		if _, ok := c.nodeIndex[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
		}
		if child, ok := n.(*Chain); ok {
			child.parent = c
		}
		c.nodes = append(c.nodes, n)
		c.nodeIndex[id] = n
	}
	return nil
}

// MustAddNode is AddNode that panics on error. Use when building chains in code.
func (c *Chain) MustAddNode(nodes ...Node) *Chain {
	if err := c.AddNode(nodes...); err != nil {
		panic(err)
	}
	return c
}

// AddEdge appends e. An empty edge ID is replaced with a random one.
func (c *Chain) AddEdge(e *Edge) error {
	if _, ok := c.nodeIndex[e.Source]; !ok {
		return fmt.Errorf("edge source %q: %w", e.Source, ErrNodeNotFound)
	}
	if _, ok := c.nodeIndex[e.Target]; !ok {
		return fmt.Errorf("edge target %q: %w", e.Target, ErrNodeNotFound)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	c.edges = append(c.edges, e)
	c.outward[e.Source] = append(c.outward[e.Source], e)
	c.inward[e.Target] = append(c.inward[e.Target], e)
	return nil
}

// Connect adds an edge from source to target with an optional condition.
func (c *Chain) Connect(source, target string, cond ...*Condition) error {
	e := &Edge{Source: source, Target: target}
	if len(cond) > 0 {
		e.Condition = cond[0]
	}
	return c.AddEdge(e)
}

// MustConnect is Connect that panics on error.
func (c *Chain) MustConnect(source, target string, cond ...*Condition) *Chain {
	if err := c.Connect(source, target, cond...); err != nil {
		panic(err)
	}
	return c
}

// Node returns the node with the given ID.
func (c *Chain) Node(id string) (Node, bool) {
	n, ok := c.nodeIndex[id]
	return n, ok
}

// Nodes returns the nodes in insertion order.
func (c *Chain) Nodes() []Node {
	return append([]Node(nil), c.nodes...)
}

// Edges returns the edges in insertion order.
func (c *Chain) Edges() []*Edge {
	return append([]*Edge(nil), c.edges...)
}

// InwardEdges returns the edges targeting id.
func (c *Chain) InwardEdges(id string) []*Edge {
	return c.inward[id]
}

// OutwardEdges returns the edges leaving id.
func (c *Chain) OutwardEdges(id string) []*Edge {
	return c.outward[id]
}

// Parent returns the enclosing chain, or nil.
func (c *Chain) Parent() *Chain {
	return c.parent
}

// Children returns the nested chains among c's nodes.
func (c *Chain) Children() []*Chain {
	var out []*Chain
	for _, n := range c.nodes {
		if child, ok := n.(*Chain); ok {
			out = append(out, child)
		}
	}
	return out
}

// Memory returns the chain's variable store.
func (c *Chain) Memory() *memory.Store {
	return c.store
}

// Get resolves a variable from the chain's store.
func (c *Chain) Get(key string) any {
	return c.store.Get(key)
}

// Set writes a chain variable.
func (c *Chain) Set(key string, value any) {
	c.store.Set(key, value)
}

// Status returns the chain's status.
func (c *Chain) Status() Status {
	c.smu.Lock()
	defer c.smu.Unlock()
	return c.status
}

// Message returns the message attached by StopNormal or StopError.
func (c *Chain) Message() string {
	c.smu.Lock()
	defer c.smu.Unlock()
	return c.message
}

// Err returns the failure that ended the last run, or nil.
func (c *Chain) Err() error {
	c.smu.Lock()
	defer c.smu.Unlock()
	return c.failure
}

// Result returns a copy of the variable store, which holds the caller's
// inputs and every node output under "{nodeID}.{key}".
func (c *Chain) Result() map[string]any {
	return c.store.All()
}

// NodeResult returns the latest outputs of a node, unqualified.
func (c *Chain) NodeResult(id string) map[string]any {
	out, _ := c.results.Get(id)
	return out
}

// NodeContext returns the context of a node, creating it if needed.
func (c *Chain) NodeContext(id string) *NodeContext {
	return c.contexts.GetOrCreate(id, newNodeContext)
}

// Pending returns the IDs of suspended nodes in suspension order.
func (c *Chain) Pending() []string {
	c.smu.Lock()
	defer c.smu.Unlock()
	return append([]string(nil), c.pending...)
}

// AwaitingParameters returns the parameters suspended nodes wait for.
func (c *Chain) AwaitingParameters() []*Parameter {
	c.smu.Lock()
	defer c.smu.Unlock()
	out := make([]*Parameter, len(c.awaiting))
	for i, p := range c.awaiting {
		out[i] = p.Clone()
	}
	return out
}

// ComputeCost returns the sum of the cost expressions of executed nodes.
func (c *Chain) ComputeCost() float64 {
	c.smu.Lock()
	defer c.smu.Unlock()
	return c.cost
}

// Output publishes an intermediate value for nodeID as an output event.
func (c *Chain) Output(nodeID string, value any) {
	c.emit(Event{Type: EventOutput, NodeID: nodeID, Value: value})
}

// SetMessage attaches a message to the chain, such as the prompt shown while
// it waits for input.
func (c *Chain) SetMessage(message string) {
	c.smu.Lock()
	c.message = message
	c.smu.Unlock()
}

// StopNormal ends the chain successfully. Branches still in flight finish
// their current node and stop extending.
func (c *Chain) StopNormal(message string) {
	c.smu.Lock()
	c.message = message
	c.smu.Unlock()
	c.setStatus(StatusFinishedNormal)
}

// StopError ends the chain as failed with message.
func (c *Chain) StopError(message string) {
	c.smu.Lock()
	c.message = message
	if c.failure == nil {
		c.failure = fmt.Errorf("%w: %s", ErrStopped, message)
	}
	c.smu.Unlock()
	c.setStatus(StatusFinishedAbnormal)
}

// Reset clears run state so the chain can execute again from scratch.
// Structure and listeners are kept.
func (c *Chain) Reset() {
	c.store.Clear()
	c.contexts.Clear()
	c.results.Clear()
	for _, n := range c.nodes {
		n.base().reset()
		if child, ok := n.(*Chain); ok {
			child.Reset()
		}
	}

	c.smu.Lock()
	c.status = StatusReady
	c.message = ""
	c.failure = nil
	c.pending = nil
	c.awaiting = nil
	c.outKeys = make(map[string]struct{})
	c.cost = 0
	c.smu.Unlock()
}

// setStatus changes the status and emits chain.status when it differs.
func (c *Chain) setStatus(s Status) {
	c.smu.Lock()
	before := c.status
	c.status = s
	c.smu.Unlock()
	if before != s {
		c.emit(Event{Type: EventChainStatus, Status: s, Before: before})
	}
}

// fail records err as the chain's failure (first one wins) and moves the
// chain to ERROR unless it already stopped.
func (c *Chain) fail(err error) {
	c.smu.Lock()
	if c.failure == nil {
		c.failure = err
	}
	before := c.status
	if !before.Finished() {
		c.status = StatusError
	}
	after := c.status
	c.smu.Unlock()
	if before != after {
		c.emit(Event{Type: EventChainStatus, Status: after, Before: before})
	}
	c.emit(Event{Type: EventChainError, Err: err})
}

// halted reports whether branches must stop extending.
func (c *Chain) halted() bool {
	c.smu.Lock()
	defer c.smu.Unlock()
	return c.status.halted()
}

func (c *Chain) addCost(v float64) {
	if math.IsNaN(v) {
		return
	}
	c.smu.Lock()
	c.cost += v
	c.smu.Unlock()
}

func (c *Chain) evaluator() Evaluator {
	return c.cfg.eval
}
