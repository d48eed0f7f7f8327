package chain

import (
	"fmt"
	"sync"

	"github.com/randalmurphal/flowchain/pkg/chain/memory"
)

// Node is a vertex of a chain.
//
// Implementations embed BaseNode, which carries the settings every kind
// shares (async flag, condition, parameters, loop) and the runtime state the
// scheduler keeps per node. Run does the kind-specific work and reports the
// outcome as a Result; it is never expected to panic.
type Node interface {
	ID() string
	Kind() string
	Run(ec *ExecContext) Result
	base() *BaseNode
}

// BaseNode holds the fields common to every node kind.
type BaseNode struct {
	NodeID      string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	IsAsync     bool         `json:"async,omitempty"`
	Gate        *Condition   `json:"condition,omitempty"`
	Params      []*Parameter `json:"parameters,omitempty"`
	LoopSpec    *Loop        `json:"loop,omitempty"`
	CostExpr    string       `json:"cost_expr,omitempty"`

	mu     sync.Mutex
	status Status
	scope  *memory.Store
}

// ID returns the node ID.
func (b *BaseNode) ID() string { return b.NodeID }

// Async reports whether the node runs on the worker pool.
func (b *BaseNode) Async() bool { return b.IsAsync }

// Condition returns the node gate, or nil.
func (b *BaseNode) Condition() *Condition { return b.Gate }

// Parameters returns the declared parameters.
func (b *BaseNode) Parameters() []*Parameter { return b.Params }

// Loop returns the loop settings, or nil.
func (b *BaseNode) Loop() *Loop { return b.LoopSpec }

// Status returns the node's lifecycle status.
func (b *BaseNode) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status == "" {
		return StatusReady
	}
	return b.status
}

func (b *BaseNode) setStatus(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = s
}

// Memory returns the node's private variable scope. Values stored here
// shadow chain variables for this node only.
func (b *BaseNode) Memory() *memory.Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scope == nil {
		b.scope = memory.New()
	}
	return b.scope
}

func (b *BaseNode) memorySnapshot() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scope == nil {
		return nil
	}
	return b.scope.All()
}

func (b *BaseNode) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = StatusReady
	b.scope = nil
}

func (b *BaseNode) base() *BaseNode { return b }

// Loop configures a node that re-runs after completing.
type Loop struct {
	Enabled bool `json:"enabled"`
	// IntervalMs pauses between iterations.
	IntervalMs int64 `json:"interval_ms,omitempty"`
	// BreakCondition ends the loop once it holds. It sees the node's latest
	// outputs unqualified, plus the chain variables.
	BreakCondition *Condition `json:"break_condition,omitempty"`
	// MaxCount bounds the iterations; zero leaves only the chain's loop limit.
	MaxCount int `json:"max_count,omitempty"`
}

// Outcome classifies a Result.
type Outcome int

const (
	Completed Outcome = iota
	Suspended
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Suspended:
		return "suspended"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what a node's Run returns.
type Result struct {
	Outcome    Outcome
	Outputs    map[string]any
	Suspension *Suspension
	Err        error
}

// OK reports successful completion with outputs.
func OK(outputs map[string]any) Result {
	return Result{Outcome: Completed, Outputs: outputs}
}

// Suspend reports that the node needs external input before it can run.
func Suspend(s *Suspension) Result {
	return Result{Outcome: Suspended, Suspension: s}
}

// Fail reports a node failure.
func Fail(err error) Result {
	return Result{Outcome: Failed, Err: err}
}

// Func is the body of a FuncNode.
type Func func(ec *ExecContext) Result

// FuncNode runs a Go function. It is the quickest way to add behavior to a
// chain but cannot be snapshotted.
type FuncNode struct {
	BaseNode
	Fn Func `json:"-"`
}

// NewFuncNode creates a FuncNode.
func NewFuncNode(id string, fn Func) *FuncNode {
	return &FuncNode{BaseNode: BaseNode{NodeID: id}, Fn: fn}
}

// Kind implements Node.
func (n *FuncNode) Kind() string { return "func" }

// Run implements Node.
func (n *FuncNode) Run(ec *ExecContext) Result {
	if n.Fn == nil {
		return OK(nil)
	}
	return n.Fn(ec)
}

// MarshalJSON refuses to serialize Go behavior.
func (n *FuncNode) MarshalJSON() ([]byte, error) {
	return nil, fmt.Errorf("func node %s: %w", n.NodeID, ErrNotSerializable)
}
