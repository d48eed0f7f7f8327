package chain

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/flowchain/pkg/chain/expr"
	"github.com/randalmurphal/flowchain/pkg/chain/memory"
	"github.com/randalmurphal/flowchain/pkg/chain/observability"
)

// ExecContext is what a node sees while it runs.
// It extends context.Context with the owning chain, the node's trigger
// metadata, and a variable scope in which the node's private memory shadows
// the chain's store.
//
// The scheduler creates one ExecContext per node execution.
type ExecContext struct {
	context.Context

	chain   *Chain
	node    Node
	nodeCtx *NodeContext
	prevID  string
	edgeID  string
	logger  *slog.Logger
	scope   *memory.Scope
	params  map[string]any
}

func newExecContext(ctx context.Context, c *Chain, n Node, prevID, edgeID string) *ExecContext {
	return &ExecContext{
		Context: ctx,
		chain:   c,
		node:    n,
		nodeCtx: c.NodeContext(n.ID()),
		prevID:  prevID,
		edgeID:  edgeID,
		logger:  observability.EnrichLogger(c.cfg.logger, c.ID(), n.ID()),
		scope:   memory.NewScope(n.base().Memory(), c.store),
	}
}

// Chain returns the chain running the node.
func (ec *ExecContext) Chain() *Chain { return ec.chain }

// Node returns the running node.
func (ec *ExecContext) Node() Node { return ec.node }

// NodeContext returns the trigger and execution counters of the node.
func (ec *ExecContext) NodeContext() *NodeContext { return ec.nodeCtx }

// EdgeID returns the edge that triggered this execution; empty for start
// nodes.
func (ec *ExecContext) EdgeID() string { return ec.edgeID }

// PrevNodeID returns the node that triggered this execution; empty for start
// nodes.
func (ec *ExecContext) PrevNodeID() string { return ec.prevID }

// Logger returns the chain logger enriched with chain and node IDs.
func (ec *ExecContext) Logger() *slog.Logger { return ec.logger }

// Get resolves a variable, checking node memory before the chain store.
func (ec *ExecContext) Get(key string) any {
	return ec.scope.Get(key)
}

// Lookup is Get with a found flag.
func (ec *ExecContext) Lookup(key string) (any, bool) {
	return ec.scope.Lookup(key)
}

// SetLocal writes a node-private variable.
func (ec *ExecContext) SetLocal(key string, value any) {
	ec.scope.Set(key, value)
}

// Parameters returns the node's declared parameters as resolved before Run
// was called.
func (ec *ExecContext) Parameters() map[string]any {
	return ec.params
}

// Param returns one resolved parameter.
func (ec *ExecContext) Param(name string) any {
	return ec.params[name]
}

// Resolve resolves an ad-hoc parameter list in this context. A nil
// Suspension and nil error mean every parameter resolved.
func (ec *ExecContext) Resolve(params []*Parameter) (map[string]any, *Suspension, error) {
	return resolveParameters(ec.node.ID(), params, ec.Lookup)
}

// Output publishes an intermediate value as an output event.
func (ec *ExecContext) Output(value any) {
	ec.chain.Output(ec.node.ID(), value)
}

// Evaluate evaluates an expression with the chain's evaluator. extra shadows
// the node scope.
func (ec *ExecContext) Evaluate(expression string, extra map[string]any) (any, error) {
	return ec.chain.evaluator().Evaluate(expression, expr.Chain(expr.Vars(extra), ec.Lookup))
}
