package chain

import (
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/flowchain/pkg/chain/expr"
)

// ConditionType identifies how a Condition is evaluated.
type ConditionType string

const (
	// ConditionExpr evaluates an expression with the chain's Evaluator.
	ConditionExpr ConditionType = "expr"

	// ConditionUpstream holds until every inward edge of the node has fired.
	ConditionUpstream ConditionType = "upstream"

	// ConditionFunc calls a Go function. It cannot be serialized.
	ConditionFunc ConditionType = "func"
)

// Condition gates an edge or a node.
//
// A failing node condition normally skips the node body and lets the branch
// continue through the node's outward edges. When Halt is set the branch ends
// at the node instead. Upstream conditions always halt, which makes them a
// join: every branch arriving early records its trigger and stops, and the
// last arrival runs the node.
type Condition struct {
	Type ConditionType `json:"type"`
	Expr string        `json:"expr,omitempty"`
	Halt bool          `json:"halt,omitempty"`

	fn func(cc CheckContext) (bool, error)
}

// When returns an expression condition.
func When(expression string) *Condition {
	return &Condition{Type: ConditionExpr, Expr: expression}
}

// WaitForAll returns a condition that holds once every inward edge of the
// gated node has fired. The arrival that completes the set runs the node,
// once; the next run needs every edge to fire again.
func WaitForAll() *Condition {
	return &Condition{Type: ConditionUpstream}
}

// Check returns a condition backed by fn. Chains holding one cannot be
// snapshotted.
func Check(fn func(cc CheckContext) (bool, error)) *Condition {
	return &Condition{Type: ConditionFunc, fn: fn}
}

// Halting returns c with Halt set.
func (c *Condition) Halting() *Condition {
	c.Halt = true
	return c
}

// Halts reports whether a failed check ends the branch.
func (c *Condition) Halts() bool {
	return c.Halt || c.Type == ConditionUpstream
}

// Check evaluates the condition.
func (c *Condition) Check(cc CheckContext) (bool, error) {
	switch c.Type {
	case ConditionExpr:
		v, err := cc.Chain.evaluator().Evaluate(c.Expr, cc.Vars)
		if err != nil {
			return false, err
		}
		return expr.IsTruthy(v), nil
	case ConditionUpstream:
		if cc.NodeContext == nil || cc.Node == nil {
			return false, nil
		}
		if cc.arrival != nil {
			return *cc.arrival, nil
		}
		return cc.NodeContext.IsUpstreamFullyExecuted(cc.Chain.InwardEdges(cc.Node.ID())), nil
	case ConditionFunc:
		if c.fn == nil {
			return false, fmt.Errorf("condition function is nil")
		}
		return c.fn(cc)
	default:
		return false, fmt.Errorf("unknown condition type %q", c.Type)
	}
}

type conditionJSON Condition

// MarshalJSON refuses function conditions.
func (c *Condition) MarshalJSON() ([]byte, error) {
	if c.Type == ConditionFunc {
		return nil, fmt.Errorf("condition: %w", ErrNotSerializable)
	}
	return json.Marshal((*conditionJSON)(c))
}

// UnmarshalJSON accepts the object form or a bare string, which is read as
// an expression.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Condition{Type: ConditionExpr, Expr: s}
		return nil
	}
	var raw conditionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		raw.Type = ConditionExpr
	}
	*c = Condition(raw)
	return nil
}

// CheckContext is what a condition sees when it is evaluated.
type CheckContext struct {
	// Chain owning the edge or node.
	Chain *Chain
	// Node is the gated node, or the target of the gated edge.
	Node Node
	// Edge is the gated edge; nil for node conditions.
	Edge *Edge
	// NodeContext of Node.
	NodeContext *NodeContext
	// Vars resolves variables for expression conditions.
	Vars expr.Lookup

	// arrival is set by the scheduler to whether the current trigger
	// completed the upstream join.
	arrival *bool
}
