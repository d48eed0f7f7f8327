package nodes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/randalmurphal/flowchain/pkg/chain"
)

// Expr evaluates one expression per output with the chain's evaluator.
// Expressions see the resolved parameters first, then the node's variables.
type Expr struct {
	chain.BaseNode
	Exprs map[string]string `json:"exprs"`
}

// NewExpr creates an expr node.
func NewExpr(id string, exprs map[string]string, params ...*chain.Parameter) *Expr {
	return &Expr{BaseNode: chain.BaseNode{NodeID: id, Params: params}, Exprs: exprs}
}

// Kind implements chain.Node.
func (n *Expr) Kind() string { return KindExpr }

// Run implements chain.Node. Outputs are evaluated in key order.
func (n *Expr) Run(ec *chain.ExecContext) chain.Result {
	out := make(map[string]any, len(n.Exprs))
	for _, k := range n.keys() {
		v, err := ec.Evaluate(n.Exprs[k], ec.Parameters())
		if err != nil {
			return chain.Fail(fmt.Errorf("output %s: %w", k, err))
		}
		out[k] = v
	}
	return chain.OK(out)
}

// Validate implements chain.Validator.
func (n *Expr) Validate() chain.ValidationResult {
	if len(n.Exprs) == 0 {
		return chain.Invalid("no expressions", nil)
	}
	var empty []string
	for _, k := range n.keys() {
		if strings.TrimSpace(n.Exprs[k]) == "" {
			empty = append(empty, k)
		}
	}
	if len(empty) > 0 {
		return chain.Invalid("empty expression for "+strings.Join(empty, ", "), map[string]any{"outputs": empty})
	}
	return chain.Valid()
}

func (n *Expr) keys() []string {
	keys := make([]string, 0, len(n.Exprs))
	for k := range n.Exprs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
