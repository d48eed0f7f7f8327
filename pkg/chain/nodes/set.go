package nodes

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/randalmurphal/flowchain/pkg/chain"
	"github.com/randalmurphal/flowchain/pkg/chain/memory"
	"github.com/randalmurphal/flowchain/pkg/chain/template"
)

// valueExpander renders Set values. A placeholder without a default that
// resolves to nothing fails the node.
var valueExpander = template.NewExpander(template.WithMissingAction(template.MissingError))

// Set publishes its resolved parameters and its Values as outputs. String
// values are rendered as templates against the resolved parameters and the
// node's variables; a value that is exactly one placeholder keeps the type
// of what it refers to.
type Set struct {
	chain.BaseNode
	Values map[string]any `json:"values,omitempty"`
}

// NewSet creates a set node.
func NewSet(id string, values map[string]any, params ...*chain.Parameter) *Set {
	return &Set{BaseNode: chain.BaseNode{NodeID: id, Params: params}, Values: values}
}

// Kind implements chain.Node.
func (n *Set) Kind() string { return KindSet }

// Run implements chain.Node.
func (n *Set) Run(ec *chain.ExecContext) chain.Result {
	out := make(map[string]any, len(n.Values)+len(ec.Parameters()))
	for k, v := range ec.Parameters() {
		out[k] = v
	}

	lookup := func(path string) (any, bool) {
		if v, ok := ec.Parameters()[path]; ok {
			return v, true
		}
		return ec.Lookup(path)
	}
	for k, v := range n.Values {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		rendered, err := valueExpander.Value(s, lookup)
		if err != nil {
			return chain.Fail(fmt.Errorf("value %s: %w", k, err))
		}
		out[k] = rendered
	}
	return chain.OK(out)
}

// UnmarshalJSON decodes the node and normalizes its values, so whole
// numbers come back as int64.
func (n *Set) UnmarshalJSON(data []byte) error {
	type plain Set
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode((*plain)(n)); err != nil {
		return err
	}
	for k, v := range n.Values {
		n.Values[k] = memory.Normalize(v)
	}
	return nil
}
