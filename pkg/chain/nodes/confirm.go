package nodes

import (
	"strings"

	"github.com/google/uuid"

	"github.com/randalmurphal/flowchain/pkg/chain"
	"github.com/randalmurphal/flowchain/pkg/chain/template"
)

// ConfirmKey is the output holding the user's "yes" or "no".
const ConfirmKey = "confirm"

// tokenSep joins a parameter name and the node token.
const tokenSep = "__"

// Confirm suspends the chain until a user confirms. Besides the yes/no
// answer it asks for every declared choice. All of them are INPUT
// parameters named "{name}__{token}" so two confirm nodes never collide;
// the token is stripped from the outputs.
//
// While suspended, a choice without selection data gets it from the
// variable its Ref points at, so a UI can show the options.
type Confirm struct {
	chain.BaseNode
	Token   string             `json:"token,omitempty"`
	Message string             `json:"message,omitempty"`
	Choices []*chain.Parameter `json:"choices,omitempty"`
}

// NewConfirm creates a confirm node with a fresh token.
func NewConfirm(id, message string, choices ...*chain.Parameter) *Confirm {
	return &Confirm{
		BaseNode: chain.BaseNode{NodeID: id},
		Token:    uuid.NewString(),
		Message:  message,
		Choices:  choices,
	}
}

// Kind implements chain.Node.
func (n *Confirm) Kind() string { return KindConfirm }

// InputName returns the variable name a caller sets to answer name.
func (n *Confirm) InputName(name string) string {
	return name + tokenSep + n.token()
}

func (n *Confirm) token() string {
	if n.Token != "" {
		return n.Token
	}
	return n.NodeID
}

// Run implements chain.Node.
func (n *Confirm) Run(ec *chain.ExecContext) chain.Result {
	params := n.inputs()
	values, susp, err := ec.Resolve(params)
	if err != nil {
		return chain.Fail(err)
	}
	if susp != nil {
		if n.Message != "" {
			ec.Chain().SetMessage(template.Expand(n.Message, ec.Lookup))
		}
		n.prefill(ec, susp.Parameters)
		return chain.Suspend(susp)
	}

	out := make(map[string]any, len(values))
	suffix := tokenSep + n.token()
	for k, v := range values {
		out[strings.TrimSuffix(k, suffix)] = v
	}
	return chain.OK(out)
}

// inputs builds the uniquified INPUT parameters, the yes/no answer first.
func (n *Confirm) inputs() []*chain.Parameter {
	params := make([]*chain.Parameter, 0, len(n.Choices)+1)
	params = append(params, &chain.Parameter{
		Name:     n.InputName(ConfirmKey),
		RefType:  chain.RefInput,
		Required: true,
		DataType: chain.TypeString,
		Selection: &chain.Selection{
			Data:     []any{"yes", "no"},
			DataType: "text",
			Mode:     "confirm",
		},
	})
	for _, c := range n.Choices {
		p := c.Clone()
		p.Name = n.InputName(c.Name)
		p.RefType = chain.RefInput
		params = append(params, p)
	}
	return params
}

// prefill fills missing selection data from each choice's Ref.
func (n *Confirm) prefill(ec *chain.ExecContext, missing []*chain.Parameter) {
	refs := make(map[string]string, len(n.Choices))
	for _, c := range n.Choices {
		if c.Ref != "" {
			refs[n.InputName(c.Name)] = c.Ref
		}
	}
	for _, p := range missing {
		if p.Selection != nil && p.Selection.Data != nil {
			continue
		}
		ref, ok := refs[p.Name]
		if !ok {
			continue
		}
		v, ok := ec.Lookup(ref)
		if !ok || v == nil {
			continue
		}
		if p.Selection == nil {
			p.Selection = &chain.Selection{}
		}
		p.Selection.Data = asList(v)
	}
}

func asList(v any) []any {
	switch list := v.(type) {
	case []any:
		return append([]any(nil), list...)
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}
