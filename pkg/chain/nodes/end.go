package nodes

import (
	"github.com/randalmurphal/flowchain/pkg/chain"
	"github.com/randalmurphal/flowchain/pkg/chain/template"
)

// End stops the chain. By default the chain finishes normally; with Error
// set it finishes abnormally. Message may reference variables.
type End struct {
	chain.BaseNode
	Error   bool   `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewEnd creates an end node that finishes the chain normally.
func NewEnd(id, message string) *End {
	return &End{BaseNode: chain.BaseNode{NodeID: id}, Message: message}
}

// NewErrorEnd creates an end node that fails the chain.
func NewErrorEnd(id, message string) *End {
	return &End{BaseNode: chain.BaseNode{NodeID: id}, Error: true, Message: message}
}

// Kind implements chain.Node.
func (n *End) Kind() string { return KindEnd }

// Run implements chain.Node.
func (n *End) Run(ec *chain.ExecContext) chain.Result {
	msg := template.Expand(n.Message, ec.Lookup)
	if n.Error {
		ec.Chain().StopError(msg)
	} else {
		ec.Chain().StopNormal(msg)
	}
	return chain.OK(nil)
}
