package nodes

import "github.com/randalmurphal/flowchain/pkg/chain"

// Kind names of the built-in nodes.
const (
	KindSet     = "set"
	KindExpr    = "expr"
	KindConfirm = "confirm"
	KindEnd     = "end"
)

// RegisterBuiltins registers every built-in kind on k.
func RegisterBuiltins(k *chain.Kinds) {
	k.Register(KindSet, func() chain.Node { return &Set{} })
	k.Register(KindExpr, func() chain.Node { return &Expr{} })
	k.Register(KindConfirm, func() chain.Node { return &Confirm{} })
	k.Register(KindEnd, func() chain.Node { return &End{} })
}

// Builtins returns a kind registry holding only the built-in kinds.
func Builtins() *chain.Kinds {
	k := chain.NewKinds()
	RegisterBuiltins(k)
	return k
}
