package chain

import (
	"fmt"

	"github.com/randalmurphal/flowchain/pkg/chain/registry"
)

// Factory creates an empty node of one kind, ready to be decoded into.
type Factory func() Node

// Kinds maps node kind names to factories. Materialize uses it to turn
// snapshot envelopes back into nodes; the loader uses it for definitions.
//
// Nested chains are built in and need no registration.
type Kinds struct {
	factories *registry.Registry[string, Factory]
}

// NewKinds creates an empty kind registry.
func NewKinds() *Kinds {
	return &Kinds{factories: registry.New[string, Factory]()}
}

// Register adds or replaces the factory for kind.
func (k *Kinds) Register(kind string, f Factory) {
	k.factories.Register(kind, f)
}

// New creates an empty node of the given kind.
func (k *Kinds) New(kind string) (Node, error) {
	f, ok := k.factories.Get(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return f(), nil
}

// Has reports whether kind is registered.
func (k *Kinds) Has(kind string) bool {
	return k.factories.Has(kind)
}

// Names returns the registered kinds in sorted order.
func (k *Kinds) Names() []string {
	return registry.SortedKeys(k.factories)
}
