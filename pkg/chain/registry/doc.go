// Package registry provides a generic thread-safe registry for values indexed by key.
//
// Registry is designed for read-heavy workloads using sync.RWMutex. The chain
// engine uses it for two things: the kind table that maps node kinds to
// factories when a snapshot is materialized, and the per-node context table
// that is populated lazily while a chain runs.
//
// # Basic Usage
//
//	r := registry.New[string, int]()
//	r.Register("one", 1)
//
//	value, ok := r.Get("one")
//
// # Strict Registration
//
// Add refuses to overwrite an existing key:
//
//	if err := kinds.Add("set", newSetNode); errors.Is(err, registry.ErrDuplicate) {
//	    // "set" was already registered
//	}
//
// # Lazy Initialization
//
// Use GetOrCreate for thread-safe lazy initialization:
//
//	ctx := contexts.GetOrCreate(nodeID, func() *NodeContext {
//	    return newNodeContext()
//	})
//
// The factory is called at most once per key, even under concurrent access.
package registry
