// Package nodes provides the built-in node kinds that need no Go code to
// configure, so chains built from them can be loaded from files and
// snapshotted.
//
//   - set: publishes literal or templated values as outputs
//   - expr: evaluates one expression per output
//   - confirm: suspends until a user confirms and supplies its choices
//   - end: stops the chain normally or with an error
//
// Register them on a kind registry before materializing a snapshot:
//
//	kinds := chain.NewKinds()
//	nodes.RegisterBuiltins(kinds)
//	c, err := chain.LoadSnapshot(store, id, kinds)
package nodes
