package chain

// KindChain is the node kind of a nested chain.
const KindChain = "chain"

// Kind implements Node. A chain added to another chain runs as one of its
// nodes.
func (c *Chain) Kind() string { return KindChain }

// Run implements Node for a nested chain.
//
// The child executes with the parent's variables plus the resolved
// parameters of the child node. Its outputs are the values its own nodes
// wrote, so the parent stores them as "{child}.{node}.{key}". A suspension
// inside the child suspends the parent at the child node; resuming the
// parent resumes the child. A child failure fails the child node.
func (c *Chain) Run(ec *ExecContext) Result {
	if c.Status().Finished() {
		c.Reset()
	}

	vars := ec.Chain().Result()
	for k, v := range ec.Parameters() {
		vars[k] = v
	}

	_, err := c.run(ec, vars, false, []RunOption{ErrorTolerant()})
	if err != nil {
		return Fail(err)
	}

	switch c.Status() {
	case StatusSuspend:
		return Suspend(&Suspension{NodeID: c.ID(), Parameters: c.AwaitingParameters()})
	case StatusFinishedAbnormal:
		return Fail(c.Err())
	}
	return OK(c.outputs())
}

// outputs returns the values written by the chain's nodes.
func (c *Chain) outputs() map[string]any {
	c.smu.Lock()
	keys := make([]string, 0, len(c.outKeys))
	for k := range c.outKeys {
		keys = append(keys, k)
	}
	c.smu.Unlock()

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := c.store.Lookup(k); ok {
			out[k] = v
		}
	}
	return out
}
