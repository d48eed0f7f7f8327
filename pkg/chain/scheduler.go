package chain

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/flowchain/pkg/chain/expr"
	"github.com/randalmurphal/flowchain/pkg/chain/memory"
	"github.com/randalmurphal/flowchain/pkg/chain/observability"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// task is one pending node execution.
type task struct {
	node   Node
	prevID string
	edgeID string
	// resumed tasks re-enter a suspended node: the trigger was already
	// recorded and the gate already passed.
	resumed bool
}

// run is the state of one Execute or Resume call.
//
// The errgroup is the completion barrier: every async task is registered
// with Go before it starts, and wait blocks until all of them, including
// ones spawned transitively, have returned. Task goroutines never return
// errors; failures are recorded on the chain so sibling branches keep going.
// The semaphore bounds how many async node bodies run at once. A task holds
// one slot for its whole branch and never waits on another task, so the
// pool cannot deadlock.
type run struct {
	ctx   context.Context
	chain *Chain
	group *errgroup.Group
	sem   *semaphore.Weighted
}

func newRun(ctx context.Context, c *Chain) *run {
	return &run{
		ctx:   ctx,
		chain: c,
		group: new(errgroup.Group),
		sem:   semaphore.NewWeighted(int64(c.cfg.maxWorkers)),
	}
}

// dispatch starts a frontier. Async tasks go to the pool first so a failing
// sync sibling cannot stop them from being dispatched; sync tasks then run
// inline, in order. Once dispatched, a task runs its node even if the chain
// errors meanwhile; only extension past it is cut off.
func (r *run) dispatch(tasks []task) {
	if r.chain.halted() {
		return
	}
	for _, t := range tasks {
		t := t
		if !t.node.base().Async() {
			continue
		}
		r.group.Go(func() error {
			if err := r.sem.Acquire(r.ctx, 1); err != nil {
				r.cancelled(t.node, err, false)
				return nil
			}
			defer r.sem.Release(1)
			r.execute(t)
			return nil
		})
	}
	for _, t := range tasks {
		if t.node.base().Async() {
			continue
		}
		if r.chain.halted() {
			return
		}
		r.execute(t)
	}
}

// wait blocks until every async task has finished.
func (r *run) wait() {
	_ = r.group.Wait()
}

// execute runs one node and extends its branch.
func (r *run) execute(t task) {
	c := r.chain
	n := t.node
	id := n.ID()
	nc := c.NodeContext(id)

	if err := r.ctx.Err(); err != nil {
		r.cancelled(n, err, false)
		return
	}
	joined := false
	if !t.resumed {
		joined = nc.recordTrigger(t.prevID, t.edgeID, c.InwardEdges(id))
	}

	if cond := n.base().Condition(); cond != nil && !t.resumed {
		ok, err := cond.Check(CheckContext{
			Chain:       c,
			Node:        n,
			NodeContext: nc,
			Vars:        r.nodeVars(n, t),
			arrival:     &joined,
		})
		if err != nil {
			r.failNode(n, &NodeError{NodeID: id, Op: "condition", Err: err})
			return
		}
		if !ok {
			observability.LogNodeSkipped(c.cfg.logger, id)
			if cond.Halts() {
				return
			}
			r.extend(n)
			return
		}
	}

	for iteration := 1; ; iteration++ {
		if nc.ExecuteCount() >= c.cfg.loopLimit {
			r.failNode(n, &LoopLimitError{Max: c.cfg.loopLimit, NodeID: id})
			return
		}

		res := r.invoke(n, t)
		switch res.Outcome {
		case Suspended:
			r.suspend(n, res.Suspension)
			return
		case Failed:
			r.failNode(n, res.Err)
			return
		}
		r.complete(n, t, res.Outputs)

		if !r.loopAgain(n, iteration, res.Outputs) {
			break
		}
		if !r.pause(n) {
			return
		}
	}

	r.extend(n)
}

// invoke resolves parameters and runs the node body with panic recovery,
// tracing, metrics, and the optional node timeout.
func (r *run) invoke(n Node, t task) Result {
	c := r.chain
	id := n.ID()
	b := n.base()

	ctx := r.ctx
	var span trace.Span
	if c.cfg.tracing {
		ctx, span = c.cfg.spans.StartNodeSpan(ctx, id, n.Kind())
	}

	ec := newExecContext(ctx, c, n, t.prevID, t.edgeID)
	params, susp, err := resolveParameters(id, b.Parameters(), ec.Lookup)
	if err != nil {
		if span != nil {
			c.cfg.spans.EndSpanWithError(span, err)
		}
		return Fail(err)
	}
	if susp != nil {
		if span != nil {
			c.cfg.spans.EndSpanWithError(span, nil)
		}
		return Suspend(susp)
	}
	ec.params = params

	b.setStatus(StatusRunning)
	c.emit(Event{Type: EventNodeStart, NodeID: id})
	observability.LogNodeStart(ec.logger, id)
	start := time.Now()

	res := r.call(ec, n)
	if res.Outcome == Failed {
		res.Err = wrapNodeError(id, res.Err)
	}

	duration := time.Since(start)
	c.cfg.metrics.RecordNodeExecution(ctx, id, n.Kind(), duration, res.Err)
	if span != nil {
		c.cfg.spans.EndSpanWithError(span, res.Err)
	}
	if res.Outcome == Completed {
		observability.LogNodeComplete(ec.logger, id, float64(duration.Milliseconds()))
	}
	return res
}

// call runs the node body, bounded by the node timeout when one is set.
func (r *run) call(ec *ExecContext, n Node) Result {
	timeout := r.chain.cfg.nodeTimeout
	if timeout <= 0 {
		return safeRun(ec, n)
	}

	ctx, cancel := context.WithTimeout(ec.Context, timeout)
	defer cancel()
	ec.Context = ctx

	done := make(chan Result, 1)
	go func() { done <- safeRun(ec, n) }()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		if err := r.ctx.Err(); err != nil {
			return Fail(&CancellationError{NodeID: n.ID(), Cause: err, WasExecuting: true})
		}
		return Fail(&TimeoutError{NodeID: n.ID(), Timeout: timeout})
	}
}

// safeRun calls Run, converting a panic into a failure.
func safeRun(ec *ExecContext, n Node) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Fail(&PanicError{
				NodeID: n.ID(),
				Value:  p,
				Stack:  string(debug.Stack()),
			})
		}
	}()
	return n.Run(ec)
}

// wrapNodeError attaches node context to a body error. Errors that already
// identify the node pass through.
func wrapNodeError(id string, err error) error {
	if err == nil {
		return &NodeError{NodeID: id, Op: "execute", Err: errors.New("node failed")}
	}
	var (
		nodeErr    *NodeError
		panicErr   *PanicError
		timeoutErr *TimeoutError
		cancelErr  *CancellationError
		configErr  *ConfigurationError
	)
	switch {
	case errors.As(err, &nodeErr) && nodeErr.NodeID == id,
		errors.As(err, &panicErr),
		errors.As(err, &timeoutErr),
		errors.As(err, &cancelErr),
		errors.As(err, &configErr):
		return err
	}
	return &NodeError{NodeID: id, Op: "execute", Err: err}
}

// complete records a successful execution and merges outputs into the store.
func (r *run) complete(n Node, t task, outputs map[string]any) {
	c := r.chain
	id := n.ID()

	n.base().setStatus(StatusFinishedNormal)
	c.NodeContext(id).recordExecute(t.edgeID)

	out := make(map[string]any, len(outputs))
	keys := make([]string, 0, len(outputs))
	for k, v := range outputs {
		out[k] = v
		key := id + "." + k
		c.store.Set(key, v)
		keys = append(keys, key)
	}
	c.results.Register(id, out)

	c.smu.Lock()
	for _, k := range keys {
		c.outKeys[k] = struct{}{}
	}
	c.removePendingLocked(id)
	c.smu.Unlock()

	if expression := n.base().CostExpr; expression != "" {
		v, err := c.evaluator().Evaluate(expression, expr.Chain(expr.Vars(out), c.store.Lookup))
		if err != nil {
			c.cfg.logger.Warn("cost expression failed", "chain_id", c.ID(), "node_id", id, "error", err)
		} else if _, f, _, ok := expr.ToNumber(v); ok {
			c.addCost(f)
		}
	}

	c.emit(Event{Type: EventNodeEnd, NodeID: id, Outputs: out})
}

// suspend parks the node until resume. Re-suspending a pending node only
// refreshes the awaited parameters.
func (r *run) suspend(n Node, s *Suspension) {
	c := r.chain
	id := n.ID()
	if s == nil {
		s = &Suspension{NodeID: id}
	}

	c.smu.Lock()
	if !c.isPendingLocked(id) {
		c.pending = append(c.pending, id)
	}
	for _, p := range s.Parameters {
		if !c.isAwaitingLocked(p.Name) {
			c.awaiting = append(c.awaiting, p.Clone())
		}
	}
	before := c.status
	if before == StatusRunning {
		c.status = StatusSuspend
	}
	after := c.status
	c.smu.Unlock()

	n.base().setStatus(StatusReady)
	if before != after {
		c.emit(Event{Type: EventChainStatus, Status: after, Before: before})
	}
	c.emit(Event{Type: EventChainSuspend, NodeID: id, Suspension: s})
	observability.LogSuspend(c.cfg.logger, c.ID(), id, s.Names())
	c.cfg.metrics.RecordSuspend(r.ctx, id)
}

// failNode marks n ERROR while its node-error event is delivered, then
// settles it at FINISHED_ABNORMAL and records the failure on the chain. Only
// the current branch stops; other branches notice the status when they next
// extend.
func (r *run) failNode(n Node, err error) {
	c := r.chain
	id := n.ID()
	n.base().setStatus(StatusError)
	c.emit(Event{Type: EventNodeError, NodeID: id, Err: err})
	observability.LogNodeError(c.cfg.logger, id, err)
	n.base().setStatus(StatusFinishedAbnormal)
	c.fail(err)
}

func (r *run) cancelled(n Node, cause error, executing bool) {
	r.failNode(n, &CancellationError{NodeID: n.ID(), Cause: cause, WasExecuting: executing})
}

// loopAgain reports whether a looping node should run another iteration.
func (r *run) loopAgain(n Node, iteration int, outputs map[string]any) bool {
	l := n.base().Loop()
	if l == nil || !l.Enabled {
		return false
	}
	if l.MaxCount > 0 && iteration >= l.MaxCount {
		return false
	}
	if l.BreakCondition == nil {
		return true
	}
	c := r.chain
	done, err := l.BreakCondition.Check(CheckContext{
		Chain:       c,
		Node:        n,
		NodeContext: c.NodeContext(n.ID()),
		Vars:        expr.Chain(expr.Vars(outputs), c.store.Lookup),
	})
	if err != nil {
		r.failNode(n, &NodeError{NodeID: n.ID(), Op: "loop", Err: err})
		return false
	}
	return !done
}

// pause sleeps for the loop interval. It returns false when the run was
// cancelled meanwhile.
func (r *run) pause(n Node) bool {
	if r.chain.halted() {
		return false
	}
	l := n.base().Loop()
	if l.IntervalMs <= 0 {
		return true
	}
	timer := time.NewTimer(time.Duration(l.IntervalMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.ctx.Done():
		r.cancelled(n, r.ctx.Err(), false)
		return false
	}
}

// extend evaluates the outward edges of n and dispatches the targets whose
// edge conditions pass.
func (r *run) extend(n Node) {
	c := r.chain
	if c.halted() {
		return
	}

	id := n.ID()
	outputs := c.NodeResult(id)
	var next []task
	for _, e := range c.OutwardEdges(id) {
		target := c.nodeIndex[e.Target]
		if e.Condition != nil {
			ok, err := e.Condition.Check(CheckContext{
				Chain:       c,
				Node:        target,
				Edge:        e,
				NodeContext: c.NodeContext(e.Target),
				Vars:        expr.Chain(expr.Vars(outputs), c.store.Lookup, contextVars(c, id, e)),
			})
			if err != nil {
				r.failNode(n, &NodeError{NodeID: id, Op: "edge " + e.ID, Err: err})
				return
			}
			if !ok {
				continue
			}
		}
		next = append(next, task{node: target, prevID: id, edgeID: e.ID})
	}
	r.dispatch(next)
}

// nodeVars is what a node condition sees: node memory over the chain store,
// plus the _context variables of the trigger.
func (r *run) nodeVars(n Node, t task) expr.Lookup {
	c := r.chain
	scope := memory.NewScope(n.base().Memory(), c.store)
	var e *Edge
	for _, in := range c.InwardEdges(n.ID()) {
		if in.ID == t.edgeID {
			e = in
			break
		}
	}
	return expr.Chain(scope.Lookup, contextVars(c, t.prevID, e))
}

// contextVars exposes trigger metadata under the "_context." prefix.
func contextVars(c *Chain, prevID string, e *Edge) expr.Lookup {
	return func(name string) (any, bool) {
		switch name {
		case "_context.chain_id":
			return c.ID(), true
		case "_context.prev_node_id":
			return prevID, true
		case "_context.edge_id":
			if e == nil {
				return "", true
			}
			return e.ID, true
		case "_context.target":
			if e == nil {
				return "", true
			}
			return e.Target, true
		case "_context.status":
			return string(c.Status()), true
		}
		return nil, false
	}
}

func (c *Chain) isPendingLocked(id string) bool {
	for _, p := range c.pending {
		if p == id {
			return true
		}
	}
	return false
}

func (c *Chain) isAwaitingLocked(name string) bool {
	for _, p := range c.awaiting {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (c *Chain) removePendingLocked(id string) {
	for i, p := range c.pending {
		if p == id {
			c.pending = append(c.pending[:i:i], c.pending[i+1:]...)
			return
		}
	}
}
