package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/randalmurphal/flowchain/pkg/chain/memory"
	"github.com/randalmurphal/flowchain/pkg/chain/observability"
	"go.opentelemetry.io/otel/trace"
)

// Execute runs the chain with vars merged into its variable store and
// returns the store's contents once every branch, including async ones, has
// finished.
//
// The frontier is every node without inward edges. A suspended chain is
// resumed instead: the frontier is the pending nodes. A finished chain must
// be Reset before it can execute again.
//
// A node failure stops only its own branch. Once all branches are done the
// chain ends FINISHED_ABNORMAL and Execute returns the failure along with the
// partial result, unless ErrorTolerant is given, in which case the error is
// nil and the failure is available through Err.
//
// Example:
//
//	c := chain.New(chain.WithName("greet"))
//	c.MustAddNode(chain.NewFuncNode("hello", func(ec *chain.ExecContext) chain.Result {
//	    return chain.OK(map[string]any{"text": "hello " + fmt.Sprint(ec.Get("name"))})
//	}))
//	result, err := c.Execute(ctx, map[string]any{"name": "world"})
//	// result["hello.text"] == "hello world"
func (c *Chain) Execute(ctx context.Context, vars map[string]any, opts ...RunOption) (map[string]any, error) {
	return c.run(ctx, vars, false, opts)
}

// Resume merges vars into the store and re-enters the chain at its pending
// nodes. It returns ErrNotSuspended when nothing is pending.
func (c *Chain) Resume(ctx context.Context, vars map[string]any, opts ...RunOption) (map[string]any, error) {
	return c.run(ctx, vars, true, opts)
}

// ExecuteForResult executes the chain and returns the variable at key. It
// fails unless the chain finishes normally.
func (c *Chain) ExecuteForResult(ctx context.Context, vars map[string]any, key string) (any, error) {
	if _, err := c.Execute(ctx, vars); err != nil {
		return nil, err
	}
	if s := c.Status(); s != StatusFinishedNormal {
		return nil, fmt.Errorf("chain %s ended %s: %w", c.ID(), s, ErrIncomplete)
	}
	return c.store.Get(key), nil
}

func (c *Chain) run(ctx context.Context, vars map[string]any, resume bool, opts []RunOption) (result map[string]any, runErr error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var rc runConfig
	for _, opt := range opts {
		opt(&rc)
	}

	// Claim the chain and pick up what is pending.
	c.smu.Lock()
	before := c.status
	switch {
	case before == StatusRunning:
		c.smu.Unlock()
		return nil, ErrChainRunning
	case before.Finished() || before == StatusError:
		c.smu.Unlock()
		return nil, ErrChainFinished
	case resume && len(c.pending) == 0:
		c.smu.Unlock()
		return nil, ErrNotSuspended
	}
	pending := append([]string(nil), c.pending...)
	c.status = StatusRunning
	c.awaiting = nil
	c.message = ""
	c.smu.Unlock()

	// Caller values take the types a snapshot round trip would give them.
	for k, v := range vars {
		c.store.Set(k, memory.Widen(v))
	}
	resumed := len(pending) > 0

	startTime := time.Now()
	observability.LogChainStart(c.cfg.logger, c.ID(), c.Name, resumed)
	c.emit(Event{Type: EventChainStatus, Status: StatusRunning, Before: before})
	c.emit(Event{Type: EventChainStart})

	runCtx := ctx
	var span trace.Span
	if c.cfg.tracing {
		runCtx, span = c.cfg.spans.StartChainSpan(ctx, c.Name, c.ID())
	}

	r := newRun(runCtx, c)
	r.dispatch(c.frontier(pending))
	r.wait()

	status := c.finalize()
	runErr = c.Err()

	duration := time.Since(startTime)
	c.cfg.metrics.RecordChainRun(ctx, string(status), duration)
	observability.LogChainFinish(c.cfg.logger, c.ID(), string(status), float64(duration.Milliseconds()), runErr)
	if span != nil {
		c.cfg.spans.EndSpanWithError(span, runErr)
	}
	c.emit(Event{Type: EventChainEnd, Status: status, Err: runErr})

	c.persist(ctx)

	result = c.store.All()
	if runErr != nil && rc.tolerant {
		return result, nil
	}
	return result, runErr
}

// frontier returns the tasks a run starts with: the pending nodes when
// resuming, otherwise every node without inward edges.
func (c *Chain) frontier(pending []string) []task {
	var tasks []task
	if len(pending) > 0 {
		for _, id := range pending {
			n, ok := c.nodeIndex[id]
			if !ok {
				continue
			}
			nc := c.NodeContext(id)
			tasks = append(tasks, task{node: n, prevID: nc.PrevNodeID(), edgeID: nc.FromEdgeID(), resumed: true})
		}
		return tasks
	}
	for _, n := range c.nodes {
		if len(c.inward[n.ID()]) == 0 {
			tasks = append(tasks, task{node: n})
		}
	}
	return tasks
}

// finalize settles the status once all branches are done. A recorded
// failure wins over pending suspensions.
func (c *Chain) finalize() Status {
	c.smu.Lock()
	before := c.status
	switch {
	case c.failure != nil:
		c.status = StatusFinishedAbnormal
		c.pending = nil
		c.awaiting = nil
	case before.Finished():
		c.pending = nil
		c.awaiting = nil
	case len(c.pending) > 0:
		c.status = StatusSuspend
	default:
		c.status = StatusFinishedNormal
	}
	after := c.status
	c.smu.Unlock()

	if before != after {
		c.emit(Event{Type: EventChainStatus, Status: after, Before: before})
	}
	return after
}

// persist saves a snapshot to the configured checkpoint store, tagged with
// the status. Nested chains are saved as part of their root. Failures are
// logged and do not affect the run.
func (c *Chain) persist(ctx context.Context) {
	if c.cfg.store == nil || c.parent != nil {
		return
	}
	size, err := SaveSnapshot(c, c.cfg.store)
	if err != nil {
		observability.LogSnapshotError(c.cfg.logger, c.ID(), "save", err)
		return
	}
	observability.LogSnapshot(c.cfg.logger, c.ID(), size)
	c.cfg.metrics.RecordSnapshot(ctx, c.ID(), int64(size))
}
