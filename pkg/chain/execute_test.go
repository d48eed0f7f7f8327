package chain

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExecute_LinearFlow tests A -> B -> C with one output each.
func TestExecute_LinearFlow(t *testing.T) {
	c := New()
	c.MustAddNode(
		outputNode("A", map[string]any{"a": 1}),
		outputNode("B", map[string]any{"b": 2}),
		outputNode("C", map[string]any{"c": 3}),
	)
	c.MustConnect("A", "B").MustConnect("B", "C")

	result, err := c.Execute(testCtx(), map[string]any{})

	require.NoError(t, err)
	assert.Equal(t, 1, result["A.a"])
	assert.Equal(t, 2, result["B.b"])
	assert.Equal(t, 3, result["C.c"])
	assert.Equal(t, StatusFinishedNormal, c.Status())
	for _, id := range []string{"A", "B", "C"} {
		nc := c.NodeContext(id)
		assert.Equal(t, 1, nc.TriggerCount(), id)
		assert.Equal(t, 1, nc.ExecuteCount(), id)
		assert.Equal(t, StatusFinishedNormal, mustNode(t, c, id).base().Status(), id)
	}
}

// TestExecute_NodeReadsUpstreamOutput tests that outputs are visible downstream.
func TestExecute_NodeReadsUpstreamOutput(t *testing.T) {
	c := New()
	c.MustAddNode(
		outputNode("price", map[string]any{"total": int64(40)}),
		calc("tax", map[string]string{"gross": "total + 2"}, Ref("total", "price.total")),
	)
	c.MustConnect("price", "tax")

	result, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.Equal(t, int64(42), result["tax.gross"])
	assert.Equal(t, map[string]any{"gross": int64(42)}, c.NodeResult("tax"))
}

// TestExecute_ConditionalSkip tests that a failing edge condition never
// triggers its target.
func TestExecute_ConditionalSkip(t *testing.T) {
	tr := &tracker{}
	c := New()
	c.MustAddNode(trackingNode("A", tr), trackingNode("B", tr))
	c.MustConnect("A", "B", When("flag == true"))

	result, err := c.Execute(testCtx(), map[string]any{"flag": false})

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, tr.list())
	assert.Equal(t, 0, c.NodeContext("B").TriggerCount())
	assert.NotContains(t, result, "B.ran")
	assert.Equal(t, StatusFinishedNormal, c.Status())
}

// TestExecute_EdgeConditionSeesSourceOutputs tests unqualified access to the
// source node's outputs in edge conditions.
func TestExecute_EdgeConditionSeesSourceOutputs(t *testing.T) {
	tr := &tracker{}
	c := New()
	c.MustAddNode(
		outputNode("review", map[string]any{"approved": true}),
		trackingNode("publish", tr),
		trackingNode("revise", tr),
	)
	c.MustConnect("review", "publish", When("approved == true"))
	c.MustConnect("review", "revise", When("approved == false"))

	_, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"publish"}, tr.list())
}

// TestExecute_NodeConditionSkipsBody tests passthrough skip semantics.
func TestExecute_NodeConditionSkipsBody(t *testing.T) {
	tr := &tracker{}
	b := trackingNode("B", tr)
	b.Gate = When("enabled == true")

	c := New()
	c.MustAddNode(trackingNode("A", tr), b, trackingNode("C", tr))
	c.MustConnect("A", "B").MustConnect("B", "C")

	result, err := c.Execute(testCtx(), map[string]any{"enabled": false})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, tr.list())
	assert.NotContains(t, result, "B.ran")
	assert.Equal(t, 1, c.NodeContext("B").TriggerCount())
	assert.Equal(t, 0, c.NodeContext("B").ExecuteCount())
}

// TestExecute_HaltingConditionEndsBranch tests that a halting gate stops the
// branch at the node.
func TestExecute_HaltingConditionEndsBranch(t *testing.T) {
	tr := &tracker{}
	b := trackingNode("B", tr)
	b.Gate = When("enabled == true").Halting()

	c := New()
	c.MustAddNode(trackingNode("A", tr), b, trackingNode("C", tr))
	c.MustConnect("A", "B").MustConnect("B", "C")

	_, err := c.Execute(testCtx(), map[string]any{"enabled": false})

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, tr.list())
}

// TestExecute_FanOutIndependence tests that async siblings both finish before
// Execute returns.
func TestExecute_FanOutIndependence(t *testing.T) {
	tr := &tracker{}
	c := New(WithMaxWorkers(4))
	c.MustAddNode(
		trackingNode("A", tr),
		async(sleepyNode("B", 30*time.Millisecond, tr)),
		async(sleepyNode("C", 10*time.Millisecond, tr)),
	)
	c.MustConnect("A", "B").MustConnect("A", "C")

	result, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.Equal(t, StatusFinishedNormal, c.Status())
	assert.Equal(t, 1, tr.count("B"))
	assert.Equal(t, 1, tr.count("C"))
	assert.Equal(t, true, result["B.ran"])
	assert.Equal(t, true, result["C.ran"])
}

// TestExecute_AsyncBranchesRunConcurrently tests that the pool runs async
// nodes in parallel up to its size.
func TestExecute_AsyncBranchesRunConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	work := func(id string) Node {
		return async(NewFuncNode(id, func(ec *ExecContext) Result {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return OK(nil)
		}))
	}

	c := New(WithMaxWorkers(2))
	c.MustAddNode(outputNode("start", nil), work("w1"), work("w2"), work("w3"), work("w4"))
	for _, id := range []string{"w1", "w2", "w3", "w4"} {
		c.MustConnect("start", id)
	}

	_, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	for _, id := range []string{"w1", "w2", "w3", "w4"} {
		assert.Equal(t, 1, c.NodeContext(id).ExecuteCount(), id)
	}
}

// TestExecute_TransitiveAsyncWork tests that the barrier covers async nodes
// spawned by async branches.
func TestExecute_TransitiveAsyncWork(t *testing.T) {
	tr := &tracker{}
	c := New(WithMaxWorkers(1))
	c.MustAddNode(
		async(sleepyNode("A", 5*time.Millisecond, tr)),
		async(sleepyNode("B", 5*time.Millisecond, tr)),
		async(sleepyNode("C", 20*time.Millisecond, tr)),
	)
	c.MustConnect("A", "B").MustConnect("B", "C")

	_, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, tr.list())
}

// TestExecute_BranchLocalFailure tests that a failing sync branch does not
// stop an async sibling.
func TestExecute_BranchLocalFailure(t *testing.T) {
	boom := errors.New("boom")
	tr := &tracker{}
	c := New()
	c.MustAddNode(
		trackingNode("A", tr),
		async(sleepyNode("C", 20*time.Millisecond, tr)),
		failingNode("B", boom),
	)
	c.MustConnect("A", "B").MustConnect("A", "C")

	result, err := c.Execute(testCtx(), nil, ErrorTolerant())

	require.NoError(t, err)
	assert.Equal(t, true, result["C.ran"])
	assert.NotContains(t, result, "B.ran")
	assert.Equal(t, StatusFinishedAbnormal, c.Status())
	require.Error(t, c.Err())
	assert.ErrorIs(t, c.Err(), boom)

	var nodeErr *NodeError
	require.ErrorAs(t, c.Err(), &nodeErr)
	assert.Equal(t, "B", nodeErr.NodeID)
	assert.Equal(t, StatusFinishedAbnormal, mustNode(t, c, "B").base().Status())
}

// TestExecute_StrictModeReturnsFailure tests the default error mode.
func TestExecute_StrictModeReturnsFailure(t *testing.T) {
	boom := errors.New("boom")
	tr := &tracker{}
	c := New()
	c.MustAddNode(trackingNode("A", tr), failingNode("B", boom), trackingNode("C", tr))
	c.MustConnect("A", "B").MustConnect("B", "C")

	result, err := c.Execute(testCtx(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, true, result["A.ran"], "partial result is returned")
	assert.Equal(t, []string{"A"}, tr.list())
	assert.Equal(t, StatusFinishedAbnormal, c.Status())
}

// TestExecute_PanicRecovery tests that a panicking node fails its branch.
func TestExecute_PanicRecovery(t *testing.T) {
	c := New()
	c.MustAddNode(NewFuncNode("bad", func(ec *ExecContext) Result {
		panic("kaboom")
	}))

	_, err := c.Execute(testCtx(), nil)

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "bad", panicErr.NodeID)
	assert.Equal(t, "kaboom", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

// TestExecute_MissingRefParameterIsConfigurationError tests that a required
// REF parameter never suspends.
func TestExecute_MissingRefParameterIsConfigurationError(t *testing.T) {
	c := New()
	c.MustAddNode(calc("B", map[string]string{"v": "x"}, Ref("x", "nowhere").Require()))

	_, err := c.Execute(testCtx(), nil)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "x", cfgErr.Parameter)
	assert.ErrorIs(t, err, ErrMissingParameter)
	assert.Equal(t, StatusFinishedAbnormal, c.Status())
	assert.Empty(t, c.Pending())
}

// TestExecute_ExecContext tests what a node sees while it runs.
func TestExecute_ExecContext(t *testing.T) {
	var (
		prev, edge string
		local, got any
		params     map[string]any
	)
	b := NewFuncNode("B", func(ec *ExecContext) Result {
		prev = ec.PrevNodeID()
		edge = ec.EdgeID()
		ec.SetLocal("scratch", "mine")
		local = ec.Get("scratch")
		got = ec.Get("A.v")
		params = ec.Parameters()
		return OK(nil)
	})
	b.Params = []*Parameter{Fixed("greeting", "hi {{ who }}"), Ref("who", "name")}

	c := New()
	c.MustAddNode(outputNode("A", map[string]any{"v": "x"}), b)
	require.NoError(t, c.Connect("A", "B"))

	_, err := c.Execute(testCtx(), map[string]any{"name": "bob"})

	require.NoError(t, err)
	assert.Equal(t, "A", prev)
	assert.Equal(t, c.InwardEdges("B")[0].ID, edge)
	assert.Equal(t, "mine", local)
	assert.Nil(t, c.Get("scratch"), "node memory stays private")
	assert.Equal(t, "x", got)
	assert.Equal(t, map[string]any{"greeting": "hi ", "who": "bob"}, params)
}

// TestExecute_FixedParameterSeesSiblings tests template rendering against
// already-resolved siblings.
func TestExecute_FixedParameterSeesSiblings(t *testing.T) {
	var params map[string]any
	n := NewFuncNode("n", func(ec *ExecContext) Result {
		params = ec.Parameters()
		return OK(nil)
	})
	n.Params = []*Parameter{
		Ref("who", "name"),
		Fixed("greeting", "hello {{ who }}"),
		Fixed("count", "{{ n }}").Typed(TypeNumber),
		Fixed("on", "1").Typed(TypeBoolean),
	}

	c := New()
	c.MustAddNode(n)
	_, err := c.Execute(testCtx(), map[string]any{"name": "ann", "n": " 7 "})

	require.NoError(t, err)
	assert.Equal(t, "hello ann", params["greeting"])
	assert.Equal(t, int64(7), params["count"])
	assert.Equal(t, true, params["on"])
}

// TestExecute_Loop tests loop iterations bounded by a break condition.
func TestExecute_Loop(t *testing.T) {
	var runs atomic.Int32
	n := NewFuncNode("tick", func(ec *ExecContext) Result {
		return OK(map[string]any{"n": int64(runs.Add(1))})
	})
	n.LoopSpec = &Loop{Enabled: true, BreakCondition: When("n >= 3")}

	tr := &tracker{}
	c := New()
	c.MustAddNode(n, trackingNode("after", tr))
	c.MustConnect("tick", "after")

	result, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.Equal(t, int32(3), runs.Load())
	assert.Equal(t, int64(3), result["tick.n"])
	assert.Equal(t, 3, c.NodeContext("tick").ExecuteCount())
	assert.Equal(t, 1, tr.count("after"), "branch extends once after the loop")
}

// TestExecute_LoopMaxCount tests the iteration cap.
func TestExecute_LoopMaxCount(t *testing.T) {
	var runs atomic.Int32
	n := NewFuncNode("tick", func(ec *ExecContext) Result {
		runs.Add(1)
		return OK(nil)
	})
	n.LoopSpec = &Loop{Enabled: true, MaxCount: 4, IntervalMs: 1}

	c := New()
	c.MustAddNode(n)
	_, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.Equal(t, int32(4), runs.Load())
}

// TestExecute_LoopLimit tests that the chain-wide limit fails a runaway node.
func TestExecute_LoopLimit(t *testing.T) {
	n := outputNode("spin", nil)
	n.LoopSpec = &Loop{Enabled: true}

	c := New(WithLoopLimit(5))
	c.MustAddNode(n)
	_, err := c.Execute(testCtx(), nil)

	var limitErr *LoopLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 5, limitErr.Max)
	assert.ErrorIs(t, err, ErrLoopLimit)
	assert.Equal(t, 5, c.NodeContext("spin").ExecuteCount())
}

// TestExecute_CycleBoundedByLoopLimit tests a graph cycle guarded by the limit.
func TestExecute_CycleBoundedByLoopLimit(t *testing.T) {
	c := New(WithLoopLimit(3))
	c.MustAddNode(outputNode("start", nil), outputNode("a", nil), outputNode("b", nil))
	c.MustConnect("start", "a").MustConnect("a", "b").MustConnect("b", "a")

	_, err := c.Execute(testCtx(), nil)

	assert.ErrorIs(t, err, ErrLoopLimit)
	assert.Equal(t, 3, c.NodeContext("a").ExecuteCount())
}

// TestExecute_ComputeCost tests cost accumulation.
func TestExecute_ComputeCost(t *testing.T) {
	a := outputNode("a", map[string]any{"tokens": int64(10)})
	a.CostExpr = "tokens * 2"
	b := outputNode("b", nil)
	b.CostExpr = "1.5"

	c := New()
	c.MustAddNode(a, b)
	c.MustConnect("a", "b")
	_, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.InDelta(t, 21.5, c.ComputeCost(), 1e-9)
}

// TestExecute_StopNormal tests that a node can end the run early.
func TestExecute_StopNormal(t *testing.T) {
	tr := &tracker{}
	stop := NewFuncNode("stop", func(ec *ExecContext) Result {
		ec.Chain().StopNormal("done early")
		return OK(nil)
	})

	c := New()
	c.MustAddNode(stop, trackingNode("after", tr))
	c.MustConnect("stop", "after")

	_, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.Empty(t, tr.list())
	assert.Equal(t, StatusFinishedNormal, c.Status())
	assert.Equal(t, "done early", c.Message())
}

// TestExecute_StopError tests stopping with a failure.
func TestExecute_StopError(t *testing.T) {
	stop := NewFuncNode("stop", func(ec *ExecContext) Result {
		ec.Chain().StopError("rejected")
		return OK(nil)
	})

	c := New()
	c.MustAddNode(stop)

	_, err := c.Execute(testCtx(), nil)

	assert.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, StatusFinishedAbnormal, c.Status())
	assert.Equal(t, "rejected", c.Message())
}

// TestExecute_NodeTimeout tests the optional per-node timeout.
func TestExecute_NodeTimeout(t *testing.T) {
	slow := NewFuncNode("slow", func(ec *ExecContext) Result {
		select {
		case <-ec.Done():
			return Fail(ec.Err())
		case <-time.After(time.Second):
			return OK(nil)
		}
	})

	c := New(WithNodeTimeout(20 * time.Millisecond))
	c.MustAddNode(slow)

	_, err := c.Execute(testCtx(), nil)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "slow", timeoutErr.NodeID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestExecute_Cancellation tests that a cancelled context fails the run.
func TestExecute_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(testCtx())
	tr := &tracker{}
	first := NewFuncNode("first", func(ec *ExecContext) Result {
		cancel()
		return OK(nil)
	})

	c := New()
	c.MustAddNode(first, trackingNode("second", tr))
	c.MustConnect("first", "second")

	_, err := c.Execute(ctx, nil)

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "second", cancelErr.NodeID)
	assert.False(t, cancelErr.WasExecuting)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, tr.list())
}

// TestExecute_StateErrors tests the lifecycle guards.
func TestExecute_StateErrors(t *testing.T) {
	c := New()
	c.MustAddNode(outputNode("a", nil))

	//nolint:staticcheck // nil context is the case under test
	_, err := c.Execute(nil, nil)
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = c.Resume(testCtx(), nil)
	assert.ErrorIs(t, err, ErrNotSuspended)

	_, err = c.Execute(testCtx(), nil)
	require.NoError(t, err)

	_, err = c.Execute(testCtx(), nil)
	assert.ErrorIs(t, err, ErrChainFinished)

	c.Reset()
	assert.Equal(t, StatusReady, c.Status())
	assert.Equal(t, 0, c.NodeContext("a").ExecuteCount())
	_, err = c.Execute(testCtx(), nil)
	assert.NoError(t, err)
}

// TestExecute_ConcurrentCallRejected tests ErrChainRunning.
func TestExecute_ConcurrentCallRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	c := New()
	c.MustAddNode(NewFuncNode("block", func(ec *ExecContext) Result {
		close(started)
		<-release
		return OK(nil)
	}))

	done := make(chan error, 1)
	go func() {
		_, err := c.Execute(testCtx(), nil)
		done <- err
	}()

	<-started
	_, err := c.Execute(testCtx(), nil)
	assert.ErrorIs(t, err, ErrChainRunning)

	close(release)
	assert.NoError(t, <-done)
}

// TestExecute_ExecuteForResult tests single-value execution.
func TestExecute_ExecuteForResult(t *testing.T) {
	c := New()
	c.MustAddNode(calc("sum", map[string]string{"v": "a + b"}, Ref("a", "a"), Ref("b", "b")))

	v, err := c.ExecuteForResult(testCtx(), map[string]any{"a": 2, "b": 3}, "sum.v")

	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	s := New()
	s.MustAddNode(calc("wait", nil, Input("x")))
	_, err = s.ExecuteForResult(testCtx(), nil, "wait.v")
	assert.ErrorIs(t, err, ErrIncomplete)
}

// TestExecute_FanInRunsPerTrigger tests the permissive join default.
func TestExecute_FanInRunsPerTrigger(t *testing.T) {
	tr := &tracker{}
	c := New()
	c.MustAddNode(outputNode("a", nil), outputNode("b", nil), trackingNode("join", tr))
	c.MustConnect("a", "join").MustConnect("b", "join")

	_, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.Equal(t, 2, tr.count("join"))
	assert.Equal(t, 2, c.NodeContext("join").TriggerCount())
}

// TestExecute_WaitForAllJoin tests the explicit join condition.
func TestExecute_WaitForAllJoin(t *testing.T) {
	tr := &tracker{}
	join := trackingNode("join", tr)
	join.Gate = WaitForAll()

	c := New()
	c.MustAddNode(
		outputNode("start", nil),
		async(sleepyNode("left", 5*time.Millisecond, tr)),
		async(sleepyNode("right", 15*time.Millisecond, tr)),
		join,
	)
	c.MustConnect("start", "left").MustConnect("start", "right")
	c.MustConnect("left", "join").MustConnect("right", "join")

	_, err := c.Execute(testCtx(), nil)

	require.NoError(t, err)
	assert.Equal(t, 1, tr.count("join"))
	assert.Equal(t, 2, c.NodeContext("join").TriggerCount())
	assert.True(t, c.NodeContext("join").IsUpstreamFullyExecuted(c.InwardEdges("join")))
}

// TestExecute_WaitForAllJoinSimultaneous releases both predecessors from one
// barrier so their arrivals at the join overlap.
func TestExecute_WaitForAllJoinSimultaneous(t *testing.T) {
	for i := 0; i < 50; i++ {
		var barrier sync.WaitGroup
		barrier.Add(2)
		arrive := func(id string) *FuncNode {
			return async(NewFuncNode(id, func(ec *ExecContext) Result {
				barrier.Done()
				barrier.Wait()
				return OK(map[string]any{"ran": true})
			}))
		}

		tr := &tracker{}
		join := trackingNode("join", tr)
		join.Gate = WaitForAll()

		c := New(WithMaxWorkers(2))
		c.MustAddNode(outputNode("start", nil), arrive("left"), arrive("right"), join)
		c.MustConnect("start", "left").MustConnect("start", "right")
		c.MustConnect("left", "join").MustConnect("right", "join")

		_, err := c.Execute(testCtx(), nil)

		require.NoError(t, err)
		require.Equal(t, 1, tr.count("join"), "iteration %d", i)
		require.Equal(t, 1, c.NodeContext("join").ExecuteCount(), "iteration %d", i)
		require.Equal(t, 2, c.NodeContext("join").TriggerCount(), "iteration %d", i)
	}
}

// TestNodeContext_JoinCompletesOnce tests that concurrent arrivals observe
// one completion per full set of inward edges.
func TestNodeContext_JoinCompletesOnce(t *testing.T) {
	inward := []*Edge{{ID: "e1"}, {ID: "e2"}, {ID: "e3"}}
	nc := newNodeContext()

	var completed atomic.Int32
	var wg sync.WaitGroup
	for round := 0; round < 20; round++ {
		for _, e := range inward {
			wg.Add(1)
			go func(edgeID string) {
				defer wg.Done()
				if nc.recordTrigger("src", edgeID, inward) {
					completed.Add(1)
				}
			}(e.ID)
		}
		wg.Wait()
	}

	assert.Equal(t, int32(20), completed.Load())
	assert.Equal(t, 60, nc.TriggerCount())
	assert.True(t, nc.IsUpstreamFullyExecuted(inward))
}

func mustNode(t *testing.T, c *Chain, id string) Node {
	t.Helper()
	n, ok := c.Node(id)
	require.True(t, ok, "node %s", id)
	return n
}
