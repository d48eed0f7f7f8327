package chain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Every node of a linear chain is triggered and executed exactly once, and
// each node's output lands in the result under its qualified key.
func TestProperty_LinearChainRunsEachNodeOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		asyncMask := rapid.SliceOfN(rapid.Bool(), n, n).Draw(rt, "async")

		c := New()
		tr := &tracker{}
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("n%d", i)
			node := NewFuncNode(id, func(ec *ExecContext) Result {
				tr.add(ec.Node().ID())
				return OK(map[string]any{"i": ec.Node().ID()})
			})
			node.IsAsync = asyncMask[i]
			c.MustAddNode(node)
			if i > 0 {
				c.MustConnect(fmt.Sprintf("n%d", i-1), id)
			}
		}

		result, err := c.Execute(testCtx(), nil)
		require.NoError(rt, err)
		assert.Equal(rt, StatusFinishedNormal, c.Status())

		for i := 0; i < n; i++ {
			id := fmt.Sprintf("n%d", i)
			assert.Equal(rt, 1, tr.count(id))
			assert.Equal(rt, 1, c.NodeContext(id).TriggerCount())
			assert.Equal(rt, 1, c.NodeContext(id).ExecuteCount())
			assert.Equal(rt, id, result[id+".i"])
		}
		assert.Equal(rt, n, len(tr.list()))
	})
}

// A fan-out of independent branches from one root runs every branch once,
// whichever of them are async.
func TestProperty_FanOutRunsEveryBranch(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		width := rapid.IntRange(1, 8).Draw(rt, "width")
		workers := rapid.IntRange(1, 4).Draw(rt, "workers")

		c := New(WithMaxWorkers(workers))
		tr := &tracker{}
		c.MustAddNode(trackingNode("root", tr))
		for i := 0; i < width; i++ {
			id := fmt.Sprintf("b%d", i)
			node := trackingNode(id, tr)
			node.IsAsync = rapid.Bool().Draw(rt, id)
			c.MustAddNode(node)
			c.MustConnect("root", id)
		}

		_, err := c.Execute(testCtx(), nil)
		require.NoError(rt, err)

		order := tr.list()
		require.Len(rt, order, width+1)
		assert.Equal(rt, "root", order[0])
		for i := 0; i < width; i++ {
			assert.Equal(rt, 1, tr.count(fmt.Sprintf("b%d", i)))
		}
	})
}
