package chain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildNested builds parent: start -> child -> done, where child is
// inner(a = base * 2) -> ask(b = a + extra, extra is an input).
func buildNested(needInput bool) (*Chain, *Chain) {
	extra := Ref("extra", "extra")
	if needInput {
		extra = Input("extra").Typed(TypeNumber)
	}
	child := New(WithID("child"))
	child.MustAddNode(
		calc("inner", map[string]string{"a": "base * 2"}, Ref("base", "start.base")),
		calc("ask", map[string]string{"b": "a + extra"}, Ref("a", "inner.a"), extra),
	)
	child.MustConnect("inner", "ask")

	parent := New(WithID("parent"))
	parent.MustAddNode(
		calc("start", map[string]string{"base": "5"}),
		child,
		calc("done", map[string]string{"total": "b"}, Ref("b", "child.ask.b")),
	)
	parent.MustConnect("start", "child").MustConnect("child", "done")
	return parent, child
}

func TestNested_OutputsFlowToParent(t *testing.T) {
	parent, child := buildNested(false)

	result, err := parent.Execute(testCtx(), map[string]any{"extra": int64(1)})

	require.NoError(t, err)
	assert.Equal(t, int64(10), result["child.inner.a"])
	assert.Equal(t, int64(11), result["child.ask.b"])
	assert.Equal(t, int64(11), result["done.total"])
	assert.Same(t, parent, child.Parent())
	assert.Equal(t, []*Chain{child}, parent.Children())
	assert.Equal(t, StatusFinishedNormal, child.Status())
}

func TestNested_EventsPropagateToParent(t *testing.T) {
	parent, _ := buildNested(false)
	rec := &recorder{}
	parent.On(EventNodeEnd, rec)

	_, err := parent.Execute(testCtx(), map[string]any{"extra": int64(1)})
	require.NoError(t, err)

	var fromChild, fromParent []string
	for _, e := range rec.ofType(EventNodeEnd) {
		if e.ChainID == "child" {
			fromChild = append(fromChild, e.NodeID)
		} else {
			fromParent = append(fromParent, e.NodeID)
		}
	}
	assert.Equal(t, []string{"inner", "ask"}, fromChild)
	assert.Equal(t, []string{"start", "child", "done"}, fromParent)
}

func TestNested_SuspendAndResumeThroughParent(t *testing.T) {
	parent, child := buildNested(true)

	_, err := parent.Execute(testCtx(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspend, parent.Status())
	assert.Equal(t, StatusSuspend, child.Status())
	assert.Equal(t, []string{"child"}, parent.Pending())
	assert.Equal(t, []string{"ask"}, child.Pending())
	require.Len(t, parent.AwaitingParameters(), 1)
	assert.Equal(t, "extra", parent.AwaitingParameters()[0].Name)

	result, err := parent.Resume(testCtx(), map[string]any{"extra": int64(3)})

	require.NoError(t, err)
	assert.Equal(t, StatusFinishedNormal, parent.Status())
	assert.Equal(t, int64(13), result["done.total"])
	assert.Equal(t, 1, child.NodeContext("inner").ExecuteCount(), "resume does not rerun the child's roots")
}

func TestNested_SnapshotRoundTrip(t *testing.T) {
	parent, _ := buildNested(true)
	_, err := parent.Execute(testCtx(), nil)
	require.NoError(t, err)

	data, err := json.Marshal(parent)
	require.NoError(t, err)
	h, err := ParseHolder(data)
	require.NoError(t, err)
	require.Len(t, h.Children, 1)
	assert.Equal(t, "child", h.Children[0].ID)
	assert.Equal(t, "parent", h.Children[0].ParentID)
	assert.Equal(t, StatusSuspend, h.Children[0].Status)

	restored, err := Materialize(h, testKinds())
	require.NoError(t, err)
	require.Len(t, restored.Children(), 1)
	assert.Same(t, restored, restored.Children()[0].Parent())

	input := map[string]any{"extra": int64(3)}
	want, err := parent.Resume(testCtx(), input)
	require.NoError(t, err)
	got, err := restored.Resume(testCtx(), input)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, parent.Status(), restored.Status())
}

func TestNested_ChildFailureFailsParentNode(t *testing.T) {
	boom := errors.New("boom")
	child := New(WithID("child"))
	child.MustAddNode(failingNode("bad", boom))

	tr := &tracker{}
	parent := New()
	parent.MustAddNode(child, trackingNode("after", tr))
	parent.MustConnect("child", "after")

	_, err := parent.Execute(testCtx(), nil)

	assert.ErrorIs(t, err, boom)
	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "child", nodeErr.NodeID)
	assert.Equal(t, StatusFinishedAbnormal, parent.Status())
	assert.Empty(t, tr.list())
}
