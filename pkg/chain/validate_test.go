package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkedNode struct {
	BaseNode
	ok bool
}

func (n *checkedNode) Kind() string               { return "checked" }
func (n *checkedNode) Run(ec *ExecContext) Result { return OK(nil) }

func (n *checkedNode) Validate() ValidationResult {
	if n.ok {
		return Valid()
	}
	return Invalid("misconfigured", nil)
}

func problems(t *testing.T, res ValidationResult) []string {
	t.Helper()
	require.False(t, res.Success)
	list, ok := res.Details["problems"].([]string)
	require.True(t, ok)
	return list
}

func TestValidate_ValidChain(t *testing.T) {
	c := New()
	c.MustAddNode(calc("a", nil), &checkedNode{BaseNode: BaseNode{NodeID: "b"}, ok: true})
	c.MustConnect("a", "b")

	res := c.Validate()

	assert.True(t, res.Success)
	assert.Empty(t, res.Message)
}

func TestValidate_EmptyChainIsValid(t *testing.T) {
	assert.True(t, New().Validate().Success)
}

func TestValidate_NoStartNode(t *testing.T) {
	c := New(WithID("loop"))
	c.MustAddNode(calc("a", nil), calc("b", nil))
	c.MustConnect("a", "b").MustConnect("b", "a")

	list := problems(t, c.Validate())

	assert.Contains(t, list, "no start node: every node has an inward edge")
}

func TestValidate_Unreachable(t *testing.T) {
	c := New()
	c.MustAddNode(calc("a", nil), calc("b", nil), calc("c", nil))
	c.MustConnect("a", "b").MustConnect("c", "c")

	list := problems(t, c.Validate())

	assert.Equal(t, []string{"node c is unreachable"}, list)
}

func TestValidate_RequiredFixedWithoutValue(t *testing.T) {
	c := New()
	c.MustAddNode(calc("a", nil, Fixed("x", "").Require()))

	list := problems(t, c.Validate())

	assert.Equal(t, []string{`node a: required fixed parameter "x" has no value`}, list)
}

func TestValidate_NodeValidatorAndNestedChain(t *testing.T) {
	child := New(WithID("child"))
	child.MustAddNode(&checkedNode{BaseNode: BaseNode{NodeID: "inner"}})

	c := New(WithID("parent"))
	c.MustAddNode(&checkedNode{BaseNode: BaseNode{NodeID: "a"}}, child)
	c.MustConnect("a", "child")

	res := c.Validate()
	list := problems(t, res)

	require.Len(t, list, 2)
	assert.Equal(t, "node a: misconfigured", list[0])
	assert.Contains(t, list[1], "node child: chain child:")
	assert.Contains(t, list[1], "node inner: misconfigured")
	assert.Contains(t, res.Message, "chain parent:")
}
