package chain

import (
	"context"
	"sync"
	"time"
)

// Helper nodes used across tests.

// tracker records node executions from concurrent branches.
type tracker struct {
	mu    sync.Mutex
	order []string
}

func (t *tracker) add(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = append(t.order, id)
}

func (t *tracker) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

func (t *tracker) count(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, s := range t.order {
		if s == id {
			n++
		}
	}
	return n
}

// outputNode returns fixed outputs.
func outputNode(id string, outputs map[string]any) *FuncNode {
	return NewFuncNode(id, func(ec *ExecContext) Result {
		return OK(outputs)
	})
}

// trackingNode records its execution and outputs {"ran": true}.
func trackingNode(id string, tr *tracker) *FuncNode {
	return NewFuncNode(id, func(ec *ExecContext) Result {
		tr.add(id)
		return OK(map[string]any{"ran": true})
	})
}

// sleepyNode records its execution after sleeping.
func sleepyNode(id string, d time.Duration, tr *tracker) *FuncNode {
	return NewFuncNode(id, func(ec *ExecContext) Result {
		time.Sleep(d)
		tr.add(id)
		return OK(map[string]any{"ran": true})
	})
}

// failingNode returns err.
func failingNode(id string, err error) *FuncNode {
	return NewFuncNode(id, func(ec *ExecContext) Result {
		return Fail(err)
	})
}

// async marks n as async and returns it.
func async[N Node](n N) N {
	n.base().IsAsync = true
	return n
}

// calcNode evaluates one expression per output against its resolved
// parameters and the chain variables. It is serializable, so snapshot tests
// use it.
type calcNode struct {
	BaseNode
	Exprs map[string]string `json:"exprs"`
}

func (n *calcNode) Kind() string { return "calc" }

func (n *calcNode) Run(ec *ExecContext) Result {
	out := make(map[string]any, len(n.Exprs))
	for k, e := range n.Exprs {
		v, err := ec.Evaluate(e, ec.Parameters())
		if err != nil {
			return Fail(err)
		}
		out[k] = v
	}
	return OK(out)
}

func calc(id string, exprs map[string]string, params ...*Parameter) *calcNode {
	return &calcNode{BaseNode: BaseNode{NodeID: id, Params: params}, Exprs: exprs}
}

func testKinds() *Kinds {
	k := NewKinds()
	k.Register("calc", func() Node { return &calcNode{} })
	return k
}

// testCtx creates a simple test context.
func testCtx() context.Context {
	return context.Background()
}
