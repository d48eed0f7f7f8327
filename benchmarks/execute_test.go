package benchmarks

import (
	"context"
	"testing"

	"github.com/randalmurphal/flowchain/pkg/chain"
)

func benchmarkExecute(b *testing.B, c *chain.Chain, vars func(i int) map[string]any) {
	b.Helper()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Reset()
		_, _ = c.Execute(ctx, vars(i))
	}
}

func noVars(int) map[string]any { return nil }

// BenchmarkExecute_Linear_5 runs a 5-node linear chain.
func BenchmarkExecute_Linear_5(b *testing.B) {
	benchmarkExecute(b, buildLinearChain(5), noVars)
}

// BenchmarkExecute_Linear_10 runs a 10-node linear chain.
func BenchmarkExecute_Linear_10(b *testing.B) {
	benchmarkExecute(b, buildLinearChain(10), noVars)
}

// BenchmarkExecute_Linear_50 runs a 50-node linear chain.
func BenchmarkExecute_Linear_50(b *testing.B) {
	benchmarkExecute(b, buildLinearChain(50), noVars)
}

// BenchmarkExecute_Linear_100 runs a 100-node linear chain.
func BenchmarkExecute_Linear_100(b *testing.B) {
	benchmarkExecute(b, buildLinearChain(100), noVars)
}

// BenchmarkExecute_Branching runs a chain with conditional edges.
func BenchmarkExecute_Branching(b *testing.B) {
	benchmarkExecute(b, buildBranchingChain(), func(i int) map[string]any {
		return map[string]any{"value": i}
	})
}

// BenchmarkExecute_FanOutAsync runs 20 async branches from one root.
func BenchmarkExecute_FanOutAsync(b *testing.B) {
	c := chain.New(chain.WithMaxWorkers(4))
	c.MustAddNode(chain.NewFuncNode("root", noopNode))
	for i := 0; i < 20; i++ {
		n := chain.NewFuncNode(nodeID(i), noopNode)
		n.IsAsync = true
		c.MustAddNode(n)
		c.MustConnect("root", nodeID(i))
	}
	benchmarkExecute(b, c, noVars)
}

// BenchmarkExecute_Loop runs a looping node (3 iterations).
func BenchmarkExecute_Loop(b *testing.B) {
	benchmarkExecute(b, buildLoopChain(3), noVars)
}

// BenchmarkExecute_Loop_10 runs a looping node (10 iterations).
func BenchmarkExecute_Loop_10(b *testing.B) {
	benchmarkExecute(b, buildLoopChain(10), noVars)
}

// BenchmarkExecute_SuspendResume measures a suspend followed by a resume.
func BenchmarkExecute_SuspendResume(b *testing.B) {
	wait := chain.NewFuncNode("wait", func(ec *chain.ExecContext) chain.Result {
		return chain.OK(ec.Parameters())
	})
	wait.Params = []*chain.Parameter{chain.Input("answer")}
	c := chain.New()
	c.MustAddNode(chain.NewFuncNode("start", noopNode), wait)
	c.MustConnect("start", "wait")

	ctx := context.Background()
	answer := map[string]any{"answer": "yes"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Reset()
		_, _ = c.Execute(ctx, nil)
		_, _ = c.Resume(ctx, answer)
	}
}

// BenchmarkExecute_WithMetricsAndTracing measures the observability overhead.
func BenchmarkExecute_WithMetricsAndTracing(b *testing.B) {
	benchmarkExecute(b, buildLinearChain(10, chain.WithMetrics(true), chain.WithTracing(true)), noVars)
}

func buildLoopChain(iterations int) *chain.Chain {
	n := chain.NewFuncNode("loop", func(ec *chain.ExecContext) chain.Result {
		return chain.OK(map[string]any{"i": ec.NodeContext().ExecuteCount()})
	})
	n.LoopSpec = &chain.Loop{Enabled: true, MaxCount: iterations}

	c := chain.New()
	c.MustAddNode(n, chain.NewFuncNode("done", noopNode))
	c.MustConnect("loop", "done")
	return c
}
