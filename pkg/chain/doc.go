/*
Package chain provides an embeddable engine for running directed graphs of
work units.

# Overview

A Chain holds nodes connected by edges and one shared variable store. Nodes
with no inward edges start a run; after a node completes, each outward edge
whose condition passes triggers its target. Nodes marked async run on a
bounded worker pool, everything else runs inline on the branch that reached
it. Execute returns once every branch, async ones included, has finished.

Features:
  - Dotted-path variables with longest-prefix lookup and broadcast over lists
  - Parameters bound from literals, variables, or caller input
  - Suspension when required input is missing, and Resume to continue
  - Nested chains whose events reach the parent's listeners
  - Snapshots (Holder) that resume in another process
  - OpenTelemetry metrics and spans, structured logging with slog

# Basic Usage

	c := chain.New(chain.WithName("order"))
	c.MustAddNode(
	    chain.NewFuncNode("price", func(ec *chain.ExecContext) chain.Result {
	        return chain.OK(map[string]any{"total": 42})
	    }),
	    chain.NewFuncNode("ship", func(ec *chain.ExecContext) chain.Result {
	        return chain.OK(map[string]any{"label": fmt.Sprint("paid ", ec.Get("price.total"))})
	    }),
	)
	c.MustConnect("price", "ship")

	result, err := c.Execute(ctx, nil)
	// result["price.total"] == 42, result["ship.label"] == "paid 42"

Node outputs are stored as "{nodeID}.{key}".

# Conditions

Edges and nodes take conditions. An edge whose condition fails is not
followed. A node whose condition fails skips its body and lets the branch
continue; a halting condition ends the branch instead:

	c.MustConnect("review", "publish", chain.When("review.approved == true"))
	join.Gate = chain.WaitForAll()

A node with several inward edges runs once per trigger unless it waits for
all of them with WaitForAll.

# Suspend and Resume

A required Input parameter that no variable satisfies suspends the node:

	approve.Params = []*chain.Parameter{chain.Input("approved").Typed(chain.TypeBoolean)}

	_, _ = c.Execute(ctx, nil)          // c.Status() == chain.StatusSuspend
	_, err = c.Resume(ctx, map[string]any{"approved": true})

Other branches keep running while one is suspended.

# Snapshots

A suspended chain can be written out and picked up elsewhere:

	data, err := json.Marshal(c)
	h, err := chain.ParseHolder(data)
	restored, err := chain.Materialize(h, kinds)
	_, err = restored.Resume(ctx, map[string]any{"approved": true})

Nodes are rebuilt through a Kinds registry, so chains holding FuncNodes or
function conditions cannot be snapshotted.

# Errors

A failing node stops its own branch and marks the chain ERROR; branches
already running finish. The run ends FINISHED_ABNORMAL and Execute returns
the first failure, or nil with ErrorTolerant. Failures are NodeError,
PanicError, ConfigurationError (a required non-input parameter is missing),
TimeoutError, CancellationError, or LoopLimitError.
*/
package chain
