package chain

import (
	"fmt"
	"strings"
)

// ValidationResult is the outcome of a pre-flight check. It is a value, not
// an error: the caller decides what a failed validation means.
type ValidationResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Valid returns a passing result.
func Valid() ValidationResult {
	return ValidationResult{Success: true}
}

// Invalid returns a failing result.
func Invalid(message string, details map[string]any) ValidationResult {
	return ValidationResult{Message: message, Details: details}
}

// Validator is implemented by nodes that can check their own configuration.
type Validator interface {
	Validate() ValidationResult
}

// Validate checks the chain's structure and runs every node validator,
// descending into nested chains. Problems are listed under the "problems"
// detail.
func (c *Chain) Validate() ValidationResult {
	var problems []string

	if len(c.nodes) > 0 && len(c.frontier(nil)) == 0 {
		problems = append(problems, "no start node: every node has an inward edge")
	}

	edgeIDs := make(map[string]struct{}, len(c.edges))
	for _, e := range c.edges {
		if _, dup := edgeIDs[e.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate edge id %s", e.ID))
		}
		edgeIDs[e.ID] = struct{}{}
		if _, ok := c.nodeIndex[e.Source]; !ok {
			problems = append(problems, fmt.Sprintf("edge %s: unknown source %s", e.ID, e.Source))
		}
		if _, ok := c.nodeIndex[e.Target]; !ok {
			problems = append(problems, fmt.Sprintf("edge %s: unknown target %s", e.ID, e.Target))
		}
	}

	for _, id := range c.unreachable() {
		problems = append(problems, fmt.Sprintf("node %s is unreachable", id))
	}

	for _, n := range c.nodes {
		for _, p := range n.base().Parameters() {
			if p.Required && p.RefType == RefFixed && p.Value == "" && p.Default == nil {
				problems = append(problems, fmt.Sprintf("node %s: required fixed parameter %q has no value", n.ID(), p.Name))
			}
		}

		v, ok := n.(Validator)
		if !ok {
			continue
		}
		if res := v.Validate(); !res.Success {
			problems = append(problems, fmt.Sprintf("node %s: %s", n.ID(), res.Message))
		}
	}

	if len(problems) == 0 {
		return Valid()
	}
	return Invalid(
		fmt.Sprintf("chain %s: %s", c.ID(), strings.Join(problems, "; ")),
		map[string]any{"problems": problems},
	)
}

// unreachable returns the nodes no start node leads to, in insertion order.
func (c *Chain) unreachable() []string {
	seen := make(map[string]bool, len(c.nodes))
	var queue []string
	for _, t := range c.frontier(nil) {
		queue = append(queue, t.node.ID())
		seen[t.node.ID()] = true
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range c.outward[id] {
			if !seen[e.Target] {
				seen[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}

	var out []string
	for _, n := range c.nodes {
		if !seen[n.ID()] {
			out = append(out, n.ID())
		}
	}
	return out
}
