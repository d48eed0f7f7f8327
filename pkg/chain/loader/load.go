// Package loader builds chains from YAML or JSON definition files.
//
// A definition lists nodes by kind and the edges between them:
//
//	id: greet
//	nodes:
//	  - id: hello
//	    kind: set
//	    values:
//	      text: "hello {{ name }}"
//	  - id: done
//	    kind: end
//	edges:
//	  - source: hello
//	    target: done
//	    condition: "name != ''"
//
// Node fields other than kind are decoded into the node created for that
// kind, so every field a kind serializes in a snapshot is also accepted in
// a definition. A node of kind "chain" is itself a definition and becomes a
// nested chain.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/flowchain/pkg/chain"
	"github.com/randalmurphal/flowchain/pkg/chain/nodes"
)

// ErrMissingKind is returned for a node definition without a kind.
var ErrMissingKind = errors.New("node has no kind")

// Definition is a chain as written in a file.
type Definition struct {
	ID          string             `json:"id,omitempty"`
	Name        string             `json:"name,omitempty"`
	Description string             `json:"description,omitempty"`
	Async       bool               `json:"async,omitempty"`
	Condition   *chain.Condition   `json:"condition,omitempty"`
	Parameters  []*chain.Parameter `json:"parameters,omitempty"`
	Loop        *chain.Loop        `json:"loop,omitempty"`
	CostExpr    string             `json:"cost_expr,omitempty"`
	Nodes       []json.RawMessage  `json:"nodes"`
	Edges       []*chain.Edge      `json:"edges,omitempty"`
}

// header is the part of a node definition read before its kind is known.
type header struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Load reads the definition at path and builds its chain. A nil kinds uses
// the built-in node kinds.
func Load(path string, kinds *chain.Kinds, opts ...chain.Option) (*chain.Chain, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	def, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	return Build(def, kinds, opts...)
}

// Parse decodes a definition. The format follows the extension of path:
// .yaml and .yml are YAML, anything else is JSON.
func Parse(data []byte, path string) (*Definition, error) {
	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}
	var def Definition
	if err := decode(jsonData, &def); err != nil {
		return nil, fmt.Errorf("parsing chain definition: %w", err)
	}
	chain.NormalizeParameters(def.Parameters)
	return &def, nil
}

// Build creates the chain a definition describes. opts apply to the chain
// and to every nested chain; the definition's own id and name win.
func Build(def *Definition, kinds *chain.Kinds, opts ...chain.Option) (*chain.Chain, error) {
	if kinds == nil {
		kinds = nodes.Builtins()
	}

	chainOpts := append([]chain.Option(nil), opts...)
	if def.ID != "" {
		chainOpts = append(chainOpts, chain.WithID(def.ID))
	}
	chainOpts = append(chainOpts, chain.WithName(def.Name), chain.WithDescription(def.Description))

	c := chain.New(chainOpts...)
	c.IsAsync = def.Async
	c.Gate = def.Condition
	c.Params = def.Parameters
	c.LoopSpec = def.Loop
	c.CostExpr = def.CostExpr

	for i, raw := range def.Nodes {
		n, err := buildNode(raw, kinds, opts)
		if err != nil {
			return nil, fmt.Errorf("chain %s: node %d: %w", c.ID(), i, err)
		}
		if err := c.AddNode(n); err != nil {
			return nil, fmt.Errorf("chain %s: %w", c.ID(), err)
		}
	}
	for _, e := range def.Edges {
		edge := *e
		if err := c.AddEdge(&edge); err != nil {
			return nil, fmt.Errorf("chain %s: edge %s -> %s: %w", c.ID(), e.Source, e.Target, err)
		}
	}
	return c, nil
}

func buildNode(raw json.RawMessage, kinds *chain.Kinds, opts []chain.Option) (chain.Node, error) {
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	switch h.Kind {
	case "":
		return nil, fmt.Errorf("%s: %w", h.ID, ErrMissingKind)
	case chain.KindChain:
		var child Definition
		if err := decode(raw, &child); err != nil {
			return nil, fmt.Errorf("%s: %w", h.ID, err)
		}
		chain.NormalizeParameters(child.Parameters)
		return Build(&child, kinds, opts...)
	}

	n, err := kinds.New(h.Kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.ID, err)
	}
	if err := decode(raw, n); err != nil {
		return nil, fmt.Errorf("%s: decode %s node: %w", h.ID, h.Kind, err)
	}
	if p, ok := n.(interface{ Parameters() []*chain.Parameter }); ok {
		chain.NormalizeParameters(p.Parameters())
	}
	return n, nil
}

// decode unmarshals JSON keeping integers exact.
func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// toJSON converts YAML to JSON when path has a YAML extension:
// YAML -> generic value -> JSON bytes.
func toJSON(data []byte, path string) ([]byte, error) {
	if !isYAML(path) {
		return data, nil
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return json.Marshal(raw)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
