package chain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/randalmurphal/flowchain/pkg/chain/checkpoint"
	"github.com/randalmurphal/flowchain/pkg/chain/memory"
)

// HolderVersion is the snapshot format version.
const HolderVersion = 1

// Holder is the serializable projection of a chain: its structure plus the
// in-flight state needed to resume it, possibly in another process.
type Holder struct {
	Version     int    `json:"version"`
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`

	// Settings of the chain when it runs as a node of its parent.
	Async      bool         `json:"async,omitempty"`
	Condition  *Condition   `json:"condition,omitempty"`
	Parameters []*Parameter `json:"parameters,omitempty"`
	Loop       *Loop        `json:"loop,omitempty"`
	CostExpr   string       `json:"cost_expr,omitempty"`

	Children []*Holder  `json:"children,omitempty"`
	Nodes    []Envelope `json:"nodes"`
	Edges    []*Edge    `json:"edges"`

	ExecuteResult map[string]any            `json:"execute_result"`
	NodeContexts  map[string]*NodeContext   `json:"node_contexts,omitempty"`
	NodeStatuses  map[string]Status         `json:"node_statuses,omitempty"`
	NodeMemories  map[string]map[string]any `json:"node_memories,omitempty"`
	NodeResults   map[string]map[string]any `json:"node_results,omitempty"`
	OutputKeys    []string                  `json:"output_keys,omitempty"`

	SuspendNodes         map[string]Envelope `json:"suspend_nodes,omitempty"`
	SuspendOrder         []string            `json:"suspend_order,omitempty"`
	SuspendForParameters []*Parameter        `json:"suspend_for_parameters,omitempty"`

	Status      Status  `json:"status"`
	Message     string  `json:"message,omitempty"`
	Error       string  `json:"error,omitempty"`
	ComputeCost float64 `json:"compute_cost,omitempty"`
}

// Envelope tags a serialized node with its kind. Nested chains carry only
// their ID; the chain itself lives in Holder.Children.
type Envelope struct {
	Kind string          `json:"kind"`
	Node json.RawMessage `json:"node"`
}

// Snapshot captures c as a Holder. It fails with ErrNotSerializable when a
// node or condition holds Go functions.
func (c *Chain) Snapshot() (*Holder, error) {
	h := &Holder{
		Version:       HolderVersion,
		ID:            c.ID(),
		Name:          c.Name,
		Description:   c.Description,
		Async:         c.IsAsync,
		Condition:     c.Gate,
		Parameters:    c.Params,
		Loop:          c.LoopSpec,
		CostExpr:      c.CostExpr,
		Edges:         c.Edges(),
		ExecuteResult: c.store.All(),
		NodeContexts:  c.contexts.Snapshot(),
		NodeStatuses:  make(map[string]Status, len(c.nodes)),
		NodeMemories:  make(map[string]map[string]any),
		NodeResults:   c.results.Snapshot(),
	}
	if c.parent != nil {
		h.ParentID = c.parent.ID()
	}

	envelopes := make(map[string]Envelope, len(c.nodes))
	for _, n := range c.nodes {
		env, err := c.envelope(n, h)
		if err != nil {
			return nil, err
		}
		envelopes[n.ID()] = env
		h.Nodes = append(h.Nodes, env)

		b := n.base()
		h.NodeStatuses[n.ID()] = b.Status()
		if mem := b.memorySnapshot(); len(mem) > 0 {
			h.NodeMemories[n.ID()] = mem
		}
	}
	for _, e := range h.Edges {
		if e.Condition != nil && e.Condition.Type == ConditionFunc {
			return nil, fmt.Errorf("edge %s condition: %w", e.ID, ErrNotSerializable)
		}
	}

	c.smu.Lock()
	h.Status = c.status
	h.Message = c.message
	h.ComputeCost = c.cost
	if c.failure != nil {
		h.Error = c.failure.Error()
	}
	h.SuspendOrder = append([]string(nil), c.pending...)
	for _, p := range c.awaiting {
		h.SuspendForParameters = append(h.SuspendForParameters, p.Clone())
	}
	for k := range c.outKeys {
		h.OutputKeys = append(h.OutputKeys, k)
	}
	c.smu.Unlock()
	sort.Strings(h.OutputKeys)

	if len(h.SuspendOrder) > 0 {
		h.SuspendNodes = make(map[string]Envelope, len(h.SuspendOrder))
		for _, id := range h.SuspendOrder {
			h.SuspendNodes[id] = envelopes[id]
		}
	}
	return h, nil
}

func (c *Chain) envelope(n Node, h *Holder) (Envelope, error) {
	if child, ok := n.(*Chain); ok {
		ch, err := child.Snapshot()
		if err != nil {
			return Envelope{}, fmt.Errorf("child chain %s: %w", child.ID(), err)
		}
		h.Children = append(h.Children, ch)
		ref, _ := json.Marshal(map[string]string{"id": child.ID()})
		return Envelope{Kind: KindChain, Node: ref}, nil
	}
	if cond := n.base().Condition(); cond != nil && cond.Type == ConditionFunc {
		return Envelope{}, fmt.Errorf("node %s condition: %w", n.ID(), ErrNotSerializable)
	}
	data, err := json.Marshal(n)
	if err != nil {
		return Envelope{}, fmt.Errorf("node %s: %w", n.ID(), err)
	}
	return Envelope{Kind: n.Kind(), Node: data}, nil
}

// MarshalJSON serializes the chain's snapshot.
func (c *Chain) MarshalJSON() ([]byte, error) {
	h, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	return json.Marshal(h)
}

// ParseHolder decodes a serialized Holder. Whole numbers in variable values
// decode as int64, others as float64.
func ParseHolder(data []byte) (*Holder, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var h Holder
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("decode holder: %w", err)
	}
	h.normalize()
	return &h, nil
}

func (h *Holder) normalize() {
	h.ExecuteResult = normalizeMap(h.ExecuteResult)
	for id, m := range h.NodeMemories {
		h.NodeMemories[id] = normalizeMap(m)
	}
	for id, m := range h.NodeResults {
		h.NodeResults[id] = normalizeMap(m)
	}
	NormalizeParameters(h.Parameters)
	NormalizeParameters(h.SuspendForParameters)
	for _, child := range h.Children {
		child.normalize()
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := memory.Normalize(m).(map[string]any)
	return out
}

// NormalizeParameters converts json.Number values held by params (defaults,
// enums and selection data, recursively through children) to int64 or
// float64. Decoders that use UseNumber call it after decoding.
func NormalizeParameters(params []*Parameter) {
	for _, p := range params {
		p.Default = memory.Normalize(p.Default)
		for i, e := range p.Enums {
			p.Enums[i] = memory.Normalize(e)
		}
		if p.Selection != nil {
			for i, d := range p.Selection.Data {
				p.Selection.Data[i] = memory.Normalize(d)
			}
		}
		NormalizeParameters(p.Children)
	}
}

// Materialize rebuilds a chain from a Holder. Node kinds are created through
// kinds; opts configure the rebuilt chain and its children.
func Materialize(h *Holder, kinds *Kinds, opts ...Option) (*Chain, error) {
	if h.Version != HolderVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrHolderVersion, h.Version, HolderVersion)
	}

	base := []Option{WithID(h.ID), WithName(h.Name), WithDescription(h.Description)}
	c := New(append(base, opts...)...)
	c.IsAsync = h.Async
	c.Gate = h.Condition
	c.Params = h.Parameters
	c.LoopSpec = h.Loop
	c.CostExpr = h.CostExpr

	children := make(map[string]*Holder, len(h.Children))
	for _, ch := range h.Children {
		children[ch.ID] = ch
	}

	for _, env := range h.Nodes {
		n, err := materializeNode(env, children, kinds, opts)
		if err != nil {
			return nil, err
		}
		if err := c.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range h.Edges {
		edge := *e
		if err := c.AddEdge(&edge); err != nil {
			return nil, err
		}
	}

	c.store.SetAll(h.ExecuteResult)
	for id, nc := range h.NodeContexts {
		c.contexts.Register(id, nc)
	}
	for id, out := range h.NodeResults {
		c.results.Register(id, out)
	}
	for id, s := range h.NodeStatuses {
		if n, ok := c.nodeIndex[id]; ok {
			n.base().setStatus(s)
		}
	}
	for id, mem := range h.NodeMemories {
		if n, ok := c.nodeIndex[id]; ok {
			n.base().Memory().SetAll(mem)
		}
	}

	c.status = h.Status
	if c.status == "" {
		c.status = StatusReady
	}
	c.message = h.Message
	c.cost = h.ComputeCost
	if h.Error != "" {
		c.failure = errors.New(h.Error)
	}
	for _, id := range pendingOrder(h) {
		if _, ok := c.nodeIndex[id]; ok {
			c.pending = append(c.pending, id)
		}
	}
	for _, p := range h.SuspendForParameters {
		c.awaiting = append(c.awaiting, p.Clone())
	}
	for _, k := range h.OutputKeys {
		c.outKeys[k] = struct{}{}
	}
	return c, nil
}

func materializeNode(env Envelope, children map[string]*Holder, kinds *Kinds, opts []Option) (Node, error) {
	if env.Kind == KindChain {
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Node, &ref); err != nil {
			return nil, fmt.Errorf("child chain reference: %w", err)
		}
		ch, ok := children[ref.ID]
		if !ok {
			return nil, fmt.Errorf("child chain %s: %w", ref.ID, ErrNodeNotFound)
		}
		return Materialize(ch, kinds, opts...)
	}

	if kinds == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, env.Kind)
	}
	n, err := kinds.New(env.Kind)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(env.Node))
	dec.UseNumber()
	if err := dec.Decode(n); err != nil {
		return nil, fmt.Errorf("decode %s node: %w", env.Kind, err)
	}
	NormalizeParameters(n.base().Params)
	return n, nil
}

// pendingOrder returns the suspended node IDs in suspension order. Holders
// without an order fall back to sorted IDs.
func pendingOrder(h *Holder) []string {
	if len(h.SuspendOrder) > 0 {
		return h.SuspendOrder
	}
	ids := make([]string, 0, len(h.SuspendNodes))
	for id := range h.SuspendNodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SaveSnapshot writes c to store as a checkpoint record tagged with the
// chain status. It returns the stored size in bytes.
func SaveSnapshot(c *Chain, store checkpoint.Store) (int, error) {
	data, err := c.MarshalJSON()
	if err != nil {
		return 0, err
	}
	status := string(c.Status())
	rec, err := checkpoint.NewRecord(c.ID(), status, status, data).Marshal()
	if err != nil {
		return 0, err
	}
	if err := store.Save(c.ID(), status, rec); err != nil {
		return 0, err
	}
	return len(rec), nil
}

// LoadSnapshot reads the latest checkpoint of chainID and materializes it.
func LoadSnapshot(store checkpoint.Store, chainID string, kinds *Kinds, opts ...Option) (*Chain, error) {
	data, err := store.Load(chainID)
	if err != nil {
		return nil, err
	}
	rec, err := checkpoint.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	h, err := ParseHolder(rec.Snapshot)
	if err != nil {
		return nil, err
	}
	return Materialize(h, kinds, opts...)
}
